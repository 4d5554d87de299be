package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type CatalogHandler struct {
	log        *logger.Logger
	catalog    services.CatalogService
	brandRepo  repos.BrandRepo
	folderRepo repos.AssetFolderRepo
	assetRepo  repos.AssetRepo
	bucket     gcp.BucketService
}

func NewCatalogHandler(
	log *logger.Logger,
	catalog services.CatalogService,
	brandRepo repos.BrandRepo,
	folderRepo repos.AssetFolderRepo,
	assetRepo repos.AssetRepo,
	bucket gcp.BucketService,
) *CatalogHandler {
	return &CatalogHandler{
		log:        log.With("handler", "CatalogHandler"),
		catalog:    catalog,
		brandRepo:  brandRepo,
		folderRepo: folderRepo,
		assetRepo:  assetRepo,
		bucket:     bucket,
	}
}

// POST /api/brands
func (h *CatalogHandler) CreateBrand(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Tone        string `json:"tone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("name required"))
		return
	}
	brand, err := h.brandRepo.Create(c.Request.Context(), nil, &types.Brand{
		Name:        req.Name,
		Description: req.Description,
		Tone:        req.Tone,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"brand": brand})
}

// POST /api/brands/:id/folders
func (h *CatalogHandler) CreateFolder(c *gin.Context) {
	brandID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_brand_id", err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("name required"))
		return
	}
	if _, err := h.brandRepo.GetByID(c.Request.Context(), nil, brandID); err != nil {
		RespondAppError(c, err)
		return
	}
	folder, err := h.folderRepo.Create(c.Request.Context(), nil, &types.AssetFolder{
		BrandID: brandID,
		Name:    req.Name,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"folder": folder})
}

// POST /api/brands/:id/assets
// Multipart upload: file + folder_id (+ optional display_name, duration_seconds).
func (h *CatalogHandler) UploadAsset(c *gin.Context) {
	brandID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_brand_id", err)
		return
	}
	folderID, err := uuid.Parse(c.PostForm("folder_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_folder_id", err)
		return
	}
	folder, err := h.folderRepo.GetByID(c.Request.Context(), nil, folderID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if folder.BrandID != brandID {
		RespondError(c, http.StatusBadRequest, "folder_brand_mismatch",
			fmt.Errorf("folder %s does not belong to brand %s", folderID, brandID))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	displayName := c.PostForm("display_name")
	if displayName == "" {
		displayName = fileHeader.Filename
	}

	src, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer src.Close()

	key := fmt.Sprintf("clips/%s/%s%s", brandID, uuid.New(), filepath.Ext(fileHeader.Filename))
	if err := h.bucket.UploadFile(c.Request.Context(), gcp.BucketCategoryAsset, key, src); err != nil {
		RespondAppError(c, err)
		return
	}

	asset, err := h.assetRepo.Create(c.Request.Context(), nil, &types.Asset{
		FolderID:    folderID,
		DisplayName: displayName,
		StorageKey:  key,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	h.log.Info("Asset uploaded", "brand_id", brandID, "folder_id", folderID, "asset_id", asset.ID, "key", key)
	RespondOK(c, gin.H{"asset": asset})
}

// GET /api/brands/:id/catalog
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	brandID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_brand_id", err)
		return
	}
	snapshot, err := h.catalog.Snapshot(c.Request.Context(), brandID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"catalog": snapshot})
}

// POST /api/assets/:id/move
func (h *CatalogHandler) MoveAsset(c *gin.Context) {
	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_asset_id", err)
		return
	}
	var req struct {
		FolderID uuid.UUID `json:"folder_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.catalog.MoveAsset(c.Request.Context(), assetID, req.FolderID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"moved": true, "asset_id": assetID, "folder_id": req.FolderID})
}
