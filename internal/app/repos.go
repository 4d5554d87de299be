package app

import (
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
)

type Repos struct {
	Brand       repos.BrandRepo
	Analysis    repos.AnalysisRepo
	Section     repos.SectionRepo
	AssetFolder repos.AssetFolderRepo
	Asset       repos.AssetRepo
	Project     repos.ProjectRepo
	Variant     repos.VariantRepo
	JobRun      repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Brand:       repos.NewBrandRepo(db, log),
		Analysis:    repos.NewAnalysisRepo(db, log),
		Section:     repos.NewSectionRepo(db, log),
		AssetFolder: repos.NewAssetFolderRepo(db, log),
		Asset:       repos.NewAssetRepo(db, log),
		Project:     repos.NewProjectRepo(db, log),
		Variant:     repos.NewVariantRepo(db, log),
		JobRun:      repos.NewJobRunRepo(db, log),
	}
}
