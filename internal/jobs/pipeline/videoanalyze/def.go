package videoanalyze

import (
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// JobType is the queue discriminator for analysis runs.
const JobType = types.JobTypeVideoAnalyze

// Pipeline runs the asynchronous half of an analysis: transcribe the uploaded
// video, structure the transcript into a typed script, persist sections, and
// flip the analysis to completed.
type Pipeline struct {
	db           *gorm.DB
	log          *logger.Logger
	brandRepo    repos.BrandRepo
	analysisRepo repos.AnalysisRepo
	sectionRepo  repos.SectionRepo
	bucket       gcp.BucketService
	speech       gcp.Speech
	scriptGen    services.ScriptGenService
}

func NewPipeline(
	db *gorm.DB,
	baseLog *logger.Logger,
	brandRepo repos.BrandRepo,
	analysisRepo repos.AnalysisRepo,
	sectionRepo repos.SectionRepo,
	bucket gcp.BucketService,
	speech gcp.Speech,
	scriptGen services.ScriptGenService,
) *Pipeline {
	return &Pipeline{
		db:           db,
		log:          baseLog.With("job", JobType),
		brandRepo:    brandRepo,
		analysisRepo: analysisRepo,
		sectionRepo:  sectionRepo,
		bucket:       bucket,
		speech:       speech,
		scriptGen:    scriptGen,
	}
}
