package repository

import (
	"gorm.io/gorm"

	"github.com/dicomlite/dicomlite/infra"
)

type Repository struct {
	StudyRepo      *StudyRepository
	SeriesRepo     *SeriesRepository
	InstanceRepo   *InstanceRepository
	ChangeFeedRepo *ChangeFeedRepository

	db *gorm.DB
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = NewRepository(infra.Postgres.DB)
	return repository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		StudyRepo:      NewStudyRepository(db),
		SeriesRepo:     NewSeriesRepository(db),
		InstanceRepo:   NewInstanceRepository(db),
		ChangeFeedRepo: NewChangeFeedRepository(db),
		db:             db,
	}
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) BeginTransaction() *gorm.DB {
	return r.db.Begin()
}

// WithTransaction rebinds every repository to the given transaction handle so
// a request-scoped unit of work commits or rolls back as a whole.
func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return &Repository{
		StudyRepo:      NewStudyRepository(tx),
		SeriesRepo:     NewSeriesRepository(tx),
		InstanceRepo:   NewInstanceRepository(tx),
		ChangeFeedRepo: NewChangeFeedRepository(tx),
		db:             tx,
	}
}
