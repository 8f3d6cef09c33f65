package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dicomlite/dicomlite/entity"
)

type SeriesRepository struct {
	db *gorm.DB
}

func NewSeriesRepository(db *gorm.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

func (r *SeriesRepository) Upsert(series *entity.Series) error {
	if series.ID == uuid.Nil {
		series.ID = uuid.New()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "study_instance_uid"},
			{Name: "series_instance_uid"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"modality", "updated_at"}),
	}).Create(series).Error
}

func (r *SeriesRepository) FindByStudyUID(studyUID string) ([]entity.Series, error) {
	var series []entity.Series
	err := r.db.Where("study_instance_uid = ?", studyUID).Find(&series).Error
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (r *SeriesRepository) DeleteByStudyUID(studyUID string) error {
	return r.db.Delete(&entity.Series{}, "study_instance_uid = ?", studyUID).Error
}

// DeleteIfEmpty removes the series row when no instance references it anymore.
func (r *SeriesRepository) DeleteIfEmpty(studyUID, seriesUID string) error {
	var count int64
	err := r.db.Model(&entity.Instance{}).
		Where("study_instance_uid = ? AND series_instance_uid = ?", studyUID, seriesUID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.Delete(&entity.Series{},
		"study_instance_uid = ? AND series_instance_uid = ?", studyUID, seriesUID).Error
}
