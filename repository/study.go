package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dicomlite/dicomlite/entity"
)

type StudyRepository struct {
	db *gorm.DB
}

func NewStudyRepository(db *gorm.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

// Upsert creates the study row or refreshes its aggregate attributes. The
// expiry column is managed separately through SetExpiry and is deliberately
// left out of the update set so an upload without expiry directives never
// clears an earlier expiry.
func (r *StudyRepository) Upsert(study *entity.Study) error {
	if study.ID == uuid.Nil {
		study.ID = uuid.New()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "study_instance_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"patient_id", "searchable", "updated_at"}),
	}).Create(study).Error
}

func (r *StudyRepository) FindByUID(studyUID string) (*entity.Study, error) {
	var study entity.Study
	err := r.db.Where("study_instance_uid = ?", studyUID).First(&study).Error
	if err != nil {
		return nil, err
	}
	return &study, nil
}

// SetExpiry refreshes the absolute expiry timestamp of the study; a later
// upsert to the same study may move it again.
func (r *StudyRepository) SetExpiry(studyUID string, expiresAt time.Time) error {
	return r.db.Model(&entity.Study{}).
		Where("study_instance_uid = ?", studyUID).
		Update("expires_at", expiresAt).Error
}

// FindExpired returns studies whose expiry has passed. Studies with a null
// expires_at never match.
func (r *StudyRepository) FindExpired(now time.Time) ([]entity.Study, error) {
	var studies []entity.Study
	err := r.db.Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("expires_at").
		Find(&studies).Error
	if err != nil {
		return nil, err
	}
	return studies, nil
}

func (r *StudyRepository) DeleteByUID(studyUID string) error {
	return r.db.Delete(&entity.Study{}, "study_instance_uid = ?", studyUID).Error
}
