package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dicomlite/dicomlite/entity"
)

type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

var identityColumns = []clause.Column{
	{Name: "study_instance_uid"},
	{Name: "series_instance_uid"},
	{Name: "sop_instance_uid"},
}

// CreateIfAbsent inserts the instance unless its identity triple already
// exists. The ON CONFLICT clause resolves a concurrent check-then-insert race
// inside the database: exactly one caller wins, the loser sees inserted=false
// without poisoning the surrounding transaction.
func (r *InstanceRepository) CreateIfAbsent(instance *entity.Instance) (bool, error) {
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   identityColumns,
		DoNothing: true,
	}).Create(instance)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Upsert inserts the instance, fully replacing any existing row with the same
// identity triple.
func (r *InstanceRepository) Upsert(instance *entity.Instance) error {
	if instance.ID == uuid.Nil {
		instance.ID = uuid.New()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: identityColumns,
		DoUpdates: clause.AssignmentColumns([]string{
			"id", "patient_id", "modality", "searchable",
			"blob_path", "size_bytes", "created_at", "updated_at",
		}),
	}).Create(instance).Error
}

func (r *InstanceRepository) FindByIdentity(studyUID, seriesUID, sopUID string) (*entity.Instance, error) {
	var instance entity.Instance
	err := r.db.Where(
		"study_instance_uid = ? AND series_instance_uid = ? AND sop_instance_uid = ?",
		studyUID, seriesUID, sopUID,
	).First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *InstanceRepository) FindByStudyUID(studyUID string) ([]entity.Instance, error) {
	var instances []entity.Instance
	err := r.db.Where("study_instance_uid = ?", studyUID).
		Order("series_instance_uid, sop_instance_uid").
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *InstanceRepository) DeleteByIdentity(studyUID, seriesUID, sopUID string) (int64, error) {
	result := r.db.Delete(&entity.Instance{},
		"study_instance_uid = ? AND series_instance_uid = ? AND sop_instance_uid = ?",
		studyUID, seriesUID, sopUID,
	)
	return result.RowsAffected, result.Error
}

func (r *InstanceRepository) DeleteByStudyUID(studyUID string) error {
	return r.db.Delete(&entity.Instance{}, "study_instance_uid = ?", studyUID).Error
}
