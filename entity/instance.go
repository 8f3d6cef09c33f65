package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Instance is the atomic stored unit. The identity triple (study, series, SOP
// instance UID) is immutable and unique across the store; a collision is either
// rejected (create-only) or fully superseded (upsert), never partially updated.
type Instance struct {
	ID                uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	StudyInstanceUID  string            `json:"study_instance_uid" gorm:"type:varchar(255);not null;uniqueIndex:idx_identity;index"`
	SeriesInstanceUID string            `json:"series_instance_uid" gorm:"type:varchar(255);not null;uniqueIndex:idx_identity"`
	SOPInstanceUID    string            `json:"sop_instance_uid" gorm:"type:varchar(255);not null;uniqueIndex:idx_identity"`
	PatientID         string            `json:"patient_id" gorm:"type:varchar(255);not null"`
	Modality          string            `json:"modality" gorm:"type:varchar(16);not null"`
	Searchable        datatypes.JSONMap `json:"searchable" gorm:"type:jsonb"`
	BlobPath          string            `json:"blob_path" gorm:"type:varchar(1024);not null"`
	SizeBytes         int64             `json:"size_bytes" gorm:"not null"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}
