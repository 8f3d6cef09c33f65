package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Study groups instances sharing a StudyInstanceUID. ExpiresAt is the sole
// authority for automatic deletion; nil means the study never expires.
type Study struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	StudyInstanceUID string            `json:"study_instance_uid" gorm:"type:varchar(255);not null;uniqueIndex:idx_study_uid"`
	PatientID        string            `json:"patient_id" gorm:"type:varchar(255);not null;index"`
	Searchable       datatypes.JSONMap `json:"searchable" gorm:"type:jsonb"`
	ExpiresAt        *time.Time        `json:"expires_at" gorm:"index"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}
