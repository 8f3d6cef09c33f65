package entity

import (
	"time"

	"github.com/google/uuid"
)

type Series struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	StudyInstanceUID  string    `json:"study_instance_uid" gorm:"type:varchar(255);not null;uniqueIndex:idx_study_series;index"`
	SeriesInstanceUID string    `json:"series_instance_uid" gorm:"type:varchar(255);not null;uniqueIndex:idx_study_series"`
	Modality          string    `json:"modality" gorm:"type:varchar(16)"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
