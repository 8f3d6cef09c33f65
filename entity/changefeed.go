package entity

import "time"

const (
	FeedActionCreated  = "created"
	FeedActionReplaced = "replaced"
	FeedActionDeleted  = "deleted"

	FeedStateCurrent    = "current"
	FeedStateSuperseded = "superseded"
	FeedStateDeleted    = "deleted"
)

// ChangeFeedEntry is an append-only record of one store mutation. The sequence
// is assigned by the database's own autoincrement inside the mutating
// transaction; it is the single global ordering key and is never reused, even
// across restarts. A rolled-back transaction may leave a gap. Sequence, action
// and timestamp are frozen at append; a newer entry for the same instance
// downgrades the older entries' state to superseded. Rows are never deleted.
type ChangeFeedEntry struct {
	Sequence          int64     `json:"sequence" gorm:"column:sequence;primaryKey;autoIncrement"`
	StudyInstanceUID  string    `json:"study_instance_uid" gorm:"type:varchar(255);not null"`
	SeriesInstanceUID string    `json:"series_instance_uid" gorm:"type:varchar(255);not null"`
	SOPInstanceUID    string    `json:"sop_instance_uid" gorm:"type:varchar(255);not null"`
	Action            string    `json:"action" gorm:"type:varchar(16);not null"`
	State             string    `json:"state" gorm:"type:varchar(16);not null"`
	Timestamp         time.Time `json:"timestamp" gorm:"not null;index"`
}

func (ChangeFeedEntry) TableName() string {
	return "change_feed"
}
