package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dicomlite/dicomlite/entity"
)

type ChangeFeedRepository struct {
	db *gorm.DB
}

func NewChangeFeedRepository(db *gorm.DB) *ChangeFeedRepository {
	return &ChangeFeedRepository{db: db}
}

// ChangeFeedQuery bounds a feed read. Offset/Limit paginate by sequence;
// StartTime/EndTime optionally restrict to an inclusive window over the entry
// timestamp (informational ordering stays by sequence).
type ChangeFeedQuery struct {
	Offset    int64
	Limit     int
	StartTime *time.Time
	EndTime   *time.Time
}

const defaultFeedLimit = 100

// Append writes one feed row inside the caller's transaction. The sequence is
// filled in by the database's autoincrement on insert; it must never be
// computed in application memory.
func (r *ChangeFeedRepository) Append(entry *entity.ChangeFeedEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.Create(entry).Error
}

// MarkSuperseded downgrades the instance's still-current entries before a
// newer entry for the same identity is appended. Sequence, action and
// timestamp stay frozen; only the reported state moves.
func (r *ChangeFeedRepository) MarkSuperseded(studyUID, seriesUID, sopUID string) error {
	return r.db.Model(&entity.ChangeFeedEntry{}).
		Where("study_instance_uid = ? AND series_instance_uid = ? AND sop_instance_uid = ? AND state = ?",
			studyUID, seriesUID, sopUID, entity.FeedStateCurrent).
		Update("state", entity.FeedStateSuperseded).Error
}

func (r *ChangeFeedRepository) Query(q ChangeFeedQuery) ([]entity.ChangeFeedEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	tx := r.db.Model(&entity.ChangeFeedEntry{})
	if q.Offset > 0 {
		tx = tx.Where("sequence > ?", q.Offset)
	}
	if q.StartTime != nil {
		tx = tx.Where("timestamp >= ?", *q.StartTime)
	}
	if q.EndTime != nil {
		tx = tx.Where("timestamp <= ?", *q.EndTime)
	}

	var entries []entity.ChangeFeedEntry
	err := tx.Order("sequence").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Latest returns the highest-sequence entry, or nil when the feed is empty.
func (r *ChangeFeedRepository) Latest() (*entity.ChangeFeedEntry, error) {
	var entry entity.ChangeFeedEntry
	err := r.db.Order("sequence DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
