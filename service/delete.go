package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dicomlite/dicomlite/entity"
	"github.com/dicomlite/dicomlite/infra"
	"github.com/dicomlite/dicomlite/repository"
)

var ErrNotFound = errors.New("not found")

// DeleteService is the single delete path shared by explicit DELETE requests
// and the expiry sweeper: remove metadata rows and append one "deleted" feed
// entry per instance in one transaction, then remove the blob bytes and fan
// out after the commit.
type DeleteService struct {
	infra *infra.Infra
	repo  *repository.Repository
}

func NewDeleteService(infra *infra.Infra, repo *repository.Repository) *DeleteService {
	return &DeleteService{
		infra: infra,
		repo:  repo,
	}
}

func (s *DeleteService) DeleteInstance(ctx context.Context, studyUID, seriesUID, sopUID string) (*entity.ChangeFeedEntry, error) {
	tx := s.repo.BeginTransaction()
	if tx.Error != nil {
		return nil, tx.Error
	}
	txRepo := s.repo.WithTransaction(tx)

	_, err := txRepo.InstanceRepo.FindByIdentity(studyUID, seriesUID, sopUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if _, err := txRepo.InstanceRepo.DeleteByIdentity(studyUID, seriesUID, sopUID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := txRepo.ChangeFeedRepo.MarkSuperseded(studyUID, seriesUID, sopUID); err != nil {
		tx.Rollback()
		return nil, err
	}
	entry := entity.ChangeFeedEntry{
		StudyInstanceUID:  studyUID,
		SeriesInstanceUID: seriesUID,
		SOPInstanceUID:    sopUID,
		Action:            entity.FeedActionDeleted,
		State:             entity.FeedStateDeleted,
		Timestamp:         time.Now().UTC(),
	}
	if err := txRepo.ChangeFeedRepo.Append(&entry); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := txRepo.SeriesRepo.DeleteIfEmpty(studyUID, seriesUID); err != nil {
		tx.Rollback()
		return nil, err
	}
	remaining, err := txRepo.InstanceRepo.FindByStudyUID(studyUID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(remaining) == 0 {
		if err := txRepo.StudyRepo.DeleteByUID(studyUID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// Blob removal strictly after the metadata commit: a leftover file with
	// no row is a tolerated cleanup race, the reverse is not.
	if err := s.infra.Blob.Delete(ctx, studyUID, seriesUID, sopUID); err != nil {
		s.infra.Logger.ErrorWithContextf(ctx, err,
			"[Delete] failed to remove blob for %s/%s/%s", studyUID, seriesUID, sopUID)
	}

	s.infra.Fanout.Publish(context.WithoutCancel(ctx), entry)
	return &entry, nil
}

// DeleteStudy cascades over every instance of the study in one transaction.
func (s *DeleteService) DeleteStudy(ctx context.Context, studyUID string) ([]entity.ChangeFeedEntry, error) {
	tx := s.repo.BeginTransaction()
	if tx.Error != nil {
		return nil, tx.Error
	}
	txRepo := s.repo.WithTransaction(tx)

	instances, err := txRepo.InstanceRepo.FindByStudyUID(studyUID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(instances) == 0 {
		tx.Rollback()
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	entries := make([]entity.ChangeFeedEntry, 0, len(instances))
	for _, instance := range instances {
		if err := txRepo.ChangeFeedRepo.MarkSuperseded(instance.StudyInstanceUID, instance.SeriesInstanceUID, instance.SOPInstanceUID); err != nil {
			tx.Rollback()
			return nil, err
		}
		entry := entity.ChangeFeedEntry{
			StudyInstanceUID:  instance.StudyInstanceUID,
			SeriesInstanceUID: instance.SeriesInstanceUID,
			SOPInstanceUID:    instance.SOPInstanceUID,
			Action:            entity.FeedActionDeleted,
			State:             entity.FeedStateDeleted,
			Timestamp:         now,
		}
		if err := txRepo.ChangeFeedRepo.Append(&entry); err != nil {
			tx.Rollback()
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := txRepo.InstanceRepo.DeleteByStudyUID(studyUID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := txRepo.SeriesRepo.DeleteByStudyUID(studyUID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := txRepo.StudyRepo.DeleteByUID(studyUID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := s.infra.Blob.DeleteStudy(ctx, studyUID); err != nil {
		s.infra.Logger.ErrorWithContextf(ctx, err,
			"[Delete] failed to remove blobs for study %s", studyUID)
	}

	s.infra.Fanout.Publish(context.WithoutCancel(ctx), entries...)
	return entries, nil
}
