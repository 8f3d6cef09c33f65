package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dicomlite/dicomlite/config"
	"github.com/dicomlite/dicomlite/dicomval"
	"github.com/dicomlite/dicomlite/entity"
	"github.com/dicomlite/dicomlite/infra"
	"github.com/dicomlite/dicomlite/repository"
)

type Mode string

const (
	ModeCreateOnly Mode = "create-only"
	ModeUpsert     Mode = "upsert"
)

// Reason codes reported per object in the upload response.
const (
	CodeDuplicate         = 45070 // identity triple already stored (create-only)
	CodeValidationFailure = 272   // required attribute missing
	WarnMissingSearchable = 1
)

// ExpiryDirective is the computed upload expiry: today only "relative to now"
// anchoring with study scope.
type ExpiryDirective struct {
	Duration time.Duration
}

type ObjectResult struct {
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	Accepted          bool
	Action            string
	Sequence          int64
	FailureCode       int
	WarningCodes      []int
	RetrieveURL       string
}

type UploadResult struct {
	Objects []ObjectResult
	Entries []entity.ChangeFeedEntry
}

func (r *UploadResult) AcceptedCount() int {
	n := 0
	for _, o := range r.Objects {
		if o.Accepted {
			n++
		}
	}
	return n
}

func (r *UploadResult) RejectedCount() int {
	return len(r.Objects) - r.AcceptedCount()
}

func (r *UploadResult) HasWarnings() bool {
	for _, o := range r.Objects {
		if len(o.WarningCodes) > 0 {
			return true
		}
	}
	return false
}

// IngestService runs the upload pipeline: decode, validate, decide
// create/reject/replace, then commit blob bytes, metadata rows and change
// feed entries as one unit of work per request.
type IngestService struct {
	cfg   *config.Config
	infra *infra.Infra
	repo  *repository.Repository
}

func NewIngestService(cfg *config.Config, infra *infra.Infra, repo *repository.Repository) *IngestService {
	return &IngestService{
		cfg:   cfg,
		infra: infra,
		repo:  repo,
	}
}

type ingestCandidate struct {
	data   []byte
	attrs  *dicomval.Attributes
	result *ObjectResult
}

// ProcessUpload ingests one multi-part upload. A structural decode failure in
// any part fails the whole request before any write; attribute-level failures
// reject only the affected object. All accepted objects commit atomically and
// their committed feed entries are handed to the fan-out manager without
// blocking the caller.
func (s *IngestService) ProcessUpload(ctx context.Context, parts [][]byte, mode Mode, expiry *ExpiryDirective) (*UploadResult, error) {
	result := &UploadResult{
		Objects: make([]ObjectResult, len(parts)),
	}

	// Decode everything first so an undecodable part can reject the request
	// before anything is written.
	candidates := make([]*ingestCandidate, 0, len(parts))
	for i, data := range parts {
		attrs, err := dicomval.DecodeAndExtract(data)
		if err != nil {
			if errors.Is(err, dicomval.ErrStructuralDecode) {
				return nil, err
			}
			// Missing required attribute: this object fails, siblings proceed.
			result.Objects[i] = ObjectResult{FailureCode: CodeValidationFailure}
			continue
		}

		result.Objects[i] = ObjectResult{
			StudyInstanceUID:  attrs.StudyInstanceUID,
			SeriesInstanceUID: attrs.SeriesInstanceUID,
			SOPInstanceUID:    attrs.SOPInstanceUID,
		}
		candidates = append(candidates, &ingestCandidate{
			data:   data,
			attrs:  attrs,
			result: &result.Objects[i],
		})
	}

	if len(candidates) == 0 {
		return result, nil
	}

	entries, err := s.commit(ctx, candidates, mode, expiry)
	if err != nil {
		return nil, err
	}
	result.Entries = entries

	// Post-commit fan-out; a delivery failure can never alter the committed
	// transaction or the response being returned.
	if len(entries) > 0 {
		publishCtx := context.WithoutCancel(ctx)
		go s.infra.Fanout.Publish(publishCtx, entries...)
	}

	return result, nil
}

// pendingReplacement defers a replacement's blob write until after the
// commit: the bytes under that path belong to an already committed instance,
// and an aborted batch must leave them untouched.
type pendingReplacement struct {
	attrs *dicomval.Attributes
	data  []byte
}

// commit runs the single transaction covering every accepted object's
// metadata row, feed entry and study expiry. Blobs for new instances are
// written after the row insert succeeds but before the commit, so a committed
// row always has its bytes while an aborted transaction leaves at most
// orphaned files. Replacement bytes land only once the transaction has
// committed; until then the previously stored bytes stay in place.
func (s *IngestService) commit(ctx context.Context, candidates []*ingestCandidate, mode Mode, expiry *ExpiryDirective) ([]entity.ChangeFeedEntry, error) {
	tx := s.repo.BeginTransaction()
	if tx.Error != nil {
		return nil, tx.Error
	}
	txRepo := s.repo.WithTransaction(tx)

	var entries []entity.ChangeFeedEntry
	var writtenBlobs [][3]string
	var replacements []pendingReplacement
	studies := make(map[string]*dicomval.Attributes)

	// Only blobs this request created are removed on abort; blobs that
	// existed before the request belong to committed rows.
	cleanup := func() {
		tx.Rollback()
		for _, triple := range writtenBlobs {
			_ = s.infra.Blob.Delete(ctx, triple[0], triple[1], triple[2])
		}
	}

	now := time.Now().UTC()
	for _, candidate := range candidates {
		attrs := candidate.attrs

		action, existing, err := s.writeInstance(txRepo, candidate, mode, now)
		if err != nil {
			cleanup()
			return nil, err
		}
		if action == "" {
			// Duplicate under create-only: rejected, nothing written for it.
			continue
		}

		var blobPath string
		if action == entity.FeedActionReplaced {
			blobPath = existing.BlobPath
			replacements = append(replacements, pendingReplacement{attrs: attrs, data: candidate.data})
			if err := txRepo.ChangeFeedRepo.MarkSuperseded(attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID); err != nil {
				cleanup()
				return nil, err
			}
		} else {
			blobPath, err = s.infra.Blob.Put(ctx, attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID, candidate.data)
			if err != nil {
				cleanup()
				return nil, fmt.Errorf("failed to store blob: %w", err)
			}
			writtenBlobs = append(writtenBlobs, [3]string{attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID})
		}

		if err := txRepo.InstanceRepo.Upsert(&entity.Instance{
			StudyInstanceUID:  attrs.StudyInstanceUID,
			SeriesInstanceUID: attrs.SeriesInstanceUID,
			SOPInstanceUID:    attrs.SOPInstanceUID,
			PatientID:         attrs.PatientID,
			Modality:          attrs.Modality,
			Searchable:        attrs.Searchable,
			BlobPath:          blobPath,
			SizeBytes:         int64(len(candidate.data)),
		}); err != nil {
			cleanup()
			return nil, err
		}

		entry := entity.ChangeFeedEntry{
			StudyInstanceUID:  attrs.StudyInstanceUID,
			SeriesInstanceUID: attrs.SeriesInstanceUID,
			SOPInstanceUID:    attrs.SOPInstanceUID,
			Action:            action,
			State:             entity.FeedStateCurrent,
			Timestamp:         now,
		}
		if err := txRepo.ChangeFeedRepo.Append(&entry); err != nil {
			cleanup()
			return nil, err
		}
		entries = append(entries, entry)

		candidate.result.Accepted = true
		candidate.result.Action = action
		candidate.result.Sequence = entry.Sequence
		candidate.result.RetrieveURL = fmt.Sprintf("%s/studies/%s/series/%s/instances/%s",
			s.cfg.EnvConfig.Service.ExternalURL,
			attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID)
		for range attrs.MissingSearchable {
			candidate.result.WarningCodes = append(candidate.result.WarningCodes, WarnMissingSearchable)
		}

		if err := txRepo.SeriesRepo.Upsert(&entity.Series{
			StudyInstanceUID:  attrs.StudyInstanceUID,
			SeriesInstanceUID: attrs.SeriesInstanceUID,
			Modality:          attrs.Modality,
		}); err != nil {
			cleanup()
			return nil, err
		}
		studies[attrs.StudyInstanceUID] = attrs
	}

	for studyUID, attrs := range studies {
		if err := txRepo.StudyRepo.Upsert(&entity.Study{
			StudyInstanceUID: studyUID,
			PatientID:        attrs.PatientID,
			Searchable:       attrs.Searchable,
		}); err != nil {
			cleanup()
			return nil, err
		}
		if expiry != nil {
			if err := txRepo.StudyRepo.SetExpiry(studyUID, now.Add(expiry.Duration)); err != nil {
				cleanup()
				return nil, err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		cleanup()
		return nil, err
	}

	// The metadata is committed; overwrite the superseded bytes now. A
	// failure here leaves the prior bytes in place under the committed path
	// and is logged, never surfaced as a request failure.
	for _, replacement := range replacements {
		attrs := replacement.attrs
		if _, err := s.infra.Blob.Put(ctx, attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID, replacement.data); err != nil {
			s.infra.Logger.ErrorWithContextf(ctx, err,
				"[Ingest] failed to write replacement blob for %s/%s/%s",
				attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID)
		}
	}
	return entries, nil
}

// writeInstance resolves the collision policy for one object. It returns the
// feed action ("" when the object is rejected as a duplicate) and, for a
// replacement, the committed row being superseded.
func (s *IngestService) writeInstance(txRepo *repository.Repository, candidate *ingestCandidate, mode Mode, now time.Time) (string, *entity.Instance, error) {
	attrs := candidate.attrs

	existing, err := txRepo.InstanceRepo.FindByIdentity(attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, err
	}

	if existing != nil {
		if mode == ModeCreateOnly {
			candidate.result.FailureCode = CodeDuplicate
			return "", nil, nil
		}
		// Upsert: the prior row and bytes are fully superseded; the Upsert
		// below replaces the row in place.
		return entity.FeedActionReplaced, existing, nil
	}

	if mode == ModeCreateOnly {
		// Reserve the identity inside the transaction so a concurrent
		// check-then-insert race resolves to one winner in the database.
		inserted, err := txRepo.InstanceRepo.CreateIfAbsent(&entity.Instance{
			StudyInstanceUID:  attrs.StudyInstanceUID,
			SeriesInstanceUID: attrs.SeriesInstanceUID,
			SOPInstanceUID:    attrs.SOPInstanceUID,
			PatientID:         attrs.PatientID,
			Modality:          attrs.Modality,
			Searchable:        attrs.Searchable,
			BlobPath:          "",
			SizeBytes:         int64(len(candidate.data)),
			CreatedAt:         now,
		})
		if err != nil {
			return "", nil, err
		}
		if !inserted {
			candidate.result.FailureCode = CodeDuplicate
			return "", nil, nil
		}
	}

	return entity.FeedActionCreated, nil, nil
}
