package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore holds each instance's original bytes, one durable object per
// identity triple. It is written alongside the metadata transaction, not
// inside it: bytes land before the metadata commit, and are removed after the
// metadata delete commits, so "blob present, row absent" is the only
// acceptable transient state.
type BlobStore interface {
	Put(ctx context.Context, studyUID, seriesUID, sopUID string, data []byte) (string, error)
	Get(ctx context.Context, studyUID, seriesUID, sopUID string) ([]byte, error)
	Delete(ctx context.Context, studyUID, seriesUID, sopUID string) error
	DeleteStudy(ctx context.Context, studyUID string) error
}

// FilesystemBlobStore keeps blobs on local disk under
// <root>/<study>/<series>/<sop>.dcm.
type FilesystemBlobStore struct {
	root string
}

func NewFilesystemBlobStore(root string) (*FilesystemBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root %s: %w", root, err)
	}
	return &FilesystemBlobStore{root: root}, nil
}

func (s *FilesystemBlobStore) path(studyUID, seriesUID, sopUID string) string {
	return filepath.Join(s.root, studyUID, seriesUID, sopUID+".dcm")
}

func (s *FilesystemBlobStore) Put(_ context.Context, studyUID, seriesUID, sopUID string, data []byte) (string, error) {
	target := s.path(studyUID, seriesUID, sopUID)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	// Write-then-rename so a replaced instance never exposes a torn file.
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return target, nil
}

func (s *FilesystemBlobStore) Get(_ context.Context, studyUID, seriesUID, sopUID string) ([]byte, error) {
	return os.ReadFile(s.path(studyUID, seriesUID, sopUID))
}

func (s *FilesystemBlobStore) Delete(_ context.Context, studyUID, seriesUID, sopUID string) error {
	err := os.Remove(s.path(studyUID, seriesUID, sopUID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FilesystemBlobStore) DeleteStudy(_ context.Context, studyUID string) error {
	return os.RemoveAll(filepath.Join(s.root, studyUID))
}
