package infra

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
)

// MinioBlobStore is the S3-compatible blob backend, selected with
// BLOB_BACKEND=s3. Object keys mirror the filesystem layout.
type MinioBlobStore struct {
	client *MinioClient
	bucket string
}

func NewMinioBlobStore(ctx context.Context, client *MinioClient, bucket string) (*MinioBlobStore, error) {
	if err := client.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &MinioBlobStore{client: client, bucket: bucket}, nil
}

func (s *MinioBlobStore) key(studyUID, seriesUID, sopUID string) string {
	return path.Join(studyUID, seriesUID, sopUID+".dcm")
}

func (s *MinioBlobStore) Put(ctx context.Context, studyUID, seriesUID, sopUID string, data []byte) (string, error) {
	key := s.key(studyUID, seriesUID, sopUID)
	_, err := s.client.Client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/dicom"},
	)
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *MinioBlobStore) Get(ctx context.Context, studyUID, seriesUID, sopUID string) ([]byte, error) {
	obj, err := s.client.Client.GetObject(ctx, s.bucket, s.key(studyUID, seriesUID, sopUID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *MinioBlobStore) Delete(ctx context.Context, studyUID, seriesUID, sopUID string) error {
	return s.client.Client.RemoveObject(ctx, s.bucket, s.key(studyUID, seriesUID, sopUID), minio.RemoveObjectOptions{})
}

func (s *MinioBlobStore) DeleteStudy(ctx context.Context, studyUID string) error {
	objects := s.client.Client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    studyUID + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.Client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
