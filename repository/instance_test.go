package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/dicomlite/dicomlite/entity"
	"github.com/dicomlite/dicomlite/testutil"
)

func testInstance(blobPath string) *entity.Instance {
	return &entity.Instance{
		StudyInstanceUID:  "1.2.3",
		SeriesInstanceUID: "4.5.6",
		SOPInstanceUID:    "7.8.9",
		PatientID:         "PAT-001",
		Modality:          "CT",
		Searchable:        datatypes.JSONMap{"PatientName": "DOE^JANE"},
		BlobPath:          blobPath,
		SizeBytes:         128,
	}
}

func TestInstanceCreateIfAbsent(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewInstanceRepository(db)

	inserted, err := repo.CreateIfAbsent(testInstance("blobs/a"))
	require.NoError(t, err)
	require.True(t, inserted)

	// Same identity triple: the second insert loses without an error.
	inserted, err = repo.CreateIfAbsent(testInstance("blobs/b"))
	require.NoError(t, err)
	require.False(t, inserted)

	stored, err := repo.FindByIdentity("1.2.3", "4.5.6", "7.8.9")
	require.NoError(t, err)
	require.Equal(t, "blobs/a", stored.BlobPath, "losing insert must not overwrite the stored row")
}

func TestInstanceUpsertReplacesWholesale(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewInstanceRepository(db)

	_, err := repo.CreateIfAbsent(testInstance("blobs/a"))
	require.NoError(t, err)

	replacement := testInstance("blobs/b")
	replacement.PatientID = "PAT-002"
	replacement.SizeBytes = 256
	require.NoError(t, repo.Upsert(replacement))

	stored, err := repo.FindByIdentity("1.2.3", "4.5.6", "7.8.9")
	require.NoError(t, err)
	require.Equal(t, "blobs/b", stored.BlobPath)
	require.Equal(t, "PAT-002", stored.PatientID)
	require.Equal(t, int64(256), stored.SizeBytes)

	var count int64
	require.NoError(t, db.Model(&entity.Instance{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "upsert must supersede, not duplicate")
}

func TestStudyExpiryLookup(t *testing.T) {
	db, _ := testutil.OpenTestDB(t)
	repo := NewStudyRepository(db)

	require.NoError(t, repo.Upsert(&entity.Study{StudyInstanceUID: "1.2.3", PatientID: "PAT-001"}))
	require.NoError(t, repo.Upsert(&entity.Study{StudyInstanceUID: "1.2.4", PatientID: "PAT-002"}))

	now := time.Now().UTC()
	require.NoError(t, repo.SetExpiry("1.2.3", now.Add(-time.Minute)))

	expired, err := repo.FindExpired(now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "1.2.3", expired[0].StudyInstanceUID)

	// Pushing the expiry into the future takes the study off the list; the
	// null-expiry study never appeared on it.
	require.NoError(t, repo.SetExpiry("1.2.3", now.Add(time.Hour)))
	expired, err = repo.FindExpired(now)
	require.NoError(t, err)
	require.Empty(t, expired)
}
