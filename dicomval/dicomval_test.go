package dicomval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dicomlite/dicomlite/testutil"
)

func TestDecodeAndExtract(t *testing.T) {
	data := testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.9")

	attrs, err := DecodeAndExtract(data)
	require.NoError(t, err)
	require.Equal(t, "1.2.3", attrs.StudyInstanceUID)
	require.Equal(t, "4.5.6", attrs.SeriesInstanceUID)
	require.Equal(t, "7.8.9", attrs.SOPInstanceUID)
	require.Equal(t, "PAT-001", attrs.PatientID)
	require.Equal(t, "CT", attrs.Modality)
	require.Empty(t, attrs.MissingSearchable)
	require.Equal(t, "DOE^JANE", attrs.Searchable["PatientName"])
	require.Equal(t, "ACC-001", attrs.Searchable["AccessionNumber"])
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not dicom", []byte("definitely not a dicom object")},
		{"truncated", testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.9")[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAndExtract(tt.data)
			require.ErrorIs(t, err, ErrStructuralDecode)
		})
	}
}

func TestExtractMissingRequiredAttribute(t *testing.T) {
	data := testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.9", testutil.WithoutPatientID())

	_, err := DecodeAndExtract(data)
	require.ErrorIs(t, err, ErrMissingRequired)
	require.Contains(t, err.Error(), "PatientID")
}

func TestExtractMissingSearchableIsWarningOnly(t *testing.T) {
	data := testutil.DICOMBytes(t, "1.2.3", "4.5.6", "7.8.9", testutil.WithoutSearchable())

	attrs, err := DecodeAndExtract(data)
	require.NoError(t, err)
	require.Len(t, attrs.MissingSearchable, 5)
	require.Contains(t, attrs.MissingSearchable, "PatientName")
	require.Contains(t, attrs.MissingSearchable, "StudyDate")
	require.Empty(t, attrs.Searchable)
}
