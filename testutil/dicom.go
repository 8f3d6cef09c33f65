package testutil

import (
	"bytes"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	secondaryCaptureClassUID = "1.2.840.10008.5.1.4.1.1.7"
	explicitVRLittleEndian   = "1.2.840.10008.1.2.1"
)

type dicomOptions struct {
	patientID      string
	patientName    string
	omitPatientID  bool
	omitSearchable bool
}

type DICOMOption func(*dicomOptions)

// WithPatientName varies the encoded bytes, useful for replace tests.
func WithPatientName(name string) DICOMOption {
	return func(o *dicomOptions) { o.patientName = name }
}

// WithoutPatientID drops a required attribute.
func WithoutPatientID() DICOMOption {
	return func(o *dicomOptions) { o.omitPatientID = true }
}

// WithoutSearchable drops every optional searchable attribute.
func WithoutSearchable() DICOMOption {
	return func(o *dicomOptions) { o.omitSearchable = true }
}

func mustElem(t testing.TB, tg tag.Tag, values []string) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, values)
	if err != nil {
		t.Fatalf("failed to build element for tag %v: %v", tg, err)
	}
	return elem
}

// DICOMBytes encodes a minimal valid DICOM object for the given identity
// triple.
func DICOMBytes(t testing.TB, studyUID, seriesUID, sopUID string, opts ...DICOMOption) []byte {
	t.Helper()

	o := dicomOptions{
		patientID:   "PAT-001",
		patientName: "DOE^JANE",
	}
	for _, opt := range opts {
		opt(&o)
	}

	elements := []*dicom.Element{
		mustElem(t, tag.MediaStorageSOPClassUID, []string{secondaryCaptureClassUID}),
		mustElem(t, tag.MediaStorageSOPInstanceUID, []string{sopUID}),
		mustElem(t, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElem(t, tag.SOPClassUID, []string{secondaryCaptureClassUID}),
		mustElem(t, tag.SOPInstanceUID, []string{sopUID}),
	}
	if !o.omitSearchable {
		elements = append(elements,
			mustElem(t, tag.StudyDate, []string{"20260826"}),
			mustElem(t, tag.AccessionNumber, []string{"ACC-001"}),
		)
	}
	elements = append(elements, mustElem(t, tag.Modality, []string{"CT"}))
	if !o.omitSearchable {
		elements = append(elements,
			mustElem(t, tag.ReferringPhysicianName, []string{"REF^DOC"}),
			mustElem(t, tag.StudyDescription, []string{"Chest CT"}),
			mustElem(t, tag.PatientName, []string{o.patientName}),
		)
	}
	if !o.omitPatientID {
		elements = append(elements, mustElem(t, tag.PatientID, []string{o.patientID}))
	}
	elements = append(elements,
		mustElem(t, tag.StudyInstanceUID, []string{studyUID}),
		mustElem(t, tag.SeriesInstanceUID, []string{seriesUID}),
	)

	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: elements}, dicom.SkipVRVerification()); err != nil {
		t.Fatalf("failed to encode test dicom object: %v", err)
	}
	return buf.Bytes()
}
