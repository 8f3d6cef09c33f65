// Package dicomval decodes uploaded DICOM parts and checks the attribute
// contract: identity and patient/modality attributes are required, the
// searchable set is optional and only degrades to warnings.
package dicomval

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	// ErrStructuralDecode marks bytes that are not a decodable DICOM object.
	ErrStructuralDecode = errors.New("structurally undecodable dicom object")

	// ErrMissingRequired marks an object lacking a required attribute.
	ErrMissingRequired = errors.New("missing required attribute")
)

// requiredTags must all be present and non-empty, or the object is rejected.
var requiredTags = []struct {
	tag  tag.Tag
	name string
}{
	{tag.SOPInstanceUID, "SOPInstanceUID"},
	{tag.SeriesInstanceUID, "SeriesInstanceUID"},
	{tag.StudyInstanceUID, "StudyInstanceUID"},
	{tag.PatientID, "PatientID"},
	{tag.Modality, "Modality"},
}

// searchableTags are indexed when present; absence is a warning only.
var searchableTags = []struct {
	tag  tag.Tag
	name string
}{
	{tag.PatientName, "PatientName"},
	{tag.AccessionNumber, "AccessionNumber"},
	{tag.StudyDate, "StudyDate"},
	{tag.StudyDescription, "StudyDescription"},
	{tag.ReferringPhysicianName, "ReferringPhysicianName"},
}

// Attributes is the extracted, validated view of one uploaded object.
type Attributes struct {
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	PatientID         string
	Modality          string

	Searchable        map[string]interface{}
	MissingSearchable []string
}

// Decode parses a single encoded DICOM object.
func Decode(data []byte) (dicom.Dataset, error) {
	dataset, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("%w: %v", ErrStructuralDecode, err)
	}
	return dataset, nil
}

// Extract validates the attribute contract against a decoded dataset.
func Extract(dataset dicom.Dataset) (*Attributes, error) {
	var missing []string
	required := make(map[string]string, len(requiredTags))
	for _, t := range requiredTags {
		value := stringForTag(dataset, t.tag)
		if value == "" {
			missing = append(missing, t.name)
			continue
		}
		required[t.name] = value
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingRequired, missing)
	}

	attrs := &Attributes{
		StudyInstanceUID:  required["StudyInstanceUID"],
		SeriesInstanceUID: required["SeriesInstanceUID"],
		SOPInstanceUID:    required["SOPInstanceUID"],
		PatientID:         required["PatientID"],
		Modality:          required["Modality"],
		Searchable:        make(map[string]interface{}),
	}

	for _, t := range searchableTags {
		value := stringForTag(dataset, t.tag)
		if value == "" {
			attrs.MissingSearchable = append(attrs.MissingSearchable, t.name)
			continue
		}
		attrs.Searchable[t.name] = value
	}

	return attrs, nil
}

// DecodeAndExtract is the one-shot used by the ingestion pipeline.
func DecodeAndExtract(data []byte) (*Attributes, error) {
	dataset, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Extract(dataset)
}

func stringForTag(dataset dicom.Dataset, t tag.Tag) string {
	element, err := dataset.FindElementByTag(t)
	if err != nil || element == nil {
		return ""
	}
	values, ok := element.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}
