package fanout

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dicomlite/dicomlite/entity"
)

const (
	EventTypeCreated = "dicom.image.created"
	EventTypeDeleted = "dicom.image.deleted"

	specVersion = "1.0"
	dataVersion = "1"
)

// Notification is the ephemeral envelope dispatched to providers for one
// committed change feed entry. It is never persisted by the store itself.
type Notification struct {
	ID              string           `json:"id"`
	Source          string           `json:"source"`
	SpecVersion     string           `json:"specversion"`
	Type            string           `json:"type"`
	Subject         string           `json:"subject"`
	Time            time.Time        `json:"time"`
	DataContentType string           `json:"datacontenttype"`
	DataVersion     string           `json:"dataversion"`
	Data            NotificationData `json:"data"`
}

// NotificationData carries the identity triple and the triggering entry's
// sequence. The sequence is a plain integer, never the row's internal id or
// an opaque token, so payloads stay orderable through any JSON encoder.
type NotificationData struct {
	StudyInstanceUID  string `json:"studyInstanceUid"`
	SeriesInstanceUID string `json:"seriesInstanceUid"`
	SOPInstanceUID    string `json:"sopInstanceUid"`
	Sequence          int64  `json:"sequenceNumber"`
}

// NewNotification derives the envelope from a committed feed entry and the
// service's self-reported address.
func NewNotification(entry entity.ChangeFeedEntry, source string) Notification {
	eventType := EventTypeCreated
	if entry.Action == entity.FeedActionDeleted {
		eventType = EventTypeDeleted
	}

	return Notification{
		ID:          uuid.NewString(),
		Source:      source,
		SpecVersion: specVersion,
		Type:        eventType,
		Subject: fmt.Sprintf("/studies/%s/series/%s/instances/%s",
			entry.StudyInstanceUID, entry.SeriesInstanceUID, entry.SOPInstanceUID),
		Time:            entry.Timestamp,
		DataContentType: "application/json",
		DataVersion:     dataVersion,
		Data: NotificationData{
			StudyInstanceUID:  entry.StudyInstanceUID,
			SeriesInstanceUID: entry.SeriesInstanceUID,
			SOPInstanceUID:    entry.SOPInstanceUID,
			Sequence:          entry.Sequence,
		},
	}
}
