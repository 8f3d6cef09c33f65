package controller

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dicomlite/dicomlite/dicomval"
	"github.com/dicomlite/dicomlite/service"
	"github.com/dicomlite/dicomlite/utils"
)

const (
	headerExpiryDuration = "Expiry-Duration-Ms"
	headerExpiryAnchor   = "Expiry-Anchor"
	headerExpiryScope    = "Expiry-Scope"
)

type uploadObjectResponse struct {
	StudyInstanceUID  string `json:"studyInstanceUid,omitempty"`
	SeriesInstanceUID string `json:"seriesInstanceUid,omitempty"`
	SOPInstanceUID    string `json:"sopInstanceUid,omitempty"`
	Status            string `json:"status"`
	Sequence          int64  `json:"sequence,omitempty"`
	RetrieveURL       string `json:"retrieveUrl,omitempty"`
	FailureCode       int    `json:"failureCode,omitempty"`
	WarningCodes      []int  `json:"warningCodes,omitempty"`
}

type uploadResponse struct {
	Status  string                 `json:"status"`
	Objects []uploadObjectResponse `json:"objects"`
}

// StoreInstances is the create-only ingestion mode: an identity collision
// rejects the colliding object with the duplicate code.
func (ctrl *Controller) StoreInstances(c *gin.Context) {
	ctrl.handleUpload(c, service.ModeCreateOnly)
}

// UpsertInstances replaces a colliding object wholesale instead of rejecting
// it.
func (ctrl *Controller) UpsertInstances(c *gin.Context) {
	ctrl.handleUpload(c, service.ModeUpsert)
}

func (ctrl *Controller) handleUpload(c *gin.Context, mode service.Mode) {
	ctx := c.Request.Context()

	parts, ok := ctrl.readParts(c)
	if !ok {
		return
	}

	expiry, ok := parseExpiryHeaders(c)
	if !ok {
		utils.JSON400(c, "Invalid expiry headers")
		return
	}

	result, err := ctrl.Ingest.ProcessUpload(ctx, parts, mode, expiry)
	if err != nil {
		if errors.Is(err, dicomval.ErrStructuralDecode) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Stow] rejected undecodable upload: %v", err)
			utils.JSON400(c, "Request body contains an undecodable DICOM object")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Stow] upload failed")
		utils.JSON500(c, "Failed to store instances")
		return
	}

	body := uploadResponse{
		Objects: make([]uploadObjectResponse, 0, len(result.Objects)),
	}
	for _, object := range result.Objects {
		entry := uploadObjectResponse{
			StudyInstanceUID:  object.StudyInstanceUID,
			SeriesInstanceUID: object.SeriesInstanceUID,
			SOPInstanceUID:    object.SOPInstanceUID,
			Sequence:          object.Sequence,
			RetrieveURL:       object.RetrieveURL,
			FailureCode:       object.FailureCode,
			WarningCodes:      object.WarningCodes,
		}
		if object.Accepted {
			entry.Status = object.Action
		} else {
			entry.Status = "failed"
		}
		body.Objects = append(body.Objects, entry)
	}

	// Post-commit status: every object rejected is a conflict; a mix of
	// success with failures or warnings is partial; otherwise full success.
	switch {
	case result.AcceptedCount() == 0:
		body.Status = "conflict"
		utils.JSON409(c, body)
	case result.RejectedCount() > 0 || result.HasWarnings():
		body.Status = "partial"
		utils.JSON202(c, body)
	default:
		body.Status = "success"
		utils.JSON200(c, body)
	}
}

// readParts validates the multipart envelope and drains every part. A
// malformed content type or boundary rejects the whole request before any
// part is parsed.
func (ctrl *Controller) readParts(c *gin.Context) ([][]byte, bool) {
	mediaType, params, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		utils.JSON400(c, "Content-Type must be a well-formed multipart media type")
		return nil, false
	}
	boundary := params["boundary"]
	if boundary == "" {
		utils.JSON400(c, "Content-Type is missing a boundary")
		return nil, false
	}

	var parts [][]byte
	reader := multipart.NewReader(c.Request.Body, boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			utils.JSON400(c, "Malformed multipart body")
			return nil, false
		}
		data, err := io.ReadAll(part)
		if err != nil {
			utils.JSON400(c, "Failed to read multipart body")
			return nil, false
		}
		parts = append(parts, data)
	}
	if len(parts) == 0 {
		utils.JSON400(c, "Request contains no parts")
		return nil, false
	}
	return parts, true
}

// parseExpiryHeaders returns the expiry directive, nil when the headers are
// absent or incomplete (all three are required together), and ok=false only
// when the trio is present but unusable.
func parseExpiryHeaders(c *gin.Context) (*service.ExpiryDirective, bool) {
	duration := c.GetHeader(headerExpiryDuration)
	anchor := c.GetHeader(headerExpiryAnchor)
	scope := c.GetHeader(headerExpiryScope)

	if duration == "" || anchor == "" || scope == "" {
		// Incomplete trio: expiry is ignored, not an error.
		return nil, true
	}

	ms, err := strconv.ParseInt(duration, 10, 64)
	if err != nil || ms < 0 {
		return nil, false
	}
	if !strings.EqualFold(anchor, "now") {
		return nil, false
	}
	if !strings.EqualFold(scope, "study") {
		return nil, false
	}

	return &service.ExpiryDirective{Duration: time.Duration(ms) * time.Millisecond}, true
}
