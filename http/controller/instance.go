package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dicomlite/dicomlite/service"
	"github.com/dicomlite/dicomlite/utils"
)

// RetrieveInstance streams the stored bytes for one identity triple.
func (ctrl *Controller) RetrieveInstance(c *gin.Context) {
	ctx := c.Request.Context()
	studyUID := c.Param("study")
	seriesUID := c.Param("series")
	sopUID := c.Param("instance")

	_, err := ctrl.Repository.InstanceRepo.FindByIdentity(studyUID, seriesUID, sopUID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.JSON404(c, "Instance not found")
		return
	}
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Retrieve] metadata lookup failed")
		utils.JSON500(c, "Failed to retrieve instance")
		return
	}

	data, err := ctrl.Infra.Blob.Get(ctx, studyUID, seriesUID, sopUID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Retrieve] blob read failed for %s/%s/%s",
			studyUID, seriesUID, sopUID)
		utils.JSON500(c, "Failed to retrieve instance")
		return
	}

	c.Data(http.StatusOK, "application/dicom", data)
}

// DeleteInstance removes one instance through the shared delete path.
func (ctrl *Controller) DeleteInstance(c *gin.Context) {
	ctx := c.Request.Context()
	studyUID := c.Param("study")
	seriesUID := c.Param("series")
	sopUID := c.Param("instance")

	entry, err := ctrl.Deleter.DeleteInstance(ctx, studyUID, seriesUID, sopUID)
	if errors.Is(err, service.ErrNotFound) {
		utils.JSON404(c, "Instance not found")
		return
	}
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Delete] instance delete failed")
		utils.JSON500(c, "Failed to delete instance")
		return
	}

	utils.JSON200(c, gin.H{"deleted": 1, "sequence": entry.Sequence})
}

// DeleteStudy cascades over every instance of the study.
func (ctrl *Controller) DeleteStudy(c *gin.Context) {
	ctx := c.Request.Context()
	studyUID := c.Param("study")

	entries, err := ctrl.Deleter.DeleteStudy(ctx, studyUID)
	if errors.Is(err, service.ErrNotFound) {
		utils.JSON404(c, "Study not found")
		return
	}
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Delete] study delete failed")
		utils.JSON500(c, "Failed to delete study")
		return
	}

	utils.JSON200(c, gin.H{"deleted": len(entries)})
}
