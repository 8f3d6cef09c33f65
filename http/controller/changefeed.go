package controller

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dicomlite/dicomlite/repository"
	"github.com/dicomlite/dicomlite/utils"
)

// GetChangeFeed reads the feed ascending by sequence, optionally bounded by an
// inclusive startTime/endTime window over the entry timestamps.
func (ctrl *Controller) GetChangeFeed(c *gin.Context) {
	ctx := c.Request.Context()

	var query repository.ChangeFeedQuery

	if val := c.Query("offset"); val != "" {
		offset, err := strconv.ParseInt(val, 10, 64)
		if err != nil || offset < 0 {
			utils.JSON400(c, "Invalid offset")
			return
		}
		query.Offset = offset
	}
	if val := c.Query("limit"); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit <= 0 {
			utils.JSON400(c, "Invalid limit")
			return
		}
		query.Limit = limit
	}
	if val := c.Query("startTime"); val != "" {
		start, err := time.Parse(time.RFC3339, val)
		if err != nil {
			utils.JSON400(c, "Invalid startTime, expected RFC3339")
			return
		}
		query.StartTime = &start
	}
	if val := c.Query("endTime"); val != "" {
		end, err := time.Parse(time.RFC3339, val)
		if err != nil {
			utils.JSON400(c, "Invalid endTime, expected RFC3339")
			return
		}
		query.EndTime = &end
	}

	entries, err := ctrl.Repository.ChangeFeedRepo.Query(query)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[ChangeFeed] query failed")
		utils.JSON500(c, "Failed to read change feed")
		return
	}

	utils.JSON200(c, gin.H{"entries": entries})
}

func (ctrl *Controller) GetChangeFeedLatest(c *gin.Context) {
	ctx := c.Request.Context()

	entry, err := ctrl.Repository.ChangeFeedRepo.Latest()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[ChangeFeed] latest lookup failed")
		utils.JSON500(c, "Failed to read change feed")
		return
	}
	if entry == nil {
		utils.JSON204(c)
		return
	}
	utils.JSON200(c, entry)
}
