package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cuadra/internal/logger"
	"cuadra/internal/services"
)

// SyncHandler exposes version tokens and explicit invalidation.
type SyncHandler struct {
	syncService  services.SyncServicer
	auditService services.AuditServicer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService services.SyncServicer, auditService services.AuditServicer) *SyncHandler {
	return &SyncHandler{syncService: syncService, auditService: auditService}
}

// InvalidateRequest optionally narrows an invalidation to one group.
type InvalidateRequest struct {
	GroupID *string `json:"group_id" binding:"omitempty,uuid"`
}

// CurrentVersion returns the version token of a group month
// @Summary     Current version
// @Tags        sync
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       year     path int    true "Year"
// @Param       month    path int    true "Month (1-12)"
// @Success     200 {object} map[string]int64 "Version"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/months/{year}/{month}/version [get]
func (h *SyncHandler) CurrentVersion(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	period, err := parsePeriod(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	version, err := h.syncService.CurrentVersion(c.Request.Context(), userID, c.Param("group_id"), period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"version": version})
}

// Invalidate bumps the caller's group versions
// @Summary     Invalidate
// @Description Without group_id every group the caller is an active member of is bumped.
// @Tags        sync
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body InvalidateRequest false "Optional group"
// @Success     200 {object} map[string]int64 "Highest new version"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /sync/invalidate [post]
func (h *SyncHandler) Invalidate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InvalidateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	version, err := h.syncService.Invalidate(c.Request.Context(), userID, req.GroupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, req.GroupID, "INVALIDATE", "scope_version", "", c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"version": version})
}

// InternalInvalidate bumps a group's version for a trusted service
// @Summary     Invalidate a group (internal)
// @Tags        internal
// @Produce     json
// @Param       X-API-Key header string true "Service key"
// @Param       group_id  path   string true "Group ID"
// @Success     200 {object} map[string]int64 "New version"
// @Failure     401 {object} ErrorResponse "Invalid service key"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /internal/groups/{group_id}/invalidate [post]
func (h *SyncHandler) InternalInvalidate(c *gin.Context) {
	groupID := c.Param("group_id")
	version, err := h.syncService.InvalidateGroup(c.Request.Context(), groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	logger.Named("sync").Infow("Group invalidated by service", "group_id", groupID, "version", version)

	c.JSON(http.StatusOK, gin.H{"version": version})
}
