package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cuadra/internal/models"
	"cuadra/internal/pagination"
	"cuadra/internal/services"
)

// GroupHandler handles groups, their members and invitations.
type GroupHandler struct {
	groupService services.GroupServicer
	auditService services.AuditServicer
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groupService services.GroupServicer, auditService services.AuditServicer) *GroupHandler {
	return &GroupHandler{groupService: groupService, auditService: auditService}
}

// CreateGroupRequest represents the request payload for creating a group.
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// UpdateGroupRequest represents the request payload for updating a group.
type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// InviteRequest names the user to invite by email.
type InviteRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

// ChangeRoleRequest carries the new role of a member.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,member_role"`
}

// AcceptTokenRequest carries a one-time invitation token.
type AcceptTokenRequest struct {
	Token string `json:"token" binding:"required,len=64,hexadecimal"`
}

// CreateGroup handles the creation of a group
// @Summary     Create a group
// @Description Create a shared group; the caller becomes its active admin
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateGroupRequest true "Group details"
// @Success     201 {object} models.Group "Group created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	group, err := h.groupService.CreateGroup(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &group.ID, "CREATE_GROUP", "group", group.ID, c.ClientIP(),
		map[string]interface{}{"name": group.Name})

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ListGroups handles the retrieval of the caller's groups
// @Summary     List groups
// @Description Get a paginated list of the groups the caller is an active member of
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       sort      query string false "name or created_at"
// @Param       order     query string false "asc or desc"
// @Success     200 {object} pagination.PageResponse[models.Group] "Paginated groups"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.groupService.ListUserGroups(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGroup handles the retrieval of one group
// @Summary     Get group
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {object} models.Group "Group details"
// @Failure     403 {object} ErrorResponse "Not a member"
// @Router      /groups/{group_id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	group, err := h.groupService.GetGroup(c.Request.Context(), userID, c.Param("group_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// UpdateGroup handles renaming a group
// @Summary     Update group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       request body UpdateGroupRequest true "Group fields"
// @Success     200 {object} models.Group "Updated group"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Router      /groups/{group_id} [put]
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	groupID := c.Param("group_id")
	group, err := h.groupService.UpdateGroup(c.Request.Context(), userID, groupID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "UPDATE_GROUP", "group", groupID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup handles deleting a group with everything in it
// @Summary     Delete group
// @Description Delete a group, its obligations, payments and memberships. Creator only.
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {object} map[string]string "Group deleted"
// @Failure     403 {object} ErrorResponse "Not the creator"
// @Router      /groups/{group_id} [delete]
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID := c.Param("group_id")
	if err := h.groupService.DeleteGroup(c.Request.Context(), userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "DELETE_GROUP", "group", groupID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

// ListMembers handles listing the members of a group
// @Summary     List members
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {array}  models.GroupMembership "Members"
// @Failure     403 {object} ErrorResponse "Not a member"
// @Router      /groups/{group_id}/members [get]
func (h *GroupHandler) ListMembers(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	members, err := h.groupService.ListMembers(c.Request.Context(), userID, c.Param("group_id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// Invite handles inviting a user by email
// @Summary     Invite a user
// @Description Create or refresh a pending invitation. The token is only returned here.
// @Tags        members
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       request body InviteRequest true "Invitee"
// @Success     201 {object} services.Invitation "Invitation created"
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     409 {object} ErrorResponse "Already a member"
// @Router      /groups/{group_id}/invitations [post]
func (h *GroupHandler) Invite(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	groupID := c.Param("group_id")
	inv, err := h.groupService.Invite(c.Request.Context(), userID, groupID, req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "INVITE_MEMBER", "membership", inv.Membership.ID, c.ClientIP(),
		map[string]interface{}{"invitee_id": inv.Membership.UserID})

	c.JSON(http.StatusCreated, gin.H{"invitation": inv})
}

// RemoveMember handles removing a member from a group
// @Summary     Remove member
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       user_id  path string true "Member user ID"
// @Success     200 {object} map[string]string "Member removed"
// @Failure     403 {object} ErrorResponse "Not an admin"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Router      /groups/{group_id}/members/{user_id} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID, targetID := c.Param("group_id"), c.Param("user_id")
	if err := h.groupService.RemoveMember(c.Request.Context(), userID, groupID, targetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "REMOVE_MEMBER", "membership", targetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Member removed successfully"})
}

// DeactivateMember handles suspending a member
// @Summary     Deactivate member
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       user_id  path string true "Member user ID"
// @Success     200 {object} models.GroupMembership "Membership"
// @Failure     409 {object} ErrorResponse "Member is not active"
// @Router      /groups/{group_id}/members/{user_id}/deactivate [post]
func (h *GroupHandler) DeactivateMember(c *gin.Context) {
	h.transitionMember(c, "DEACTIVATE_MEMBER", h.groupService.DeactivateMember)
}

// ReactivateMember handles restoring a deactivated member
// @Summary     Reactivate member
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       user_id  path string true "Member user ID"
// @Success     200 {object} models.GroupMembership "Membership"
// @Failure     409 {object} ErrorResponse "Member is not deactivated"
// @Router      /groups/{group_id}/members/{user_id}/reactivate [post]
func (h *GroupHandler) ReactivateMember(c *gin.Context) {
	h.transitionMember(c, "REACTIVATE_MEMBER", h.groupService.ReactivateMember)
}

func (h *GroupHandler) transitionMember(c *gin.Context, action string,
	fn func(ctx context.Context, callerID, groupID, targetID string) (*models.GroupMembership, error)) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID, targetID := c.Param("group_id"), c.Param("user_id")
	m, err := fn(c.Request.Context(), userID, groupID, targetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, action, "membership", m.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"membership": m})
}

// ChangeRole handles promoting or demoting a member
// @Summary     Change member role
// @Tags        members
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       user_id  path string true "Member user ID"
// @Param       request body ChangeRoleRequest true "New role"
// @Success     200 {object} models.GroupMembership "Membership"
// @Failure     403 {object} ErrorResponse "Not an admin, or the target is the creator"
// @Router      /groups/{group_id}/members/{user_id}/role [put]
func (h *GroupHandler) ChangeRole(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	groupID, targetID := c.Param("group_id"), c.Param("user_id")
	m, err := h.groupService.ChangeRole(c.Request.Context(), userID, groupID, targetID, models.MemberRole(req.Role))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "CHANGE_ROLE", "membership", m.ID, c.ClientIP(),
		map[string]interface{}{"role": req.Role})

	c.JSON(http.StatusOK, gin.H{"membership": m})
}

// Leave handles the caller leaving a group
// @Summary     Leave group
// @Description Remove the caller's membership. The creator may only leave as the last active member, which deletes the group.
// @Tags        members
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {object} map[string]string "Left the group"
// @Failure     409 {object} ErrorResponse "Creator cannot leave"
// @Router      /groups/{group_id}/leave [post]
func (h *GroupHandler) Leave(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID := c.Param("group_id")
	if err := h.groupService.Leave(c.Request.Context(), userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "LEAVE_GROUP", "group", groupID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Left the group successfully"})
}

// ListInvitations handles listing the caller's pending invitations
// @Summary     List pending invitations
// @Tags        invitations
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} models.GroupMembership "Pending invitations"
// @Router      /invitations [get]
func (h *GroupHandler) ListInvitations(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	invitations, err := h.groupService.ListPendingInvitations(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

// AcceptInvitation handles accepting the caller's invitation to a group
// @Summary     Accept invitation
// @Tags        invitations
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {object} models.GroupMembership "Membership"
// @Failure     404 {object} ErrorResponse "Invitation not found"
// @Failure     410 {object} ErrorResponse "Invitation expired"
// @Router      /invitations/{group_id}/accept [post]
func (h *GroupHandler) AcceptInvitation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID := c.Param("group_id")
	m, err := h.groupService.Accept(c.Request.Context(), userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "ACCEPT_INVITATION", "membership", m.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"membership": m})
}

// AcceptInvitationToken handles accepting an invitation by its token
// @Summary     Accept invitation by token
// @Tags        invitations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body AcceptTokenRequest true "Invitation token"
// @Success     200 {object} models.GroupMembership "Membership"
// @Failure     404 {object} ErrorResponse "Invitation not found"
// @Failure     410 {object} ErrorResponse "Invitation expired"
// @Router      /invitations/accept [post]
func (h *GroupHandler) AcceptInvitationToken(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AcceptTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	m, err := h.groupService.AcceptToken(c.Request.Context(), userID, req.Token)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &m.GroupID, "ACCEPT_INVITATION", "membership", m.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"membership": m})
}

// RejectInvitation handles declining an invitation
// @Summary     Reject invitation
// @Tags        invitations
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {object} map[string]string "Invitation rejected"
// @Failure     404 {object} ErrorResponse "Invitation not found"
// @Router      /invitations/{group_id}/reject [post]
func (h *GroupHandler) RejectInvitation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groupID := c.Param("group_id")
	if err := h.groupService.Reject(c.Request.Context(), userID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &groupID, "REJECT_INVITATION", "group", groupID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Invitation rejected"})
}

// ListActivity handles listing a group's audit trail
// @Summary     Group activity
// @Description Audit trail of the group, newest first
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       group_id  path  string true  "Group ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       sort      query string false "created_at or action"
// @Param       order     query string false "asc or desc"
// @Success     200 {object} pagination.PageResponse[models.AuditLog] "Paginated activity"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/activity [get]
func (h *GroupHandler) ListActivity(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.auditService.ListGroupActivity(c.Request.Context(), userID, c.Param("group_id"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
