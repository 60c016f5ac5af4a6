package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cuadra/internal/calendar"
	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
	"cuadra/internal/pagination"
	"cuadra/internal/services"
)

// ObligationHandler handles recurring and one-off obligations.
type ObligationHandler struct {
	obligationService services.ObligationServicer
	auditService      services.AuditServicer
}

// NewObligationHandler creates a new ObligationHandler.
func NewObligationHandler(obligationService services.ObligationServicer, auditService services.AuditServicer) *ObligationHandler {
	return &ObligationHandler{obligationService: obligationService, auditService: auditService}
}

// PeriodRequest is a year and month.
type PeriodRequest struct {
	Year  int `json:"year" binding:"required,min=1,max=9999"`
	Month int `json:"month" binding:"required,min=1,max=12"`
}

func (p PeriodRequest) period() calendar.Period {
	return calendar.NewPeriod(p.Year, p.Month)
}

// CreateObligationRequest declares either a recurring or a one-off
// obligation, selected by Kind. Start, End, Installments, PaymentDay and
// IsGoal apply to recurring obligations; Period and DeadlineDate to one-offs.
type CreateObligationRequest struct {
	Kind         string         `json:"kind" binding:"required,obligation_kind"`
	Description  string         `json:"description" binding:"required,min=1,max=255"`
	Amount       int64          `json:"amount" binding:"required,gt=0"`
	Direction    string         `json:"direction" binding:"required,direction"`
	Category     string         `json:"category" binding:"max=100"`
	Start        *PeriodRequest `json:"start"`
	End          *PeriodRequest `json:"end"`
	Installments *int           `json:"installments" binding:"omitempty,min=1"`
	PaymentDay   *int           `json:"payment_day" binding:"omitempty,payment_day"`
	IsGoal       bool           `json:"is_goal"`
	Period       *PeriodRequest `json:"period"`
	DeadlineDate *string        `json:"deadline_date" binding:"omitempty,civil_date"`
}

// UpdateRecurringRequest replaces the writable fields of a recurring
// obligation.
type UpdateRecurringRequest struct {
	Description  string         `json:"description" binding:"required,min=1,max=255"`
	Amount       int64          `json:"amount" binding:"required,gt=0"`
	Direction    string         `json:"direction" binding:"required,direction"`
	Category     string         `json:"category" binding:"max=100"`
	Start        PeriodRequest  `json:"start" binding:"required"`
	End          *PeriodRequest `json:"end"`
	Installments *int           `json:"installments" binding:"omitempty,min=1"`
	PaymentDay   *int           `json:"payment_day" binding:"omitempty,payment_day"`
	IsGoal       bool           `json:"is_goal"`
}

// UpdateOneOffRequest replaces the writable fields of a one-off obligation.
type UpdateOneOffRequest struct {
	Description  string        `json:"description" binding:"required,min=1,max=255"`
	Amount       int64         `json:"amount" binding:"required,gt=0"`
	Direction    string        `json:"direction" binding:"required,direction"`
	Category     string        `json:"category" binding:"max=100"`
	Period       PeriodRequest `json:"period" binding:"required"`
	DeadlineDate *string       `json:"deadline_date" binding:"omitempty,civil_date"`
}

func optionalPeriod(p *PeriodRequest) *calendar.Period {
	if p == nil {
		return nil
	}
	period := p.period()
	return &period
}

// CreateObligation handles declaring an obligation in a group
// @Summary     Create an obligation
// @Description Declare a recurring or one-off income or expense. Pending members cannot create obligations.
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       request body CreateObligationRequest true "Obligation details"
// @Success     201 {object} models.RecurringObligation "Obligation created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/obligations [post]
func (h *ObligationHandler) CreateObligation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	groupID := c.Param("group_id")
	ctx := c.Request.Context()

	if req.Kind == string(models.SourceRecurring) {
		if req.Start == nil {
			respondWithError(c, apperrors.Validation("start", "start is required for recurring obligations"))
			return
		}
		o, err := h.obligationService.CreateRecurring(ctx, userID, groupID, services.RecurringInput{
			Description:  req.Description,
			Amount:       req.Amount,
			Direction:    models.Direction(req.Direction),
			Category:     req.Category,
			Start:        req.Start.period(),
			End:          optionalPeriod(req.End),
			Installments: req.Installments,
			PaymentDay:   req.PaymentDay,
			IsGoal:       req.IsGoal,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}
		h.auditService.Log(userID, &groupID, "CREATE_OBLIGATION", "recurring_obligation", o.ID, c.ClientIP(),
			map[string]interface{}{"amount": o.Amount, "direction": o.Direction, "kind": o.Kind})
		c.JSON(http.StatusCreated, gin.H{"obligation": o})
		return
	}

	if req.Period == nil {
		respondWithError(c, apperrors.Validation("period", "period is required for one-off obligations"))
		return
	}
	deadline, err := parseDate("deadline_date", req.DeadlineDate)
	if err != nil {
		respondWithError(c, err)
		return
	}
	o, err := h.obligationService.CreateOneOff(ctx, userID, groupID, services.OneOffInput{
		Description:  req.Description,
		Amount:       req.Amount,
		Direction:    models.Direction(req.Direction),
		Category:     req.Category,
		Period:       req.Period.period(),
		DeadlineDate: deadline,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(userID, &groupID, "CREATE_OBLIGATION", "one_off_obligation", o.ID, c.ClientIP(),
		map[string]interface{}{"amount": o.Amount, "direction": o.Direction, "kind": o.Kind})
	c.JSON(http.StatusCreated, gin.H{"obligation": o})
}

// ListRecurring handles listing a group's recurring obligations
// @Summary     List recurring obligations
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       group_id  path  string true  "Group ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       sort      query string false "description, amount, category or created_at"
// @Param       order     query string false "asc or desc"
// @Success     200 {object} pagination.PageResponse[models.RecurringObligation] "Paginated obligations"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/obligations/recurring [get]
func (h *ObligationHandler) ListRecurring(c *gin.Context) {
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

	result, err := h.obligationService.ListRecurring(c.Request.Context(), userID, c.Param("group_id"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListOneOffs handles listing a group's one-off obligations
// @Summary     List one-off obligations
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       group_id  path  string true  "Group ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.OneOffObligation] "Paginated obligations"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/obligations/one-off [get]
func (h *ObligationHandler) ListOneOffs(c *gin.Context) {
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

	result, err := h.obligationService.ListOneOffs(c.Request.Context(), userID, c.Param("group_id"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRecurring handles the retrieval of a recurring obligation
// @Summary     Get recurring obligation
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.RecurringObligation "Obligation"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /obligations/recurring/{id} [get]
func (h *ObligationHandler) GetRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	o, err := h.obligationService.GetRecurring(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligation": o})
}

// UpdateRecurring handles updating a recurring obligation
// @Summary     Update recurring obligation
// @Description Only the owner or a group admin may update an obligation.
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Param       request body UpdateRecurringRequest true "Obligation fields"
// @Success     200 {object} models.RecurringObligation "Updated obligation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the owner or an admin"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     409 {object} ErrorResponse "Payments recorded outside the new range"
// @Router      /obligations/recurring/{id} [put]
func (h *ObligationHandler) UpdateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	o, err := h.obligationService.UpdateRecurring(c.Request.Context(), userID, c.Param("id"), services.RecurringInput{
		Description:  req.Description,
		Amount:       req.Amount,
		Direction:    models.Direction(req.Direction),
		Category:     req.Category,
		Start:        req.Start.period(),
		End:          optionalPeriod(req.End),
		Installments: req.Installments,
		PaymentDay:   req.PaymentDay,
		IsGoal:       req.IsGoal,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &o.GroupID, "UPDATE_OBLIGATION", "recurring_obligation", o.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"obligation": o})
}

// DeleteRecurring handles deleting a recurring obligation and its payments
// @Summary     Delete recurring obligation
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} map[string]string "Obligation deleted"
// @Failure     403 {object} ErrorResponse "Not the owner or an admin"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /obligations/recurring/{id} [delete]
func (h *ObligationHandler) DeleteRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.obligationService.DeleteRecurring(c.Request.Context(), userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, nil, "DELETE_OBLIGATION", "recurring_obligation", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Obligation deleted successfully"})
}

// GetOneOff handles the retrieval of a one-off obligation
// @Summary     Get one-off obligation
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} models.OneOffObligation "Obligation"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /obligations/one-off/{id} [get]
func (h *ObligationHandler) GetOneOff(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	o, err := h.obligationService.GetOneOff(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"obligation": o})
}

// UpdateOneOff handles updating a one-off obligation
// @Summary     Update one-off obligation
// @Tags        obligations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Param       request body UpdateOneOffRequest true "Obligation fields"
// @Success     200 {object} models.OneOffObligation "Updated obligation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the owner or an admin"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Failure     409 {object} ErrorResponse "Payments recorded outside the new period"
// @Router      /obligations/one-off/{id} [put]
func (h *ObligationHandler) UpdateOneOff(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateOneOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	deadline, err := parseDate("deadline_date", req.DeadlineDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	o, err := h.obligationService.UpdateOneOff(c.Request.Context(), userID, c.Param("id"), services.OneOffInput{
		Description:  req.Description,
		Amount:       req.Amount,
		Direction:    models.Direction(req.Direction),
		Category:     req.Category,
		Period:       req.Period.period(),
		DeadlineDate: deadline,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &o.GroupID, "UPDATE_OBLIGATION", "one_off_obligation", o.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"obligation": o})
}

// DeleteOneOff handles deleting a one-off obligation and its payments
// @Summary     Delete one-off obligation
// @Tags        obligations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Obligation ID"
// @Success     200 {object} map[string]string "Obligation deleted"
// @Failure     403 {object} ErrorResponse "Not the owner or an admin"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /obligations/one-off/{id} [delete]
func (h *ObligationHandler) DeleteOneOff(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.obligationService.DeleteOneOff(c.Request.Context(), userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, nil, "DELETE_OBLIGATION", "one_off_obligation", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Obligation deleted successfully"})
}
