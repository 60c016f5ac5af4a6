package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cuadra/internal/models"
	"cuadra/internal/pagination"
	"cuadra/internal/services"
)

// PaymentHandler handles the payment ledger.
type PaymentHandler struct {
	paymentService services.PaymentServicer
	auditService   services.AuditServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.PaymentServicer, auditService services.AuditServicer) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, auditService: auditService}
}

// RecordPaymentRequest represents the request payload for recording a payment.
type RecordPaymentRequest struct {
	Source   string  `json:"source" binding:"required,ledger_source"`
	SourceID string  `json:"source_id" binding:"required,uuid"`
	Year     int     `json:"year" binding:"required,min=1,max=9999"`
	Month    int     `json:"month" binding:"required,min=1,max=12"`
	Amount   int64   `json:"amount" binding:"required,gt=0"`
	PaidAt   *string `json:"paid_at" binding:"omitempty,civil_date"`
	Note     string  `json:"note" binding:"max=500"`
}

// UpdatePaymentRequest represents the request payload for updating a payment.
type UpdatePaymentRequest struct {
	Amount *int64  `json:"amount" binding:"omitempty,gt=0"`
	PaidAt *string `json:"paid_at" binding:"omitempty,civil_date"`
	Note   *string `json:"note" binding:"omitempty,max=500"`
}

// ListPaymentsQuery selects the obligation whose payments are listed.
type ListPaymentsQuery struct {
	Source   string `form:"source" binding:"required,ledger_source"`
	SourceID string `form:"source_id" binding:"required,uuid"`
}

// RecordPayment handles recording a full or partial payment
// @Summary     Record a payment
// @Description Apply a payment to the instance of an obligation in one month. paid_at defaults to today.
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body RecordPaymentRequest true "Payment details"
// @Success     201 {object} models.LedgerEntry "Payment recorded"
// @Failure     400 {object} ErrorResponse "Invalid input or period outside the obligation"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	paidAt, err := parseDate("paid_at", req.PaidAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.paymentService.RecordPayment(c.Request.Context(), userID, services.PaymentInput{
		Source:   models.Source(req.Source),
		SourceID: req.SourceID,
		Period:   PeriodRequest{Year: req.Year, Month: req.Month}.period(),
		Amount:   req.Amount,
		PaidAt:   paidAt,
		Note:     req.Note,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &entry.GroupID, "RECORD_PAYMENT", "ledger_entry", entry.ID, c.ClientIP(),
		map[string]interface{}{"source_id": entry.SourceID, "amount": entry.Amount})

	c.JSON(http.StatusCreated, gin.H{"payment": entry})
}

// ListPayments handles listing the payments of an obligation
// @Summary     List payments
// @Tags        payments
// @Produce     json
// @Security    BearerAuth
// @Param       source    query string true  "recurring or one_off"
// @Param       source_id query string true  "Obligation ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.LedgerEntry] "Paginated payments"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.paymentService.ListPayments(c.Request.Context(), userID, models.Source(q.Source), q.SourceID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPayment handles the retrieval of a payment
// @Summary     Get payment
// @Tags        payments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Payment ID"
// @Success     200 {object} models.LedgerEntry "Payment"
// @Failure     404 {object} ErrorResponse "Payment not found"
// @Router      /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.paymentService.GetPayment(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": entry})
}

// UpdatePayment handles correcting a payment
// @Summary     Update payment
// @Description Only the member who recorded the payment or a group admin may change it.
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Payment ID"
// @Param       request body UpdatePaymentRequest true "Payment fields"
// @Success     200 {object} models.LedgerEntry "Updated payment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the recorder or an admin"
// @Failure     404 {object} ErrorResponse "Payment not found"
// @Router      /payments/{id} [put]
func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	paidAt, err := parseDate("paid_at", req.PaidAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.paymentService.UpdatePayment(c.Request.Context(), userID, c.Param("id"), services.PaymentUpdate{
		Amount: req.Amount,
		PaidAt: paidAt,
		Note:   req.Note,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, &entry.GroupID, "UPDATE_PAYMENT", "ledger_entry", entry.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"payment": entry})
}

// DeletePayment handles deleting a payment
// @Summary     Delete payment
// @Tags        payments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Payment ID"
// @Success     200 {object} map[string]string "Payment deleted"
// @Failure     403 {object} ErrorResponse "Not the recorder or an admin"
// @Failure     404 {object} ErrorResponse "Payment not found"
// @Router      /payments/{id} [delete]
func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	if err := h.paymentService.DeletePayment(c.Request.Context(), userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, nil, "DELETE_PAYMENT", "ledger_entry", id, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully"})
}
