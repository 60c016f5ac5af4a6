package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cuadra/internal/services"
)

// FinanceHandler serves the computed views of a group. Month views carry the
// group version and evaluation day as an ETag and honour If-None-Match and
// ?force=true.
type FinanceHandler struct {
	financeService services.FinanceServicer
}

// NewFinanceHandler creates a new FinanceHandler.
func NewFinanceHandler(financeService services.FinanceServicer) *FinanceHandler {
	return &FinanceHandler{financeService: financeService}
}

// MonthView returns the whole month in one response
// @Summary     Month view
// @Description Instances, summary, category rollup and savings of one month
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id      path   string true  "Group ID"
// @Param       year          path   int    true  "Year"
// @Param       month         path   int    true  "Month (1-12)"
// @Param       force         query  bool   false "Bypass the memo"
// @Param       If-None-Match header string false "ETag the client already holds"
// @Success     200 {object} services.Versioned[engine.View] "Month view"
// @Success     304 "Not modified"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/months/{year}/{month} [get]
func (h *FinanceHandler) MonthView(c *gin.Context) {
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

	v, err := h.financeService.MonthView(c.Request.Context(), userID, c.Param("group_id"), period, readOptions(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondVersioned(c, v)
}

// Transactions returns the month's instances with their payment status
// @Summary     Expand and reconcile a month
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path  string true  "Group ID"
// @Param       year     path  int    true  "Year"
// @Param       month    path  int    true  "Month (1-12)"
// @Param       force    query bool   false "Bypass the memo"
// @Success     200 {object} services.Versioned[[]engine.Instance] "Instances"
// @Success     304 "Not modified"
// @Failure     403 {object} ErrorResponse "Not an active member"
// @Router      /groups/{group_id}/months/{year}/{month}/transactions [get]
func (h *FinanceHandler) Transactions(c *gin.Context) {
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

	v, err := h.financeService.ExpandAndReconcile(c.Request.Context(), userID, c.Param("group_id"), period, readOptions(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondVersioned(c, v)
}

// Summary returns the month's totals
// @Summary     Monthly summary
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path  string true  "Group ID"
// @Param       year     path  int    true  "Year"
// @Param       month    path  int    true  "Month (1-12)"
// @Success     200 {object} services.Versioned[engine.MonthlySummary] "Summary"
// @Success     304 "Not modified"
// @Router      /groups/{group_id}/months/{year}/{month}/summary [get]
func (h *FinanceHandler) Summary(c *gin.Context) {
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

	v, err := h.financeService.MonthlySummary(c.Request.Context(), userID, c.Param("group_id"), period, readOptions(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondVersioned(c, v)
}

// Categories returns the month's expenses by category
// @Summary     Category rollup
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path  string true  "Group ID"
// @Param       year     path  int    true  "Year"
// @Param       month    path  int    true  "Month (1-12)"
// @Success     200 {object} services.Versioned[[]engine.CategoryStat] "Categories"
// @Success     304 "Not modified"
// @Router      /groups/{group_id}/months/{year}/{month}/categories [get]
func (h *FinanceHandler) Categories(c *gin.Context) {
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

	v, err := h.financeService.CategoryRollup(c.Request.Context(), userID, c.Param("group_id"), period, readOptions(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondVersioned(c, v)
}

// Savings returns the month's savings bucket
// @Summary     Savings
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path  string true  "Group ID"
// @Param       year     path  int    true  "Year"
// @Param       month    path  int    true  "Month (1-12)"
// @Success     200 {object} services.Versioned[engine.SavingsSummary] "Savings"
// @Success     304 "Not modified"
// @Router      /groups/{group_id}/months/{year}/{month}/savings [get]
func (h *FinanceHandler) Savings(c *gin.Context) {
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

	v, err := h.financeService.Savings(c.Request.Context(), userID, c.Param("group_id"), period, readOptions(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondVersioned(c, v)
}

// GroupSummary returns the group's all-time totals
// @Summary     Group financial summary
// @Description Income and expense of every instance up to the current month
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Success     200 {object} services.Versioned[engine.GroupTotals] "Totals"
// @Success     304 "Not modified"
// @Router      /groups/{group_id}/summary [get]
func (h *FinanceHandler) GroupSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	v, err := h.financeService.GroupFinancialSummary(c.Request.Context(), userID, c.Param("group_id"), readOptions(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondVersioned(c, v)
}

// GoalProgress reports how far a goal has come
// @Summary     Goal progress
// @Tags        finance
// @Produce     json
// @Security    BearerAuth
// @Param       group_id path string true "Group ID"
// @Param       id       path string true "Goal obligation ID"
// @Success     200 {object} engine.GoalProgress "Progress"
// @Failure     400 {object} ErrorResponse "Obligation is not a goal"
// @Failure     404 {object} ErrorResponse "Obligation not found"
// @Router      /groups/{group_id}/goals/{id}/progress [get]
func (h *FinanceHandler) GoalProgress(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	progress, err := h.financeService.GoalProgress(c.Request.Context(), userID, c.Param("group_id"), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}
