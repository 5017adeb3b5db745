package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/followup"
	"github.com/safemind/go-crisis-alerts/internal/models"
	"github.com/safemind/go-crisis-alerts/internal/repository"
)

// ReportQueue hands freshly created reports to the processing pipeline.
type ReportQueue interface {
	Submit(report *models.Report) error
}

type Handler struct {
	store      repository.Store
	queue      ReportQueue
	followups  *followup.Service
	events     *channels.Buffer
	registry   Registry
	sendBuffer int
}

func NewHandler(store repository.Store, queue ReportQueue, followups *followup.Service, events *channels.Buffer, reg Registry, sendBuffer int) *Handler {
	return &Handler{
		store:      store,
		queue:      queue,
		followups:  followups,
		events:     events,
		registry:   reg,
		sendBuffer: sendBuffer,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.POST("/api/reports", h.createReport)
	r.GET("/api/reports", h.listReports)
	r.GET("/api/reports/:id", h.getReport)

	r.POST("/api/followups", h.scheduleFollowUp)
	r.GET("/api/followups", h.listPendingFollowUps)
	r.POST("/api/followups/:id/checkin", h.submitCheckin)
	r.POST("/api/followups/:id/cancel", h.cancelFollowUp)

	r.GET("/api/channels/:name", h.readChannel)
	r.GET("/api/stream", h.stream)
}

type createReportRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Location    string `json:"location"`
}

func (h *Handler) createReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	report := &models.Report{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Status:      models.ReportStatusPending,
	}

	if err := h.store.CreateReport(c.Request.Context(), report); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create report"})
		return
	}

	// Classification and fan-out run off the request path. The report record
	// stands even if every side effect fails.
	if err := h.queue.Submit(report); err != nil {
		slog.Error("report enqueue failed", "report_id", report.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server shutting down"})
		return
	}

	c.JSON(http.StatusAccepted, reportResponse(report))
}

func (h *Handler) getReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	report, err := h.store.GetReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}

	c.JSON(http.StatusOK, reportResponse(report))
}

func (h *Handler) listReports(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20, // Default page size if limit param not supplied
	}

	if s := c.Query("status"); s != "" {
		status := models.ReportStatus(s)
		filter.Status = &status
	}
	if s := c.Query("severity"); s != "" {
		severity := models.Severity(s)
		filter.Severity = &severity
	}
	if m := c.Query("min_risk_score"); m != "" {
		if score, err := strconv.ParseFloat(m, 64); err == nil {
			filter.MinRiskScore = &score
		}
	}
	if u := c.Query("user_id"); u != "" {
		if uid, err := strconv.ParseInt(u, 10, 64); err == nil {
			filter.UserID = &uid
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	reports, err := h.store.ListReports(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reports"})
		return
	}

	out := make([]gin.H, 0, len(reports))
	for i := range reports {
		out = append(out, reportResponse(&reports[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

type scheduleFollowUpRequest struct {
	ReportID     int64  `json:"report_id" binding:"required"`
	DelayMinutes int    `json:"delay_minutes" binding:"required,min=1"`
	Notes        string `json:"notes"`
}

func (h *Handler) scheduleFollowUp(c *gin.Context) {
	var req scheduleFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delay := time.Duration(req.DelayMinutes) * time.Minute
	f, err := h.followups.Schedule(c.Request.Context(), req.ReportID, delay, req.Notes)
	if err != nil {
		h.followupError(c, err)
		return
	}

	c.JSON(http.StatusCreated, followupResponse(f))
}

func (h *Handler) listPendingFollowUps(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	followups, err := h.followups.PendingForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch follow-ups"})
		return
	}

	out := make([]gin.H, 0, len(followups))
	for i := range followups {
		out = append(out, followupResponse(&followups[i]))
	}
	c.JSON(http.StatusOK, gin.H{"followups": out})
}

type checkinRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Response string `json:"response" binding:"required"`
}

func (h *Handler) submitCheckin(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid follow-up id"})
		return
	}

	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.followups.SubmitCheckin(c.Request.Context(), id, req.UserID, req.Response)
	if err != nil {
		h.followupError(c, err)
		return
	}

	c.JSON(http.StatusOK, followupResponse(f))
}

func (h *Handler) cancelFollowUp(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid follow-up id"})
		return
	}

	if err := h.followups.Cancel(c.Request.Context(), id); err != nil {
		h.followupError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handler) readChannel(c *gin.Context) {
	entries, err := h.events.Read(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": c.Param("name"), "events": entries})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) followupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, followup.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, followup.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, followup.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, followup.ErrInvalidDelay):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func reportResponse(r *models.Report) gin.H {
	return gin.H{
		"id":          r.ID,
		"user_id":     r.UserID,
		"title":       r.Title,
		"description": r.Description,
		"location":    r.Location,
		"status":      r.Status,
		"severity":    r.Severity,
		"risk_level":  r.RiskLevel,
		"risk_score":  r.RiskScore,
		"created_at":  r.CreatedAt,
		"updated_at":  r.UpdatedAt,
	}
}

func followupResponse(f *models.FollowUp) gin.H {
	return gin.H{
		"id":            f.ID,
		"report_id":     f.ReportID,
		"user_id":       f.UserID,
		"type":          f.Type,
		"status":        f.Status,
		"scheduled_for": f.ScheduledFor,
		"completed_at":  f.CompletedAt,
		"notes":         f.Notes,
		"response":      f.Response,
	}
}
