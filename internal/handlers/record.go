package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emineral/emineral-backend/internal/requestdata"
	"github.com/emineral/emineral-backend/internal/services"
)

type RecordHandler struct {
	recordService    services.RecordService
	scanService      services.ScanService
	analyticsService services.AnalyticsService
}

func NewRecordHandler(recordService services.RecordService, scanService services.ScanService, analyticsService services.AnalyticsService) *RecordHandler {
	return &RecordHandler{
		recordService:    recordService,
		scanService:      scanService,
		analyticsService: analyticsService,
	}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondErrorMessage(c, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	return rd.UserID, true
}

type createRecordRequest struct {
	FormData      map[string]interface{} `json:"formData"`
	ValidityHours int                    `json:"validityHours"`
}

func (h *RecordHandler) Create(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondErrorMessage(c, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.recordService.Create(c.Request.Context(), ownerID, req.FormData, req.ValidityHours)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusCreated, gin.H{
		"record":            result.Record,
		"public_token":      result.Record.PublicToken,
		"artifacts_pending": result.ArtifactsPending,
	})
}

func (h *RecordHandler) List(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := h.recordService.List(c.Request.Context(), ownerID, services.RecordFilters{
		Status:   c.Query("status"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusOK, gin.H{
		"records": records,
		"total":   total,
	})
}

func recordIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondErrorMessage(c, http.StatusBadRequest, "malformed record id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *RecordHandler) Get(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	record, err := h.recordService.GetForOwner(c.Request.Context(), ownerID, recordID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusOK, record)
}

func (h *RecordHandler) Archive(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	if err := h.recordService.Archive(c.Request.Context(), ownerID, recordID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusOK, gin.H{"archived": true})
}

func (h *RecordHandler) Delete(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	if err := h.recordService.Delete(c.Request.Context(), ownerID, recordID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusOK, gin.H{"deleted": true})
}

// DownloadArtifact streams the stored QR PNG or pass PDF to the record owner.
func (h *RecordHandler) DownloadArtifact(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}

	raw, contentType, err := h.recordService.DownloadArtifact(c.Request.Context(), ownerID, recordID, c.Param("kind"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, raw)
}

func (h *RecordHandler) Scans(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	recordID, ok := recordIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	logs, err := h.scanService.History(c.Request.Context(), ownerID, recordID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusOK, gin.H{"scans": logs})
}

func (h *RecordHandler) Stats(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}
	stats, err := h.analyticsService.DashboardStats(c.Request.Context(), ownerID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondData(c, http.StatusOK, stats)
}
