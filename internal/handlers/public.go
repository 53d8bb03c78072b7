package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emineral/emineral-backend/internal/platform/logger"
	"github.com/emineral/emineral-backend/internal/services"
)

const scanRecordTimeout = 10 * time.Second

type PublicHandler struct {
	log           *logger.Logger
	recordService services.RecordService
	scanService   services.ScanService
}

func NewPublicHandler(baseLog *logger.Logger, recordService services.RecordService, scanService services.ScanService) *PublicHandler {
	return &PublicHandler{
		log:           baseLog.With("handler", "PublicHandler"),
		recordService: recordService,
		scanService:   scanService,
	}
}

// GetByToken serves /api/public/records/:publicToken.
func (h *PublicHandler) GetByToken(c *gin.Context) {
	h.serve(c, c.Param("publicToken"))
}

// GetByTokenOrID serves /records/:idOrToken, the address printed inside the
// QR code.
func (h *PublicHandler) GetByTokenOrID(c *gin.Context) {
	h.serve(c, c.Param("idOrToken"))
}

func (h *PublicHandler) serve(c *gin.Context, tokenOrID string) {
	view, err := h.recordService.GetPublic(c.Request.Context(), tokenOrID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	// Fire and forget: the verification response never waits on the audit
	// trail, and the scan outlives the request context.
	meta := services.ScanMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
		Referrer:  c.Request.Referer(),
		SessionID: c.GetHeader("X-Session-Id"),
	}
	recordID := view.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), scanRecordTimeout)
		defer cancel()
		if err := h.scanService.RecordScan(ctx, recordID, meta); err != nil {
			h.log.Warn("scan recording failed", "record_id", recordID, "error", err)
		}
	}()

	RespondData(c, http.StatusOK, view)
}
