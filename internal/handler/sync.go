package handler

import (
	"net/http"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/apierror"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/dto"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/service"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct{ svc service.SyncService }

func NewSyncHandler(svc service.SyncService) *SyncHandler { return &SyncHandler{svc: svc} }

// Trigger starts a full bidirectional sync and blocks until it finishes.
// A sync already running in the background returns 409 without starting
// another one.
func (h *SyncHandler) Trigger(c *gin.Context) {
	result := h.svc.PerformFullSync(c.Request.Context())

	status := http.StatusOK
	if result.Status == service.SyncResultAlreadyInProgress {
		status = http.StatusConflict
	}
	c.JSON(status, dto.FullSyncResponse{
		Status:          result.Status,
		UsersProcessed:  result.UsersProcessed,
		RecordsUploaded: result.RecordsUploaded,
		RecordsFailed:   result.RecordsFailed,
		Errors:          result.Errors,
		DurationMs:      result.Duration.Milliseconds(),
	})
}

// Status reports queue depth, connectivity and breaker state for the UI.
func (h *SyncHandler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al consultar estado de sincronizacion"))
		return
	}
	c.JSON(http.StatusOK, dto.SyncStatusResponse{
		Online:         st.Online,
		BreakerState:   st.BreakerState,
		SyncInProgress: st.InProgress,
		QueueCounts:    st.QueueCounts,
		LastFullSync:   st.LastFullSync,
	})
}
