package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/amicus-backend/internal/http/response"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/realtime"
	"github.com/yungbote/amicus-backend/internal/services"
)

type RealtimeHandler struct {
	Log    *logger.Logger
	Hub    *realtime.SSEHub
	briefs services.BriefService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, briefs services.BriefService) *RealtimeHandler {
	return &RealtimeHandler{Log: log.With("handler", "RealtimeHandler"), Hub: hub, briefs: briefs}
}

// GET /api/briefs/jobs/:id/stream
//
// The first event is a JobProgress snapshot of the job as stored, so a client
// that reconnects sees the current state before live events.
func (h *RealtimeHandler) JobStream(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	view, err := h.briefs.Get(reqCtx(c), id)
	if err != nil {
		response.RespondErr(c, err, "stream_failed")
		return
	}
	snapshot := &realtime.SSEMessage{
		Channel: realtime.JobChannel(id.String()),
		Event:   realtime.SSEEventJobProgress,
		Data: map[string]any{
			"job_id":   view.Job.ID,
			"job_type": view.Job.JobType,
			"stage":    view.Job.Stage,
			"progress": view.Job.Progress,
			"message":  view.Job.Message,
			"job":      view.Job,
		},
	}
	h.serve(c, realtime.JobChannel(id.String()), snapshot)
}

// GET /api/cases/:id/stream
func (h *RealtimeHandler) CaseStream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_case_id", err)
		return
	}
	h.serve(c, realtime.CaseChannel(id.String()), nil)
}

func (h *RealtimeHandler) serve(c *gin.Context, channel string, first *realtime.SSEMessage) {
	client := h.Hub.NewSSEClient()
	client.Logger = h.Log.With("sse_client_id", client.ID, "channel", channel)
	if first != nil {
		client.Push(*first)
	}
	h.Hub.AddChannel(client, channel)
	client.Logger.Debug("SSE stream open")

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.Hub.CloseClient(client)
	client.Logger.Debug("SSE stream closed")
}
