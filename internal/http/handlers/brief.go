package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/amicus-backend/internal/http/response"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/services"
)

const headerIdempotencyKey = "Idempotency-Key"

type BriefHandler struct {
	briefs services.BriefService
}

func NewBriefHandler(briefs services.BriefService) *BriefHandler {
	return &BriefHandler{briefs: briefs}
}

func jobIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func reqCtx(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// POST /api/briefs/generate
func (h *BriefHandler) Generate(c *gin.Context) {
	var in services.StartBriefInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in.IdempotencyKey = strings.TrimSpace(c.GetHeader(headerIdempotencyKey))

	job, brief, created, err := h.briefs.Start(reqCtx(c), in)
	if err != nil {
		response.RespondErr(c, err, "generate_failed")
		return
	}
	body := gin.H{"job_id": job.ID, "brief_id": nil, "job": job}
	if brief != nil {
		body["brief_id"] = brief.ID
	}
	if !created {
		response.RespondOK(c, body)
		return
	}
	response.RespondAccepted(c, body)
}

// GET /api/briefs/jobs/:id
func (h *BriefHandler) GetJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	view, err := h.briefs.Get(reqCtx(c), id)
	if err != nil {
		response.RespondErr(c, err, "get_job_failed")
		return
	}
	response.RespondOK(c, view)
}

// GET /api/briefs/jobs/:id/logs?wave=N
func (h *BriefHandler) GetLogs(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	wave := 0
	if raw := strings.TrimSpace(c.Query("wave")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_wave", err)
			return
		}
		wave = n
	}
	view, err := h.briefs.Logs(reqCtx(c), id, wave)
	if err != nil {
		response.RespondErr(c, err, "get_logs_failed")
		return
	}
	response.RespondOK(c, view)
}

// GET /api/briefs/jobs/:id/waves
func (h *BriefHandler) ListWaves(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	include, _ := strconv.ParseBool(c.DefaultQuery("include_content", "false"))
	rows, err := h.briefs.Waves(reqCtx(c), id, include)
	if err != nil {
		response.RespondErr(c, err, "list_waves_failed")
		return
	}
	response.RespondOK(c, gin.H{"waves": rows})
}

// GET /api/briefs/jobs/:id/waves/:wave
func (h *BriefHandler) GetWave(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("wave"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_wave", err)
		return
	}
	row, err := h.briefs.Wave(reqCtx(c), id, n)
	if err != nil {
		response.RespondErr(c, err, "get_wave_failed")
		return
	}
	response.RespondOK(c, gin.H{"wave": row})
}

// POST /api/briefs/jobs/:id/cancel
func (h *BriefHandler) CancelJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.briefs.Cancel(reqCtx(c), id)
	if err != nil {
		response.RespondErr(c, err, "cancel_job_failed")
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/briefs/jobs/:id/restart
func (h *BriefHandler) RestartJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := h.briefs.Restart(reqCtx(c), id)
	if err != nil {
		response.RespondErr(c, err, "restart_job_failed")
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
