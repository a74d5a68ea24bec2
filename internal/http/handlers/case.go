package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/amicus-backend/internal/http/response"
	"github.com/yungbote/amicus-backend/internal/services"
)

type CaseHandler struct {
	facts services.CaseFactsService
}

func NewCaseHandler(facts services.CaseFactsService) *CaseHandler {
	return &CaseHandler{facts: facts}
}

// POST /api/cases/:id/facts/extract
func (h *CaseHandler) ExtractFacts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_case_id", err)
		return
	}
	res, err := h.facts.Extract(reqCtx(c), id)
	if err != nil {
		response.RespondErr(c, err, "extract_facts_failed")
		return
	}
	response.RespondOK(c, res)
}
