package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/amicus-backend/internal/pkg/ctxutil"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope and aborts the chain. It is tagged
// with the request id when one is known.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	body := ErrorEnvelope{Error: APIError{Message: msg, Code: code}}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		body.Error.RequestID = td.RequestID
	}
	c.AbortWithStatusJSON(status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
