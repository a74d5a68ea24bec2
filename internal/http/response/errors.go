package response

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/amicus-backend/internal/platform/apierr"
)

// RespondErr picks status and code from err. Unclassified errors are 500s
// reported under fallbackCode.
func RespondErr(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.From(err, fallbackCode)
	if ae == nil {
		RespondError(c, 500, fallbackCode, err)
		return
	}
	_ = c.Error(err)
	RespondError(c, ae.Status, ae.Code, ae.Err)
}
