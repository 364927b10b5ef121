package inspect

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dikit/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError maps err to an AppError and writes its status and body.
// Registry errors carry their own codes; anything else is a 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
