package handlers

import (
	"net/http"

	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

// Verbs maps HTTP methods to the handler serving them on one function path.
type Verbs map[string]gin.HandlerFunc

// Function dispatches a /functions/v1 path by method. OPTIONS gets an empty
// 200 and any verb not in the map gets 405.
func Function(verbs Verbs) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler, ok := verbs[c.Request.Method]; ok {
			handler(c)
			return
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}
		response.MethodNotAllowed(c)
	}
}
