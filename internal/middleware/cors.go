package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows any origin. Preflight requests get an empty 200.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:              []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey"},
		ExposeHeaders:             []string{"Content-Length"},
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	})
}
