package middleware

import (
	"net/http"
	"strings"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
	ContextCaller = "caller"

	// APIKeyHeader carries the public client key.
	APIKeyHeader = "apikey"
)

// ClientAuthConfig configures ClientAuth.
type ClientAuthConfig struct {
	// APIKey is the public key accepted for anonymous callers. Empty
	// accepts any request without a valid token as anonymous.
	APIKey     string
	AnonManage bool
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func setUser(c *gin.Context, claims *utils.Claims) {
	uid := claims.UserID
	c.Set(ContextUserID, uid)
	c.Set(ContextEmail, claims.Email)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextCaller, &services.Caller{UserID: &uid, Email: claims.Email, Role: claims.Role})
}

// ClientAuth gates the public complaint endpoints. A valid bearer JWT
// identifies a user; otherwise the public API key (apikey header or bearer)
// makes the caller anonymous.
func ClientAuth(cfg ClientAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			// EventSource cannot set headers
			token = c.Query("access_token")
		}

		if token != "" {
			if claims, err := utils.ParseToken(token); err == nil {
				setUser(c, claims)
				c.Next()
				return
			}
		}

		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			key = token
		}
		if cfg.APIKey != "" && key != cfg.APIKey {
			response.Unauthorized(c, "Missing or invalid credentials")
			return
		}

		c.Set(ContextCaller, &services.Caller{Anonymous: true, AnonManage: cfg.AnonManage})
		c.Next()
	}
}

// AuthRequired requires a valid bearer JWT.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Unauthorized(c, "authorization header required")
			return
		}
		token := bearerToken(c)
		if token == "" {
			response.Unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired or ClientAuth.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != models.RoleAdmin {
			response.Forbidden(c, "admin access required")
			return
		}
		c.Next()
	}
}

// GetCaller returns the identity set by the auth middleware. Requests that
// bypassed it are treated as anonymous without management rights.
func GetCaller(c *gin.Context) *services.Caller {
	if v, exists := c.Get(ContextCaller); exists {
		if caller, ok := v.(*services.Caller); ok {
			return caller
		}
	}
	return &services.Caller{Anonymous: true}
}

func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

func GetEmail(c *gin.Context) string {
	if email, exists := c.Get(ContextEmail); exists {
		return email.(string)
	}
	return ""
}

func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRole); exists {
		return role.(string)
	}
	return ""
}
