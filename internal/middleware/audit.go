package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/gin-gonic/gin"
)

const maxAuditBody = 2000

// AuditLog records admin write operations (POST/PUT/DELETE) to system_logs.
func AuditLog(logs *services.SystemLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = truncateAuditBody(maskSensitiveFields(string(bodyBytes)), maxAuditBody)
		}

		c.Next()

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		entry := services.AuditEntry{
			Module:    module,
			Action:    action,
			Target:    c.Param("id"),
			Message:   formatAuditMessage(GetEmail(c), method, c.Request.URL.Path, status),
			UserID:    uid,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   bodySnippet,
			},
		}
		if status >= http.StatusBadRequest {
			logs.Warning(entry)
		} else {
			logs.Info(entry)
		}
	}
}

// parseRouteInfo maps "/api/llm-configs/:id" + PUT to ("llm_configs", "update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	module = strings.SplitN(path, "/", 2)[0]
	if module == "" {
		module = "unknown"
	}
	module = strings.ReplaceAll(module, "-", "_")

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return module, action
}

func formatAuditMessage(who, method, path string, status int) string {
	if who == "" {
		who = "anonymous"
	}
	result := "OK"
	if status < 200 || status >= 300 {
		result = "Failed"
	}
	return fmt.Sprintf("%s %s %s -> %s", who, method, path, result)
}

var sensitiveKeys = []string{"password", "old_password", "new_password", "api_key", "secret", "token", "refresh_token"}

// maskSensitiveFields blanks string values of sensitive JSON keys.
// truncateAuditBody cuts body to at most max bytes without splitting a
// UTF-8 sequence.
func truncateAuditBody(body string, max int) string {
	if len(body) <= max {
		return body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "...[truncated]"
}

func maskSensitiveFields(body string) string {
	for _, key := range sensitiveKeys {
		body = maskJSONValue(body, key)
	}
	return body
}

// maskJSONValue masks every "key": "value" occurrence, best effort.
func maskJSONValue(body, key string) string {
	needle := "\"" + key + "\""
	from := 0
	for {
		idx := strings.Index(strings.ToLower(body[from:]), needle)
		if idx == -1 {
			return body
		}
		idx += from + len(needle)

		rest := body[idx:]
		colon := strings.Index(rest, ":")
		if colon == -1 || strings.TrimSpace(rest[:colon]) != "" {
			from = idx
			continue
		}
		start := idx + colon + 1
		for start < len(body) && (body[start] == ' ' || body[start] == '\t') {
			start++
		}
		if start >= len(body) || body[start] != '"' {
			from = start
			continue
		}
		end := strings.Index(body[start+1:], "\"")
		if end == -1 {
			return body
		}
		body = body[:start+1] + "***" + body[start+1+end:]
		from = start + 4
	}
}
