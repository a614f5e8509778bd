package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", &buf)
	defer Init("info")

	Info().Msg("dropped")
	assert.Empty(t, buf.String())

	Warn().Msg("kept")
	assert.Equal(t, "kept", lastLine(t, &buf)["message"])
}

func TestInitWithWriter_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("loud", &buf)
	defer Init("info")

	Debug().Msg("dropped")
	Info().Msg("kept")
	entry := lastLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	defer Init("info")

	log := Component("classifier")
	log.Info().Msg("ready")
	assert.Equal(t, "classifier", lastLine(t, &buf)["component"])
}

func TestGinLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	defer Init("info")

	r := gin.New()
	r.Use(GinLogger())
	r.GET("/api/complaints", func(c *gin.Context) {
		c.Set("role", "admin")
		c.Status(http.StatusOK)
	})
	r.GET("/api/complaints/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	cases := []struct {
		path  string
		level string
	}{
		{"/api/complaints?status=new", "info"},
		{"/api/complaints/missing", "warn"},
	}
	for _, tc := range cases {
		buf.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		entry := lastLine(t, &buf)
		assert.Equal(t, tc.level, entry["level"], tc.path)
		assert.Equal(t, "request", entry["message"])
	}
}

func TestGinRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	InitWithWriter("info", &buf)
	defer Init("info")

	r := gin.New()
	r.Use(GinRecovery())
	r.GET("/boom", func(c *gin.Context) { panic("classifier exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.Equal(t, "panic recovered", lastLine(t, &buf)["message"])
}
