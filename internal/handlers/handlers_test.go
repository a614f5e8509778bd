package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAPIKey = "public-anon-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClassifier struct {
	err error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*services.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Classification{
		Category:    "Delivery",
		Sentiment:   models.SentimentNegative,
		Priority:    models.PriorityHigh,
		Response:    "Sorry about the delay.",
		Explanation: "Late parcel.",
		Confidence:  90,
		Provider:    "openai",
		Model:       "gpt-4o-mini",
	}, nil
}

type testEnv struct {
	db         *gorm.DB
	router     *gin.Engine
	classifier *fakeClassifier
	hub        *services.EventHub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "=", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared",
	}, logger.Silent)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	utils.SetJWTSecret("handler-test-secret")

	env := &testEnv{db: db, classifier: &fakeClassifier{}, hub: services.NewEventHub()}
	logs := services.NewSystemLogService(db)
	complaints := services.NewComplaintService(db, env.classifier, nil, nil, env.hub, nil, logs)
	messages := services.NewMessageService(db, env.hub)
	ch := NewComplaintHandler(complaints, messages)
	mh := NewMessageHandler(messages)
	th := NewTranslationHandler(services.NewTranslator(&config.TranslationConfig{Endpoint: "http://127.0.0.1:1/get"}, nil))

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) { c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"}) })
	r.Use(middleware.CORS())

	clientAuth := middleware.ClientAuth(middleware.ClientAuthConfig{APIKey: testAPIKey, AnonManage: true})
	fn := r.Group("/functions/v1", clientAuth)
	fn.Any("/process-complaint", Function(Verbs{http.MethodPost: ch.Submit}))
	fn.Any("/manage-complaints", Function(Verbs{http.MethodGet: ch.List, http.MethodPut: ch.Update}))
	fn.Any("/complaint-messages", Function(Verbs{http.MethodGet: mh.List, http.MethodPost: mh.Append}))

	api := r.Group("/api", clientAuth)
	api.GET("/complaints/message-counts", ch.MessageCounts)
	api.GET("/complaints/:id", ch.Get)
	api.PUT("/complaints/:id", ch.Update)
	api.GET("/complaints/:id/messages", mh.List)
	api.POST("/complaints/:id/messages", mh.Append)
	api.GET("/translate", th.Translate)
	api.GET("/translate/languages", th.Languages)

	r.GET("/health", NewHealthHandler(db, nil, env.hub).CheckHealth)

	env.router = r
	return env
}

type reqOpt func(*http.Request)

func withToken(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withoutKey() reqOpt {
	return func(r *http.Request) { r.Header.Del(middleware.APIKeyHeader) }
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (e *testEnv) submit(t *testing.T, text string, opts ...reqOpt) map[string]interface{} {
	t.Helper()
	w := e.do(t, http.MethodPost, "/functions/v1/process-complaint", gin.H{"complaint_text": text}, opts...)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", w.Code, w.Body.String())
	}
	return decode(t, w)["complaint"].(map[string]interface{})
}

func userToken(t *testing.T, db *gorm.DB, email, role string) string {
	t.Helper()
	user := models.User{Email: email, Role: role, AuthType: models.AuthTypeLocal, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, 1)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

var errBackend = errors.New("upstream model unavailable")
