package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func callerRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/whoami", func(c *gin.Context) {
		caller := GetCaller(c)
		var uid uint
		if caller.UserID != nil {
			uid = *caller.UserID
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":     uid,
			"role":        caller.Role,
			"anonymous":   caller.Anonymous,
			"anon_manage": caller.AnonManage,
		})
	})
	return router
}

type whoami struct {
	UserID     uint   `json:"user_id"`
	Role       string `json:"role"`
	Anonymous  bool   `json:"anonymous"`
	AnonManage bool   `json:"anon_manage"`
}

func doWhoami(t *testing.T, router *gin.Engine, setup func(*http.Request)) (int, whoami) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami", nil)
	if setup != nil {
		setup(req)
	}
	router.ServeHTTP(w, req)

	var body whoami
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return w.Code, body
}

func TestClientAuth_JWT(t *testing.T) {
	token, _ := utils.GenerateToken(7, "user@example.com", "user", 1)
	router := callerRouter(ClientAuth(ClientAuthConfig{APIKey: "public-key"}))

	code, body := doWhoami(t, router, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.UserID != 7 || body.Role != "user" || body.Anonymous {
		t.Errorf("unexpected caller %+v", body)
	}
}

func TestClientAuth_APIKey(t *testing.T) {
	router := callerRouter(ClientAuth(ClientAuthConfig{APIKey: "public-key", AnonManage: true}))

	for name, setup := range map[string]func(*http.Request){
		"apikey header": func(r *http.Request) { r.Header.Set("apikey", "public-key") },
		"bearer":        func(r *http.Request) { r.Header.Set("Authorization", "Bearer public-key") },
	} {
		code, body := doWhoami(t, router, setup)
		if code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", name, code)
			continue
		}
		if !body.Anonymous || !body.AnonManage {
			t.Errorf("%s: expected anonymous managing caller, got %+v", name, body)
		}
	}
}

func TestClientAuth_Rejects(t *testing.T) {
	router := callerRouter(ClientAuth(ClientAuthConfig{APIKey: "public-key"}))

	for name, setup := range map[string]func(*http.Request){
		"nothing":    nil,
		"wrong key":  func(r *http.Request) { r.Header.Set("apikey", "nope") },
		"bad bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer not.a.jwt") },
		"basic auth": func(r *http.Request) { r.Header.Set("Authorization", "Basic public-key") },
	} {
		code, _ := doWhoami(t, router, setup)
		if code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, code)
		}
	}
}

func TestClientAuth_OpenWhenNoKeyConfigured(t *testing.T) {
	router := callerRouter(ClientAuth(ClientAuthConfig{}))
	code, body := doWhoami(t, router, nil)
	if code != http.StatusOK || !body.Anonymous {
		t.Errorf("expected anonymous 200, got %d %+v", code, body)
	}
	if body.AnonManage {
		t.Error("anon manage should follow config")
	}
}

func TestClientAuth_QueryToken(t *testing.T) {
	token, _ := utils.GenerateToken(3, "admin@example.com", "admin", 1)
	router := callerRouter(ClientAuth(ClientAuthConfig{APIKey: "public-key"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/whoami?access_token="+token, nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthRequired_NoHeader(t *testing.T) {
	code, _ := doWhoami(t, callerRouter(AuthRequired()), nil)
	if code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := callerRouter(AuthRequired())
	for _, authHeader := range []string{"InvalidToken", "Basic token123", "Bearer"} {
		code, _ := doWhoami(t, router, func(r *http.Request) { r.Header.Set("Authorization", authHeader) })
		if code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	code, _ := doWhoami(t, callerRouter(AuthRequired()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer invalid.token.here")
	})
	if code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, _ := utils.GenerateToken(1, "admin@example.com", "admin", 24)
	code, body := doWhoami(t, callerRouter(AuthRequired()), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if body.UserID != 1 || body.Role != "admin" {
		t.Errorf("unexpected caller %+v", body)
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{"", http.StatusForbidden},
		{"user", http.StatusForbidden},
		{"admin", http.StatusOK},
	}
	for _, tt := range tests {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if tt.role != "" {
				c.Set(ContextRole, tt.role)
			}
			c.Next()
		})
		router.Use(AdminRequired())
		router.GET("/admin", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin", nil)
		router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("role %q: expected status %d, got %d", tt.role, tt.want, w.Code)
		}
	}
}

func TestContextGetters(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != 0 {
		t.Errorf("expected 0 for missing user_id, got %d", id)
	}
	if email := GetEmail(c); email != "" {
		t.Errorf("expected empty email, got %q", email)
	}
	if role := GetRole(c); role != "" {
		t.Errorf("expected empty role, got %q", role)
	}
	if caller := GetCaller(c); !caller.Anonymous || caller.CanManage() {
		t.Errorf("missing caller should be anonymous without manage rights, got %+v", caller)
	}

	c.Set(ContextUserID, uint(42))
	c.Set(ContextEmail, "a@b.c")
	c.Set(ContextRole, "admin")
	c.Set(ContextCaller, &services.Caller{Role: "admin"})
	if GetUserID(c) != 42 || GetEmail(c) != "a@b.c" || GetRole(c) != "admin" || !GetCaller(c).IsAdmin() {
		t.Error("getters should return the stored values")
	}
}
