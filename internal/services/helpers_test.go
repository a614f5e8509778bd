package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
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
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// stubClassifier returns a fixed classification or error and counts calls.
type stubClassifier struct {
	mu     sync.Mutex
	result *Classification
	err    error
	calls  int
	texts  []string
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func defaultClassification() *Classification {
	return &Classification{
		Category:    "Delivery",
		Sentiment:   "Negative",
		Priority:    "High",
		Response:    "We are sorry your parcel is late.",
		Explanation: "Late delivery affecting the customer.",
		Confidence:  87,
		Provider:    "openai",
		Model:       "gpt-4o-mini",
	}
}

// stepClock returns strictly increasing timestamps.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func adminCaller() *Caller {
	return &Caller{UserID: uintPtr(1), Email: "admin@example.com", Role: models.RoleAdmin}
}

func userCaller(id uint) *Caller {
	return &Caller{UserID: uintPtr(id), Email: "user@example.com", Role: models.RoleUser}
}

func anonCaller() *Caller {
	return &Caller{Anonymous: true, AnonManage: true}
}
