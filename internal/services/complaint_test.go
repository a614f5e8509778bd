package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type complaintFixture struct {
	db         *gorm.DB
	classifier *stubClassifier
	events     *EventHub
	queue      *SyncQueue
	svc        *ComplaintService
}

func newComplaintFixture(t *testing.T) *complaintFixture {
	t.Helper()
	db := newTestDB(t)
	f := &complaintFixture{
		db:         db,
		classifier: &stubClassifier{result: defaultClassification()},
		events:     NewEventHub(),
		queue:      NewSyncQueue(),
	}
	f.svc = NewComplaintService(db, f.classifier, nil, NewSLACalendar(&config.SLAConfig{Country: "NONE"}),
		f.events, f.queue, NewSystemLogService(db))
	f.svc.now = stepClock(time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	return f
}

func (f *complaintFixture) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Complaint{}).Count(&n).Error)
	return n
}

func (f *complaintFixture) submit(t *testing.T, caller *Caller, text string) *models.Complaint {
	t.Helper()
	c, err := f.svc.Submit(context.Background(), caller, &SubmitComplaintRequest{ComplaintText: text}, RequestMeta{})
	require.NoError(t, err)
	return c
}

func TestSubmit_PersistsClassifiedPendingComplaint(t *testing.T) {
	f := newComplaintFixture(t)

	created := f.submit(t, anonCaller(), "  My parcel arrived broken  ")

	var stored models.Complaint
	require.NoError(t, f.db.First(&stored, "id = ?", created.ID).Error)

	assert.Equal(t, "My parcel arrived broken", stored.ComplaintText)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.FeedbackHelpful)
	assert.NotEmpty(t, stored.Category)
	assert.NotEmpty(t, stored.Sentiment)
	assert.NotEmpty(t, stored.Priority)
	assert.NotEmpty(t, stored.AIResponse)
	assert.NotEmpty(t, stored.AIExplanation)
	assert.Equal(t, 87, stored.AIConfidenceScore)
	assert.Equal(t, "openai", stored.LLMProvider)
	assert.Nil(t, stored.UserID, "anonymous complaints have no owner")
	require.NotNil(t, stored.ResponseDueAt)
	assert.True(t, stored.ResponseDueAt.After(stored.CreatedAt))
}

func TestSubmit_ScenarioParcelLost(t *testing.T) {
	f := newComplaintFixture(t)
	f.classifier.result = &Classification{
		Category: "Lost", Sentiment: "Negative", Priority: "High",
		Response: "We will trace your parcel.", Explanation: "Parcel missing.", Confidence: 90,
	}

	created := f.submit(t, anonCaller(), "Parcel lost in transit")

	var stored models.Complaint
	require.NoError(t, f.db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, "Lost", stored.Category)
	assert.Equal(t, "High", stored.Priority)
	assert.Equal(t, "Pending", stored.Status)
	assert.Equal(t, []string{"Parcel lost in transit"}, f.classifier.texts)
}

func TestSubmit_BlankTextIsValidationError(t *testing.T) {
	f := newComplaintFixture(t)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := f.svc.Submit(context.Background(), anonCaller(), &SubmitComplaintRequest{ComplaintText: text}, RequestMeta{})
		assert.True(t, response.IsKind(err, response.KindValidation), "text %q: got %v", text, err)
	}
	assert.Zero(t, f.count(t))
	assert.Zero(t, f.classifier.calls, "classifier must not be called for invalid input")
}

func TestSubmit_ClassifierFailurePersistsNothing(t *testing.T) {
	f := newComplaintFixture(t)
	f.classifier.err = &ClassifierError{Reason: "LLM call failed", Err: errors.New("timeout")}

	_, err := f.svc.Submit(context.Background(), anonCaller(), &SubmitComplaintRequest{ComplaintText: "broken"}, RequestMeta{})

	assert.True(t, response.IsKind(err, response.KindUpstream))
	assert.Contains(t, err.Error(), "timeout")
	assert.Zero(t, f.count(t))
}

func TestSubmit_IncompleteClassificationPersistsNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Classification)
	}{
		{"empty explanation", func(c *Classification) { c.Explanation = "" }},
		{"blank response", func(c *Classification) { c.Response = "  " }},
		{"empty category", func(c *Classification) { c.Category = "" }},
		{"confidence out of range", func(c *Classification) { c.Confidence = 140 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newComplaintFixture(t)
			result := defaultClassification()
			tt.mutate(result)
			f.classifier.result = result

			_, err := f.svc.Submit(context.Background(), anonCaller(), &SubmitComplaintRequest{ComplaintText: "parcel lost"}, RequestMeta{})

			assert.True(t, response.IsKind(err, response.KindUpstream), "got %v", err)
			var ce *ClassifierError
			assert.True(t, errors.As(err, &ce))
			assert.Zero(t, f.count(t))
		})
	}
}

func TestSubmit_StoreFailurePersistsNothing(t *testing.T) {
	f := newComplaintFixture(t)
	require.NoError(t, f.db.Migrator().DropTable(&models.ComplaintMessage{}, &models.Complaint{}))

	_, err := f.svc.Submit(context.Background(), anonCaller(), &SubmitComplaintRequest{ComplaintText: "broken"}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindUpstream))
	assert.Equal(t, 1, f.classifier.calls)
}

func TestSubmit_RecordsOwnerAndTrimsOptionalFields(t *testing.T) {
	f := newComplaintFixture(t)

	c, err := f.svc.Submit(context.Background(), userCaller(5), &SubmitComplaintRequest{
		ComplaintText: "wrong item",
		PhoneNumber:   strPtr(" +1 555 0100 "),
		TrackingID:    strPtr("   "),
	}, RequestMeta{})
	require.NoError(t, err)

	require.NotNil(t, c.UserID)
	assert.Equal(t, uint(5), *c.UserID)
	require.NotNil(t, c.UserEmail)
	assert.Equal(t, "user@example.com", *c.UserEmail)
	require.NotNil(t, c.PhoneNumber)
	assert.Equal(t, "+1 555 0100", *c.PhoneNumber)
	assert.Nil(t, c.TrackingID)
}

func TestSubmit_PublishesEventAndEnqueuesNotification(t *testing.T) {
	f := newComplaintFixture(t)
	events := f.events.Subscribe("test", nil)

	notified := make(chan string, 1)
	f.queue.SetProcessor(func(ctx context.Context, task *NotifyTask) error {
		notified <- task.ComplaintID
		return nil
	})

	c := f.submit(t, anonCaller(), "refund missing")
	f.queue.Wait()

	ev, ok := recv(t, events)
	require.True(t, ok)
	assert.Equal(t, EventComplaintCreated, ev.Type)
	assert.Equal(t, c.ID, ev.ComplaintID)
	assert.Equal(t, c.ID, <-notified)
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, token, ip string) error {
	return response.NewValidationError("reCAPTCHA verification failed")
}

func TestSubmit_BotVerificationFailure(t *testing.T) {
	f := newComplaintFixture(t)
	f.svc.verifier = rejectingVerifier{}

	_, err := f.svc.Submit(context.Background(), anonCaller(), &SubmitComplaintRequest{ComplaintText: "spam"}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindValidation))
	assert.Zero(t, f.classifier.calls)
	assert.Zero(t, f.count(t))
}

func TestList_NewestFirstAndVisibility(t *testing.T) {
	f := newComplaintFixture(t)
	first := f.submit(t, userCaller(5), "first")
	second := f.submit(t, userCaller(6), "second")
	third := f.submit(t, anonCaller(), "third")

	all, err := f.svc.List(context.Background(), adminCaller(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	anon, err := f.svc.List(context.Background(), anonCaller(), "")
	require.NoError(t, err)
	assert.Len(t, anon, 3)

	own, err := f.svc.List(context.Background(), userCaller(5), "")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, first.ID, own[0].ID)
}

func TestList_StatusFilter(t *testing.T) {
	f := newComplaintFixture(t)
	a := f.submit(t, anonCaller(), "a")
	f.submit(t, anonCaller(), "b")

	_, err := f.svc.Update(context.Background(), adminCaller(), &UpdateComplaintRequest{ID: a.ID, Status: strPtr("Resolved")}, RequestMeta{})
	require.NoError(t, err)

	resolved, err := f.svc.List(context.Background(), adminCaller(), "Resolved")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, a.ID, resolved[0].ID)

	_, err = f.svc.List(context.Background(), adminCaller(), "Closed")
	assert.True(t, response.IsKind(err, response.KindValidation))
}

func TestList_EmptyStoreReturnsEmptySlice(t *testing.T) {
	f := newComplaintFixture(t)
	list, err := f.svc.List(context.Background(), adminCaller(), "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestUpdate_UnknownIDIsNotFound(t *testing.T) {
	f := newComplaintFixture(t)
	existing := f.submit(t, anonCaller(), "existing")

	_, err := f.svc.Update(context.Background(), adminCaller(),
		&UpdateComplaintRequest{ID: "00000000-0000-0000-0000-000000000000", Status: strPtr("Resolved")}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindNotFound))

	var stored models.Complaint
	require.NoError(t, f.db.First(&stored, "id = ?", existing.ID).Error)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, int64(1), f.count(t))
}

func TestUpdate_ValidationErrors(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, anonCaller(), "x")

	tests := []struct {
		name string
		req  *UpdateComplaintRequest
	}{
		{"missing id", &UpdateComplaintRequest{Status: strPtr("Resolved")}},
		{"nothing to update", &UpdateComplaintRequest{ID: c.ID}},
		{"bad status", &UpdateComplaintRequest{ID: c.ID, Status: strPtr("resolved")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), adminCaller(), tt.req, RequestMeta{})
			assert.True(t, response.IsKind(err, response.KindValidation), "got %v", err)
		})
	}
}

func TestUpdate_PartialUpdates(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, anonCaller(), "x")
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, anonCaller(), &UpdateComplaintRequest{ID: c.ID, FeedbackHelpful: boolPtr(false)}, RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, updated.FeedbackHelpful)
	assert.False(t, *updated.FeedbackHelpful)
	assert.Equal(t, models.StatusPending, updated.Status, "status untouched by feedback update")

	updated, err = f.svc.Update(ctx, adminCaller(), &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Resolved")}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)
	require.NotNil(t, updated.FeedbackHelpful, "feedback untouched by status update")
	assert.False(t, *updated.FeedbackHelpful)
	assert.NotNil(t, updated.ResolvedAt)

	// classifier fields are immutable
	assert.Equal(t, c.Category, updated.Category)
	assert.Equal(t, c.AIResponse, updated.AIResponse)
	assert.Equal(t, c.ComplaintText, updated.ComplaintText)
}

func TestUpdate_ResolveIsIdempotent(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, anonCaller(), "x")
	ctx := context.Background()
	req := &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Resolved")}

	first, err := f.svc.Update(ctx, adminCaller(), req, RequestMeta{})
	require.NoError(t, err)
	second, err := f.svc.Update(ctx, adminCaller(), req, RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, second.Status)
	require.NotNil(t, first.ResolvedAt)
	require.NotNil(t, second.ResolvedAt)
	assert.True(t, first.ResolvedAt.Equal(*second.ResolvedAt), "resolved_at is stamped once")
}

func TestUpdate_NoReopen(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, anonCaller(), "x")
	ctx := context.Background()

	_, err := f.svc.Update(ctx, adminCaller(), &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Resolved")}, RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, adminCaller(), &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Pending")}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindValidation))

	var stored models.Complaint
	require.NoError(t, f.db.First(&stored, "id = ?", c.ID).Error)
	assert.Equal(t, models.StatusResolved, stored.Status)
}

func TestUpdate_StatusRequiresManager(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, userCaller(5), "x")
	ctx := context.Background()

	_, err := f.svc.Update(ctx, userCaller(5), &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Resolved")}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindForbidden))

	locked := &Caller{Anonymous: true}
	_, err = f.svc.Update(ctx, locked, &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Resolved")}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindForbidden))

	// owners may still rate the AI response
	updated, err := f.svc.Update(ctx, userCaller(5), &UpdateComplaintRequest{ID: c.ID, FeedbackHelpful: boolPtr(true)}, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, *updated.FeedbackHelpful)

	// other users cannot see it at all
	_, err = f.svc.Update(ctx, userCaller(6), &UpdateComplaintRequest{ID: c.ID, FeedbackHelpful: boolPtr(true)}, RequestMeta{})
	assert.True(t, response.IsKind(err, response.KindNotFound))
}

func TestUpdate_WritesAuditEntry(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, anonCaller(), "x")

	_, err := f.svc.Update(context.Background(), adminCaller(), &UpdateComplaintRequest{ID: c.ID, Status: strPtr("Resolved")},
		RequestMeta{IP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)

	var logs []models.SystemLog
	require.NoError(t, f.db.Where("target = ?", c.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "complaints", logs[0].Module)
	assert.Equal(t, "10.0.0.1", logs[0].IP)
	assert.Contains(t, logs[0].Extra, "Resolved")
}

func TestGet_HiddenFromOtherUsers(t *testing.T) {
	f := newComplaintFixture(t)
	c := f.submit(t, userCaller(5), "x")

	got, err := f.svc.Get(context.Background(), userCaller(5), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = f.svc.Get(context.Background(), userCaller(6), c.ID)
	assert.True(t, response.IsKind(err, response.KindNotFound))
}
