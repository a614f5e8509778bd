package services

import (
	"context"
	"math"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"gorm.io/gorm"
)

type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db, now: time.Now}
}

// DashboardStatsRequest bounds the stats by created_at. Both dates are
// optional (YYYY-MM-DD); no bounds means all time.
type DashboardStatsRequest struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type FeedbackStats struct {
	Helpful        int64   `json:"helpful"`
	NotHelpful     int64   `json:"not_helpful"`
	Rated          int64   `json:"rated"`
	HelpfulPercent float64 `json:"helpful_percent"`
}

type CategoryStats struct {
	Category      string  `json:"category"`
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type DashboardResponse struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByPriority    map[string]int64 `json:"by_priority"`
	BySentiment   map[string]int64 `json:"by_sentiment"`
	Feedback      FeedbackStats    `json:"feedback"`
	Overdue       int64            `json:"overdue"`
	AvgConfidence float64          `json:"avg_confidence"`
	Categories    []CategoryStats  `json:"categories"`
}

func parseRange(req *DashboardStatsRequest) (start, end *time.Time, err error) {
	if req.StartDate != "" {
		t, perr := time.Parse("2006-01-02", req.StartDate)
		if perr != nil {
			return nil, nil, response.NewValidationError("start_date must be YYYY-MM-DD")
		}
		start = &t
	}
	if req.EndDate != "" {
		t, perr := time.Parse("2006-01-02", req.EndDate)
		if perr != nil {
			return nil, nil, response.NewValidationError("end_date must be YYYY-MM-DD")
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		end = &t
	}
	return start, end, nil
}

type groupCount struct {
	Grp   string
	Total int64
}

func (s *DashboardService) GetStats(ctx context.Context, req *DashboardStatsRequest) (*DashboardResponse, error) {
	start, end, err := parseRange(req)
	if err != nil {
		return nil, err
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Complaint{})
		if start != nil {
			q = q.Where("created_at >= ?", *start)
		}
		if end != nil {
			q = q.Where("created_at <= ?", *end)
		}
		return q
	}

	resp := &DashboardResponse{
		ByStatus:    map[string]int64{models.StatusPending: 0, models.StatusResolved: 0},
		ByPriority:  map[string]int64{models.PriorityLow: 0, models.PriorityMedium: 0, models.PriorityHigh: 0},
		BySentiment: map[string]int64{models.SentimentPositive: 0, models.SentimentNeutral: 0, models.SentimentNegative: 0},
		Categories:  []CategoryStats{},
	}

	if err := base().Count(&resp.Total).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}

	for column, into := range map[string]map[string]int64{
		"status":    resp.ByStatus,
		"priority":  resp.ByPriority,
		"sentiment": resp.BySentiment,
	} {
		var rows []groupCount
		if err := base().Select(column + " AS grp, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
			return nil, response.NewUpstreamError(err)
		}
		for _, r := range rows {
			into[r.Grp] = r.Total
		}
	}

	if err := base().Where("feedback_helpful = ?", true).Count(&resp.Feedback.Helpful).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	if err := base().Where("feedback_helpful = ?", false).Count(&resp.Feedback.NotHelpful).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	resp.Feedback.Rated = resp.Feedback.Helpful + resp.Feedback.NotHelpful
	if resp.Feedback.Rated > 0 {
		resp.Feedback.HelpfulPercent = round1(float64(resp.Feedback.Helpful) * 100 / float64(resp.Feedback.Rated))
	}

	if err := base().
		Where("status = ? AND response_due_at IS NOT NULL AND response_due_at < ?", models.StatusPending, s.now()).
		Count(&resp.Overdue).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}

	var avg struct{ Value float64 }
	if err := base().Select("COALESCE(AVG(ai_confidence_score), 0) AS value").Scan(&avg).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	resp.AvgConfidence = round1(avg.Value)

	if err := base().
		Select("category, COUNT(*) AS count, AVG(ai_confidence_score) AS avg_confidence").
		Group("category").
		Order("count DESC, category ASC").
		Limit(10).
		Scan(&resp.Categories).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	for i := range resp.Categories {
		resp.Categories[i].AvgConfidence = round1(resp.Categories[i].AvgConfidence)
	}

	return resp, nil
}

// CountOverdue counts pending complaints past their response due date.
func (s *DashboardService) CountOverdue(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Complaint{}).
		Where("status = ? AND response_due_at IS NOT NULL AND response_due_at < ?", models.StatusPending, s.now()).
		Count(&n).Error
	return n, err
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
