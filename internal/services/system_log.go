package services

import (
	"encoding/json"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"gorm.io/gorm"
)

const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// AuditEntry describes one action worth keeping in system_logs.
type AuditEntry struct {
	Module    string
	Action    string
	Target    string
	Message   string
	UserID    *uint
	IP        string
	UserAgent string
	Extra     interface{}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

func (s *SystemLogService) Info(e AuditEntry)    { s.write(LogLevelInfo, e) }
func (s *SystemLogService) Warning(e AuditEntry) { s.write(LogLevelWarning, e) }
func (s *SystemLogService) Error(e AuditEntry)   { s.write(LogLevelError, e) }

// write never fails the caller; audit problems are only logged.
func (s *SystemLogService) write(level string, e AuditEntry) {
	if s == nil || s.db == nil {
		return
	}

	var extra string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    e.Module,
		Action:    e.Action,
		Target:    e.Target,
		Message:   e.Message,
		UserID:    e.UserID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extra,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("action", e.Action).Msg("[SystemLog] failed to write audit entry")
	}
}

type SystemLogListRequest struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	Target    string `form:"target"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.Target != "" {
		query = query.Where("target = ?", req.Target)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	logs := []models.SystemLog{}
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes entries older than retentionDays and returns how
// many were removed. Zero or negative retention keeps everything.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
