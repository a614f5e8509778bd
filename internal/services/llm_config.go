package services

import (
	"errors"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"gorm.io/gorm"
)

type LLMConfigService struct {
	db *gorm.DB
}

func NewLLMConfigService(db *gorm.DB) *LLMConfigService {
	return &LLMConfigService{db: db}
}

type LLMConfigListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Name     string `form:"name"`
	Provider string `form:"provider"`
	IsActive *bool  `form:"is_active"`
}

type LLMConfigListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.LLMConfig `json:"items"`
}

type CreateLLMConfigRequest struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsDefault   bool    `json:"is_default"`
	IsActive    *bool   `json:"is_active"`
}

type UpdateLLMConfigRequest struct {
	Name        string   `json:"name"`
	Provider    string   `json:"provider"`
	BaseURL     *string  `json:"base_url"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	IsDefault   *bool    `json:"is_default"`
	IsActive    *bool    `json:"is_active"`
}

func (s *LLMConfigService) List(req *LLMConfigListRequest) (*LLMConfigListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 10
	}

	query := s.db.Model(&models.LLMConfig{})
	if req.Name != "" {
		query = query.Where("name LIKE ? OR model LIKE ?", "%"+req.Name+"%", "%"+req.Name+"%")
	}
	if req.Provider != "" {
		query = query.Where("provider = ?", req.Provider)
	}
	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}

	configs := []models.LLMConfig{}
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("is_default DESC, id ASC").Find(&configs).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	for i := range configs {
		configs[i].APIKeyMask = configs[i].MaskAPIKey()
	}

	return &LLMConfigListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    configs,
	}, nil
}

func (s *LLMConfigService) GetByID(id uint) (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	if err := s.db.First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("LLM config not found")
		}
		return nil, response.NewUpstreamError(err)
	}
	cfg.APIKeyMask = cfg.MaskAPIKey()
	return &cfg, nil
}

// Create stores a new backend. Marking it default clears the flag on all
// other rows in the same transaction.
func (s *LLMConfigService) Create(req *CreateLLMConfigRequest) (*models.LLMConfig, error) {
	if req.Name == "" || req.Model == "" {
		return nil, response.NewValidationError("name and model are required")
	}
	if req.Provider == "" {
		req.Provider = models.ProviderOpenAI
	}
	if !models.IsValidProvider(req.Provider) {
		return nil, response.NewValidationError("unsupported provider: " + req.Provider)
	}
	if req.APIKey == "" && req.Provider != models.ProviderOllama {
		return nil, response.NewValidationError("api_key is required for provider " + req.Provider)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	if req.Temperature <= 0 {
		req.Temperature = 0.2
	}

	cfg := models.LLMConfig{
		Name:        req.Name,
		Provider:    req.Provider,
		BaseURL:     req.BaseURL,
		APIKey:      req.APIKey,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		IsDefault:   req.IsDefault,
		IsActive:    true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.LLMConfig{}).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&cfg).Error; err != nil {
			return err
		}
		// the column default would override a false value on insert
		if req.IsActive != nil && !*req.IsActive {
			cfg.IsActive = false
			return tx.Model(&cfg).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, response.NewUpstreamError(err)
	}

	cfg.APIKeyMask = cfg.MaskAPIKey()
	return &cfg, nil
}

func (s *LLMConfigService) Update(id uint, req *UpdateLLMConfigRequest) (*models.LLMConfig, error) {
	cfg, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Provider != "" {
		if !models.IsValidProvider(req.Provider) {
			return nil, response.NewValidationError("unsupported provider: " + req.Provider)
		}
		updates["provider"] = req.Provider
	}
	if req.BaseURL != nil {
		updates["base_url"] = *req.BaseURL
	}
	// an empty key keeps the stored one; clients only ever see the mask
	if req.APIKey != "" {
		updates["api_key"] = req.APIKey
	}
	if req.Model != "" {
		updates["model"] = req.Model
	}
	if req.MaxTokens != nil {
		updates["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		updates["temperature"] = *req.Temperature
	}
	if req.IsDefault != nil {
		updates["is_default"] = *req.IsDefault
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return cfg, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault != nil && *req.IsDefault {
			if err := tx.Model(&models.LLMConfig{}).Where("is_default = ? AND id != ?", true, id).Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.LLMConfig{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, response.NewUpstreamError(err)
	}

	return s.GetByID(id)
}

func (s *LLMConfigService) Delete(id uint) error {
	result := s.db.Delete(&models.LLMConfig{}, id)
	if result.Error != nil {
		return response.NewUpstreamError(result.Error)
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("LLM config not found")
	}
	return nil
}

// GetActive lists active backends, default first.
func (s *LLMConfigService) GetActive() ([]models.LLMConfig, error) {
	configs := []models.LLMConfig{}
	if err := s.db.Where("is_active = ?", true).Order("is_default DESC, id ASC").Find(&configs).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	for i := range configs {
		configs[i].APIKeyMask = configs[i].MaskAPIKey()
	}
	return configs, nil
}
