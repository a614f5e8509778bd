package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// LLMConfig is a classifier backend stored in the database. At most one
// active row is marked default; the classifier uses exactly one row per call.
type LLMConfig struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Provider    string         `gorm:"size:50;default:openai" json:"provider"`
	BaseURL     string         `gorm:"size:500" json:"base_url"`
	APIKey      string         `gorm:"size:500" json:"-"`
	APIKeyMask  string         `gorm:"-" json:"api_key_mask"`
	Model       string         `gorm:"size:100" json:"model"`
	MaxTokens   int            `gorm:"default:1024" json:"max_tokens"`
	Temperature float64        `gorm:"default:0.2" json:"temperature"`
	IsDefault   bool           `gorm:"default:false" json:"is_default"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (LLMConfig) TableName() string { return "llm_configs" }

// MaskAPIKey keeps the first and last four characters.
func (l *LLMConfig) MaskAPIKey() string {
	if len(l.APIKey) <= 8 {
		return "****"
	}
	return l.APIKey[:4] + "****" + l.APIKey[len(l.APIKey)-4:]
}

func IsValidProvider(p string) bool {
	switch p {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic, ProviderOllama, ProviderGemini:
		return true
	}
	return false
}
