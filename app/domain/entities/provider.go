package entities

import "time"

// Provider kinds understood by the provider factory.
const (
	KindOpenAI      = "openai"
	KindHuggingFace = "huggingface"
)

// Provider is a configured LLM backend.
type Provider struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"size:100;uniqueIndex;not null"`
	Kind         string     `json:"kind" gorm:"size:50;not null"`
	BaseURL      string     `json:"base_url" gorm:"size:500"`
	APIKey       string     `json:"-" gorm:"type:text"`
	Model        string     `json:"model" gorm:"size:255;not null"`
	MaxTokens    int        `json:"max_tokens"`
	Temperature  float32    `json:"temperature"`
	Weight       float64    `json:"weight"`
	Enabled      bool       `json:"enabled" gorm:"index:idx_providers_enabled"`
	Priority     int        `json:"priority" gorm:"default:0;index:idx_providers_priority"`
	RequestCount int        `json:"request_count" gorm:"default:0"`
	ErrorCount   int        `json:"error_count" gorm:"default:0"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName pins the table name.
func (Provider) TableName() string {
	return "providers"
}

// Configured reports whether the provider may be called.
func (p *Provider) Configured() bool {
	return p.Enabled && p.APIKey != ""
}

// MaskAPIKey shows only the first 3 and last 4 characters of the key.
func (p *Provider) MaskAPIKey() string {
	if len(p.APIKey) <= 7 {
		return "***"
	}
	return p.APIKey[:3] + "***" + p.APIKey[len(p.APIKey)-4:]
}
