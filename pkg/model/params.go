package model

import "github.com/google/uuid"

// Model identifies a generation model offered by a provider.
type Model struct {
	ID          string `json:"modelId" yaml:"id"`
	DisplayName string `json:"displayName,omitempty" yaml:"display_name,omitempty"`
}

// CustomHeader is an extra HTTP header attached to provider requests.
type CustomHeader struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// CustomBodyField is an extra key merged into the vendor request body.
// Custom keys win over generated ones on conflict.
type CustomBodyField struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// GenerationParams holds per-request generation settings. Optional fields
// are pointers: nil means "omit from the wire request", which vendors treat
// differently from an explicit zero.
type GenerationParams struct {
	Model         Model
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	CustomHeaders []CustomHeader
	CustomBody    []CustomBodyField
}

// NewTaskID generates a task id correlating one logical streaming request
// for cancellation purposes.
func NewTaskID() string {
	return uuid.New().String()
}
