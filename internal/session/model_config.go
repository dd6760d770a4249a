package session

import (
	"errors"
	"fmt"
	"slices"
)

// ModelID names an analysis model supported by the backend.
type ModelID string

const (
	ModelGeminiFlash     ModelID = "gemini-2.5-flash"
	ModelGeminiPro       ModelID = "gemini-2.5-pro"
	ModelGeminiFlashLite ModelID = "gemini-2.5-flash-lite"
	ModelGemini3Pro      ModelID = "gemini-3-pro-preview"
)

// SupportedModels lists the model identifiers in display order.
var SupportedModels = []ModelID{
	ModelGeminiFlash,
	ModelGeminiPro,
	ModelGeminiFlashLite,
	ModelGemini3Pro,
}

// IsValid reports whether id is one of [SupportedModels].
func (id ModelID) IsValid() bool {
	return slices.Contains(SupportedModels, id)
}

// ThinkingBudgets are the presets offered when cycling the thinking budget.
// 0 disables thinking.
var ThinkingBudgets = []int{0, 1024, 4096, 8192, 16384}

// ModelConfig holds the per-analysis model settings.
type ModelConfig struct {
	ModelID        ModelID
	Temperature    float64
	ThinkingBudget int
}

// DefaultModelConfig mirrors the backend's form defaults.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ModelID:     ModelGeminiFlash,
		Temperature: 0.2,
	}
}

// Validate checks the config fields.
func (c ModelConfig) Validate() error {
	var errs []error
	if !c.ModelID.IsValid() {
		errs = append(errs, fmt.Errorf("model id %q is not supported; valid values: %v", c.ModelID, SupportedModels))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f is out of range [0, 2]", c.Temperature))
	}
	if c.ThinkingBudget < 0 {
		errs = append(errs, fmt.Errorf("thinking budget %d must not be negative", c.ThinkingBudget))
	}
	return errors.Join(errs...)
}

// NextModel returns the config with the following supported model selected.
func (c ModelConfig) NextModel() ModelConfig {
	i := slices.Index(SupportedModels, c.ModelID)
	c.ModelID = SupportedModels[(i+1)%len(SupportedModels)]
	return c
}

// NextThinkingBudget returns the config with the following budget preset.
func (c ModelConfig) NextThinkingBudget() ModelConfig {
	i := slices.Index(ThinkingBudgets, c.ThinkingBudget)
	c.ThinkingBudget = ThinkingBudgets[(i+1)%len(ThinkingBudgets)]
	return c
}

// AdjustTemperature shifts the temperature by delta, clamped to [0, 1].
func (c ModelConfig) AdjustTemperature(delta float64) ModelConfig {
	t := c.Temperature + delta
	// round to one decimal so repeated steps do not drift
	t = float64(int(t*10+0.5)) / 10
	c.Temperature = min(1, max(0, t))
	return c
}
