package guardrails

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SensitivityLevel controls how aggressively an LLM-mediated check flags
// ambiguous content
type SensitivityLevel string

const (
	SensitivityLow    SensitivityLevel = "low"
	SensitivityMedium SensitivityLevel = "medium"
	SensitivityHigh   SensitivityLevel = "high"
)

// CheckConfig configures an LLM-mediated check pipeline
type CheckConfig struct {
	Sensitivity       SensitivityLevel `yaml:"sensitivity"`
	ReasoningEnabled  bool             `yaml:"reasoning_enabled"`
	ConfidenceEnabled bool             `yaml:"confidence_enabled"`
	Temperature       float64          `yaml:"temperature"`
	MaxTokens         int              `yaml:"max_tokens"`
}

// DefaultCheckConfig returns the default check configuration
func DefaultCheckConfig() *CheckConfig {
	return &CheckConfig{
		Sensitivity:      SensitivityMedium,
		ReasoningEnabled: true,
		Temperature:      0.1,
	}
}

// LoadCheckConfigFromFile loads a check configuration from a YAML file.
// Omitted fields keep their defaults.
func LoadCheckConfigFromFile(filePath string) (*CheckConfig, error) {
	if !isValidFilePath(filePath) {
		return nil, fmt.Errorf("invalid config file path")
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - Path is validated with isValidFilePath() before use
	if err != nil {
		return nil, fmt.Errorf("failed to read check config file: %w", err)
	}

	config := DefaultCheckConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal check config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for out-of-range values
func (c *CheckConfig) Validate() error {
	switch c.Sensitivity {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
	default:
		return fmt.Errorf("unknown sensitivity level: %q", c.Sensitivity)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens)
	}

	return nil
}

// TemplateVariables exposes the configuration to prompt templates
func (c *CheckConfig) TemplateVariables() map[string]interface{} {
	return map[string]interface{}{
		"sensitivity": string(c.Sensitivity),
		"reasoning":   c.ReasoningEnabled,
		"confidence":  c.ConfidenceEnabled,
	}
}

// isValidFilePath checks if a file path is valid and safe
func isValidFilePath(filePath string) bool {
	if filePath == "" {
		return false
	}

	cleanPath := filepath.Clean(filePath)
	if strings.Contains(cleanPath, "..") {
		return false
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return false
	}

	// Block paths that could disclose sensitive system state
	if strings.HasPrefix(absPath, "/proc") || strings.HasPrefix(absPath, "/sys") {
		return false
	}

	return true
}
