package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Supported LLM provider names.
const (
	ProviderMedGemma = "medgemma"
	ProviderClaude   = "claude"
)

// Config adds application-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	LLMProvider           string
	MedGemmaEndpoint      string
	MedGemmaToken         string
	MedGemmaModel         string
	ClaudeAPIKey          string
	ClaudeModel           string
	DatabaseURL           string
	SlackWebhookURL       string
	APIToken              string
	DefaultLanguage       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderMedGemma, "LLM provider for classification and intake (medgemma or claude)")
	fs.StringVar(&c.MedGemmaEndpoint, "medgemma-endpoint", "", "Base URL of the MedGemma OpenAI-compatible endpoint")
	fs.StringVar(&c.MedGemmaToken, "medgemma-token", "", "Bearer token for the MedGemma endpoint")
	fs.StringVar(&c.MedGemmaModel, "medgemma-model", "medgemma-27b-it", "MedGemma model to use")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for classification notifications")
	fs.StringVar(&c.APIToken, "api-token", "", "Bearer token required on API requests (empty = no auth)")
	fs.StringVar(&c.DefaultLanguage, "default-language", "pt", "Default interview language (pt or en)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Provider selection decides which credentials are required
	switch c.LLMProvider {
	case ProviderMedGemma:
		if c.MedGemmaEndpoint == "" {
			errs = append(errs, errors.New("MEDGEMMA_ENDPOINT is required when llm-provider is medgemma"))
		}
		if c.MedGemmaModel == "" {
			errs = append(errs, errors.New("MEDGEMMA_MODEL is required when llm-provider is medgemma"))
		}
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when llm-provider is claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when llm-provider is claude"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be medgemma or claude)", c.LLMProvider))
	}

	if c.DefaultLanguage != "pt" && c.DefaultLanguage != "en" {
		errs = append(errs, fmt.Errorf("invalid DEFAULT_LANGUAGE %q (must be pt or en)", c.DefaultLanguage))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
