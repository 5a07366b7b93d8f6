// Package config loads and validates the assistant configuration: secrets
// from the environment (optionally a .env file) and the processing rules
// from a YAML file. The result is loaded once at startup and passed
// explicitly into each component; nothing reads ambient global state.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full assistant configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Gmail      GmailConfig      `yaml:"gmail"`
	Drive      DriveConfig      `yaml:"drive"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Subject    SubjectConfig    `yaml:"subject"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Gmail.Validate(); err != nil {
		return err
	}
	if err := c.Drive.Validate(); err != nil {
		return err
	}
	if err := c.Sheets.Validate(); err != nil {
		return err
	}
	if err := c.Extraction.Validate(); err != nil {
		return err
	}
	return c.Subject.Validate()
}

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel            slog.Level `yaml:"log_level"`
	PollIntervalSeconds int        `yaml:"poll_interval_seconds"`
}

// PollInterval returns the daemon polling interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Validate validates the application settings.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PollIntervalSeconds, validation.Required, validation.Min(10)),
	)
}

// GmailConfig holds mail-source settings.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	SearchQuery     string `yaml:"search_query"`
	ProcessedLabel  string `yaml:"processed_label"`
}

// Validate validates the mail-source settings.
func (c *GmailConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CredentialsFile, validation.Required),
		validation.Field(&c.TokenFile, validation.Required),
		validation.Field(&c.SearchQuery, validation.Required),
		validation.Field(&c.ProcessedLabel, validation.Required),
	)
}

// DriveConfig holds storage-hierarchy settings.
type DriveConfig struct {
	BasePath       []string `yaml:"base_path"`
	OutlinePattern string   `yaml:"outline_pattern"`
}

// Validate validates the storage settings.
func (c *DriveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BasePath, validation.Required, validation.Length(1, 0)),
		validation.Field(&c.OutlinePattern, validation.Required, validation.By(compilesAsRegexp)),
	)
}

// SheetsConfig holds the optional contract-timeline tracking spreadsheet.
// An empty spreadsheet_id disables the enrichment. Row numbers are
// 1-based, as shown in the sheet UI.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	GridID        int64  `yaml:"grid_id"`
	NameRow       int    `yaml:"name_row"`
	StartRow      int    `yaml:"start_row"`
	EndRow        int    `yaml:"end_row"`
}

// Enabled reports whether a tracking spreadsheet is configured.
func (c *SheetsConfig) Enabled() bool { return c.SpreadsheetID != "" }

// Validate validates the spreadsheet settings when one is configured.
func (c *SheetsConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.GridID, validation.Min(0)),
		validation.Field(&c.NameRow, validation.Required, validation.Min(1)),
		validation.Field(&c.StartRow, validation.Required, validation.Min(1)),
		validation.Field(&c.EndRow, validation.Required, validation.Min(1)),
	)
}

// ExtractionConfig holds completion-service settings. The API key comes
// from the OPENAI_API_KEY environment variable, never from the YAML file.
type ExtractionConfig struct {
	Model             string `yaml:"model"`
	RetryCount        int    `yaml:"retry_count"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
	APIKey            string `yaml:"-"`
}

// RetryDelay returns the pause before an extraction retry.
func (c *ExtractionConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// Validate validates the completion-service settings.
func (c *ExtractionConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.RetryCount, validation.Min(0)),
		validation.Field(&c.RetryDelaySeconds, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("extraction: OPENAI_API_KEY is not set")
	}
	return nil
}

// SubjectConfig holds the subject classification rule.
type SubjectConfig struct {
	RequiredToken  string   `yaml:"required_token"`
	ExcludeTerms   []string `yaml:"exclude_terms"`
	CapturePattern string   `yaml:"capture_pattern"`
}

// Validate validates the subject rule.
func (c *SubjectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.RequiredToken, validation.Required),
		validation.Field(&c.CapturePattern, validation.Required, validation.By(compilesAsRegexp)),
	); err != nil {
		return err
	}
	re := regexp.MustCompile("(?i)" + c.CapturePattern)
	if re.NumSubexp() < 1 {
		return fmt.Errorf("subject: capture_pattern has no capturing group")
	}
	return nil
}

func compilesAsRegexp(value any) error {
	s, _ := value.(string)
	if _, err := regexp.Compile("(?i)" + s); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a Config with sensible defaults. The subject
// rule has no useful default; deployments must configure it.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:            slog.LevelInfo,
			PollIntervalSeconds: 300,
		},
		Gmail: GmailConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			SearchQuery:     "in:inbox",
			ProcessedLabel:  "followup-assistant/processed",
		},
		Drive: DriveConfig{
			OutlinePattern: "outline",
		},
		Sheets: SheetsConfig{
			NameRow:  3,
			StartRow: 10,
			EndRow:   11,
		},
		Extraction: ExtractionConfig{
			Model:             "gpt-4o-mini",
			RetryCount:        1,
			RetryDelaySeconds: 2,
		},
	}
}

// Load reads the YAML config at path over the defaults, pulls secrets from
// the environment (loading .env first when present), and validates the
// result.
func Load(path string) (*Config, error) {
	// Missing .env is fine; real deployments may use actual env vars.
	_ = godotenv.Load()

	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Extraction.APIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
