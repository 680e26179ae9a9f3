package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/planner"
	"github.com/starford/daybook/internal/retry"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeAccounts = "accounts"
)

// Storage drivers.
const (
	StorageDriverFS     = "fs"
	StorageDriverSQLite = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Planner PlannerConfig     `yaml:"planner"`
	Retry   RetryConfig       `yaml:"retry"`
	Auth    AuthConfig        `yaml:"auth"`
	Events  EventsConfig      `yaml:"events"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Storage, &c.SQLite, &c.Planner, &c.Retry, &c.Auth, &c.Events, &c.MCP,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where day buckets live.
//
// Driver "fs" keeps one JSON file per bucket under Path and watches it for
// edits made outside the server. Driver "sqlite" keeps buckets in the shared
// database.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StorageDriverFS, StorageDriverSQLite)),
		validation.Field(&c.Path, validation.When(c.Driver == StorageDriverFS, validation.Required)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// MaxRangeDays bounds the navigation window to ten years.
const MaxRangeDays = 3660

// PlannerConfig holds the day planner settings.
type PlannerConfig struct {
	JobsMode          string `yaml:"jobs_mode"`
	JobStatuses       string `yaml:"job_statuses"`
	QuoteStripPattern string `yaml:"quote_strip_pattern"`
	RangeDays         int    `yaml:"range_days"`
}

// Validate validates the planner configuration.
func (c *PlannerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.JobsMode, validation.Required, validation.In(planner.JobsModeBucket, planner.JobsModeCollection)),
		validation.Field(&c.JobStatuses, validation.Required, validation.In("basic", "extended")),
		validation.Field(&c.QuoteStripPattern, validation.By(compiles)),
		validation.Field(&c.RangeDays, validation.Min(0), validation.Max(MaxRangeDays)),
	)
}

func compiles(value any) error {
	s, _ := value.(string)
	if _, err := regexp.Compile(s); err != nil {
		return fmt.Errorf("must be a valid regular expression: %w", err)
	}
	return nil
}

// Statuses returns the configured status cycle.
func (c *PlannerConfig) Statuses() models.StatusCycle {
	cycle, err := models.StatusCycleByName(c.JobStatuses)
	if err != nil {
		return models.BasicStatuses
	}
	return cycle
}

// RetryConfig holds the write retry policy.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxJitter   time.Duration `yaml:"max_jitter"`
}

// Validate validates the retry configuration.
func (c *RetryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxJitter, validation.Min(time.Duration(0))),
	)
}

// Policy returns the configured retry policy.
func (c *RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.MaxAttempts
	p.BaseDelay = c.BaseDelay
	p.MaxJitter = c.MaxJitter
	return p
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, every request acts
//     as the single local owner.
//   - "token": Bearer token authentication; Token must be non-empty and is
//     bound to owner TokenOwner.
//   - "accounts": anonymous and email sign-in issue session tokens. Token,
//     when set, is also accepted.
type AuthConfig struct {
	Mode       string `yaml:"mode"`
	Token      string `yaml:"token"`
	TokenOwner string `yaml:"token_owner"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if c.TokenOwner == "" {
		c.TokenOwner = "owner"
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeAccounts)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != AuthModeDisabled
}

// EventsConfig holds optional change fan-out settings.
type EventsConfig struct {
	AMQP AMQPConfig `yaml:"amqp"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return c.AMQP.Validate()
}

// AMQPConfig enables publishing change messages to a topic exchange when URL
// is set.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Validate validates the AMQP configuration.
func (c *AMQPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.By(amqpURL)),
		validation.Field(&c.Exchange, validation.When(c.URL != "", validation.Required)),
	)
}

func amqpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") || u.Host == "" {
		return fmt.Errorf("must be an amqp:// or amqps:// URL")
	}
	return nil
}

// Enabled reports whether change messages are published.
func (c *AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// MCPConfig holds the stdio tool server settings.
type MCPConfig struct {
	Owner string `yaml:"owner"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	policy := retry.DefaultPolicy()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: StorageDriverFS,
			Path:   "./data",
		},
		SQLite: SQLiteConfig{
			Path: "./daybook.db",
		},
		Planner: PlannerConfig{
			JobsMode:          planner.JobsModeBucket,
			JobStatuses:       "basic",
			QuoteStripPattern: models.DefaultQuoteStrip,
			RangeDays:         0,
		},
		Retry: RetryConfig{
			MaxAttempts: policy.MaxAttempts,
			BaseDelay:   policy.BaseDelay,
			MaxJitter:   policy.MaxJitter,
		},
		Auth: AuthConfig{
			Mode:       AuthModeDisabled,
			TokenOwner: "owner",
		},
		Events: EventsConfig{
			AMQP: AMQPConfig{Exchange: "daybook.changes"},
		},
		MCP: MCPConfig{
			Owner: "local",
		},
	}
}
