package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/agents"
	"github.com/starford/ansuz/internal/oracle"
	"github.com/starford/ansuz/internal/router"
	"github.com/starford/ansuz/internal/vault"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Access   AccessConfig      `yaml:"access"`
	Oracle   OracleConfig      `yaml:"oracle"`
	Router   RouterConfig      `yaml:"router"`
	Briefing BriefingConfig    `yaml:"briefing"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Oracle.Validate(); err != nil {
		return err
	}
	if err := c.Router.Validate(); err != nil {
		return err
	}
	return c.Briefing.Validate()
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
	// CORSOrigins enables CORS for browser clients of the API and event stream.
	CORSOrigins []string `yaml:"cors_origins"`
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

// VaultConfig describes the Markdown vault directory and its folder set.
type VaultConfig struct {
	Path    string   `yaml:"path"`
	Folders []string `yaml:"folders"`
	// DefaultFolder receives notes whose requested folder is unknown.
	DefaultFolder string `yaml:"default_folder"`
}

// Validate validates the vault configuration. An empty folder list selects
// vault.DefaultFolders.
func (c *VaultConfig) Validate() error {
	if len(c.Folders) == 0 {
		c.Folders = append([]string(nil), vault.DefaultFolders...)
	}
	if c.DefaultFolder == "" {
		c.DefaultFolder = vault.InboxFolder
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Folders, validation.Each(validation.Required)),
	); err != nil {
		return err
	}
	for _, f := range c.Folders {
		if f == c.DefaultFolder {
			return nil
		}
	}
	return fmt.Errorf("vault: default_folder %q is not in folders", c.DefaultFolder)
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

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
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
	return c.Mode == AuthModeToken
}

// AccessConfig restricts which chat users may send messages. Empty allows everyone.
type AccessConfig struct {
	AllowedUsers []string `yaml:"allowed_users"`
}

// OracleConfig selects and tunes the language-model provider.
type OracleConfig struct {
	Provider  string        `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Validate validates the oracle configuration. The API key is checked when
// the oracle is opened, so commands that never call it can run without one.
func (c *OracleConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = oracle.ProviderGemini
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(oracle.ProviderGemini, oracle.ProviderAnthropic, oracle.ProviderOpenAI)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// OracleSettings converts the section to an oracle.Config.
func (c *OracleConfig) OracleSettings() oracle.Config {
	return oracle.Config{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
}

// RouterConfig tunes intent classification.
type RouterConfig struct {
	DefaultIntent   string        `yaml:"default_intent"`
	ClassifyTimeout time.Duration `yaml:"classify_timeout"`
}

// Validate validates the router configuration.
func (c *RouterConfig) Validate() error {
	if c.DefaultIntent == "" {
		c.DefaultIntent = agents.FilingName
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultIntent,
			validation.In(agents.FilingName, agents.VaultQueryName, agents.VaultEditName, agents.MemoryName)),
		validation.Field(&c.ClassifyTimeout, validation.Min(time.Duration(0))),
	)
}

// BriefingConfig controls the daily briefing scheduler.
type BriefingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Hour is the local clock hour (0-23) the briefing is written at.
	Hour int `yaml:"hour"`
}

// Validate validates the briefing configuration.
func (c *BriefingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Hour, validation.Min(0), validation.Max(23)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:          "./vault",
			Folders:       append([]string(nil), vault.DefaultFolders...),
			DefaultFolder: vault.InboxFolder,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Oracle: OracleConfig{
			Provider: oracle.ProviderGemini,
			Timeout:  oracle.DefaultTimeout,
		},
		Router: RouterConfig{
			DefaultIntent:   agents.FilingName,
			ClassifyTimeout: router.DefaultClassifyTimeout,
		},
		Briefing: BriefingConfig{
			Enabled: true,
			Hour:    7,
		},
	}
}
