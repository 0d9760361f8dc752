package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Cache backend names accepted in cache.backend.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config represents the application configuration.
//
// Keys are kept single-word below the section level so the environment
// mapping stays unambiguous: ENGAGELENS_API_TOKEN becomes api.token.
type Config struct {
	Target   string `koanf:"target"`
	Partners int    `koanf:"partners"`
	Posts    int    `koanf:"posts"`

	API struct {
		Token     string `koanf:"token"`
		Delegated string `koanf:"delegated"`
		Endpoint  string `koanf:"endpoint"`
	} `koanf:"api"`

	Analysis struct {
		Provider string `koanf:"provider"`
		Model    string `koanf:"model"`
		Key      string `koanf:"key"`
		Endpoint string `koanf:"endpoint"`
	} `koanf:"analysis"`

	Cache struct {
		Backend string `koanf:"backend"`
		Dir     string `koanf:"dir"`
		DSN     string `koanf:"dsn"`
	} `koanf:"cache"`

	Boost struct {
		Enabled  bool    `koanf:"enabled"`
		Strategy string  `koanf:"strategy"`
		Value    float64 `koanf:"value"`
	} `koanf:"boost"`

	Output struct {
		Dir string `koanf:"dir"`
	} `koanf:"output"`

	Concurrency struct {
		Workers int `koanf:"workers"`
	} `koanf:"concurrency"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	// Pull in a local .env first so the env provider below sees it.
	_ = godotenv.Load()

	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"partners":            20,
		"posts":               3,
		"api.endpoint":        "https://api.x.com/2",
		"analysis.provider":   "anthropic",
		"cache.backend":       BackendFile,
		"cache.dir":           filepath.Join(xdg.CacheHome, "engagelens"),
		"boost.enabled":       true,
		"boost.strategy":      "multiply",
		"boost.value":         1.5,
		"output.dir":          ".",
		"concurrency.workers": 4,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{
			"./engagelens.toml",
			filepath.Join(xdg.ConfigHome, "engagelens", "engagelens.toml"),
			"$HOME/.engagelens.toml",
		}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix ENGAGELENS_
	k.Load(env.Provider("ENGAGELENS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ENGAGELENS_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# EngageLens Configuration

target = "yourhandle"
partners = 20
posts = 3

[api]
token = "your-api-bearer-token"

[analysis]
provider = "anthropic"
key = "your-anthropic-api-key"
model = "claude-3-5-sonnet-latest"

[cache]
backend = "file"

[boost]
enabled = true
strategy = "multiply"
value = 1.5

[output]
dir = "./reports"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.API.Token == "" {
		return fmt.Errorf("api token is required (set api.token or ENGAGELENS_API_TOKEN)")
	}

	if config.Partners <= 0 {
		return fmt.Errorf("partners must be positive, got %d", config.Partners)
	}
	if config.Posts <= 0 {
		return fmt.Errorf("posts must be positive, got %d", config.Posts)
	}

	switch config.Cache.Backend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if config.Cache.DSN == "" {
			return fmt.Errorf("cache backend %q requires cache.dsn", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
	}

	if config.Boost.Enabled {
		switch config.Boost.Strategy {
		case "multiply", "add":
		default:
			return fmt.Errorf("unknown boost strategy %q", config.Boost.Strategy)
		}
		if config.Boost.Value <= 0 {
			return fmt.Errorf("boost value must be positive, got %g", config.Boost.Value)
		}
	}

	switch config.Analysis.Provider {
	case "anthropic", "openai", "googleai", "cohere", "ollama":
	default:
		return fmt.Errorf("unknown analysis provider %q", config.Analysis.Provider)
	}

	if config.Concurrency.Workers <= 0 {
		return fmt.Errorf("concurrency workers must be positive, got %d", config.Concurrency.Workers)
	}

	return nil
}
