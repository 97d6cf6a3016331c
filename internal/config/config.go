package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tgops/internal/domain"
)

const (
	defaultAppFolder = "tgops"
	configFileName   = "config.yaml"
)

type SessionBackend string

const (
	SessionFile   SessionBackend = "file"
	SessionSQLite SessionBackend = "sqlite"
)

type Config struct {
	DataDir string `yaml:"-"`

	Telegram domain.Credentials `yaml:"telegram"`
	// SessionStore selects where the session is kept when no session
	// string is given.
	SessionStore  SessionBackend `yaml:"session_store"`
	PeerCacheSize int            `yaml:"peer_cache_size"`
	UploadWorkers int            `yaml:"upload_workers"`
	MCPPort       int            `yaml:"mcp_port"`
	// ItemTimeout is the default per-item batch timeout in seconds.
	ItemTimeout int `yaml:"item_timeout"`
	// LogLevel is one of debug, info, warn or error. Empty follows --verbose.
	LogLevel string `yaml:"log_level"`
}

// Load resolves the data directory, reads config.yaml from it when present
// and applies TGOPS_* environment overrides.
func Load() (Config, error) {
	cfg := Config{
		DataDir:      ResolveDataDir(),
		SessionStore: SessionFile,
		MCPPort:      8765,
	}
	raw, err := os.ReadFile(filepath.Clean(cfg.Path()))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	switch cfg.SessionStore {
	case "":
		cfg.SessionStore = SessionFile
	case SessionFile, SessionSQLite:
	default:
		return cfg, errors.New("session_store must be file or sqlite")
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("TGOPS_API_ID")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("TGOPS_API_ID must be a number")
		}
		c.Telegram.APIID = id
	}
	for env, dst := range map[string]*string{
		"TGOPS_API_HASH":  &c.Telegram.APIHash,
		"TGOPS_PHONE":     &c.Telegram.Phone,
		"TGOPS_PASSWORD":  &c.Telegram.Password,
		"TGOPS_SESSION":   &c.Telegram.Session,
		"TGOPS_LOG_LEVEL": &c.LogLevel,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	return nil
}

// Path is the location of config.yaml.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, configFileName)
}

func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "tgops.db")
}

func (c Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.txt")
}

// Save writes the config back to config.yaml. Secrets taken from the
// environment are written too, so callers decide what to keep.
func (c Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return err
	}
	encoded, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmpPath := c.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, encoded, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, c.Path())
}

// ResolveDataDir picks TGOPS_DATA_DIR, then the persisted bootstrap choice,
// then the default directory.
func ResolveDataDir() string {
	if envDir := os.Getenv("TGOPS_DATA_DIR"); envDir != "" {
		return envDir
	}
	if persisted, err := loadPersistedDataDir(); err == nil && strings.TrimSpace(persisted) != "" {
		return persisted
	}
	return DefaultDataDir()
}

func PersistDataDir(dataDir string) error {
	clean := strings.TrimSpace(filepath.Clean(dataDir))
	if clean == "" || clean == "." {
		return errors.New("data directory is required")
	}
	if err := os.MkdirAll(clean, 0o700); err != nil {
		return err
	}
	bootstrapPath, err := bootstrapConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(bootstrapPath), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(bootstrapConfig{DataDir: clean}, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := bootstrapPath + ".tmp"
	if err := os.WriteFile(tmpPath, encoded, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, bootstrapPath)
}

func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, defaultAppFolder)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultAppFolder)
}

type bootstrapConfig struct {
	DataDir string `json:"data_dir"`
}

func loadPersistedDataDir() (string, error) {
	bootstrapPath, err := bootstrapConfigPath()
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Clean(bootstrapPath))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var payload bootstrapConfig
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.DataDir) == "" {
		return "", nil
	}
	return filepath.Clean(payload.DataDir), nil
}

func bootstrapConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tgops-bootstrap.json"), nil
}
