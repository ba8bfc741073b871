package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

const (
	NetworkProduction = "production"
	NetworkDev        = "dev"
)

type GlobalFlags struct {
	ConfigPath   string
	JSON         bool
	Plain        bool
	RPCURL       string
	Network      string
	Snapshot     string
	Timeout      string
	Retries      int
	CacheTTL     string
	ListenAddr   string
	LogLevel     string
	NoRefresh    bool
}

type Settings struct {
	OutputMode string

	RPCURL       string
	Network      string
	SnapshotPath string
	ProgramID    string
	GroupAddress string

	Timeout           time.Duration
	CompletionTimeout time.Duration
	Retries           int

	CacheTTL        time.Duration
	RefreshInterval time.Duration
	NoRefresh       bool

	ListenAddr string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	SessionStorePath string
	SessionLockPath  string

	TokenListURL string

	LogLevel  string
	LogFormat string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	RPCURL   string `yaml:"rpc_url"`
	Network  string `yaml:"network"`
	Snapshot string `yaml:"snapshot"`
	Program  string `yaml:"program_id"`
	Group    string `yaml:"group"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	Listen   string `yaml:"listen"`
	Cache    struct {
		TTL             string `yaml:"ttl"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"cache"`
	OpenAI struct {
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"openai"`
	Sessions struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"sessions"`
	Tokens struct {
		ListURL string `yaml:"list_url"`
	} `yaml:"tokens"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "plain"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.CompletionTimeout <= 0 {
		settings.CompletionTimeout = 60 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = time.Minute
	}
	if settings.RefreshInterval <= 0 {
		settings.RefreshInterval = settings.CacheTTL
	}

	return settings, nil
}

// ValidateChain checks the parameters the chain reader needs. The snapshot
// file is a pure substitute for the RPC endpoint.
func (s Settings) ValidateChain() error {
	if strings.TrimSpace(s.SnapshotPath) != "" {
		return nil
	}
	if strings.TrimSpace(s.RPCURL) == "" {
		return apperr.New(apperr.CodeConfig, "rpc url is not set (config rpc_url, MARGINFI_RPC_URL, or MY_MAINNET_URL)")
	}
	if s.Network != NetworkProduction && s.Network != NetworkDev {
		return apperr.New(apperr.CodeConfig, fmt.Sprintf("unknown network %q (want production or dev)", s.Network))
	}
	return nil
}

// ValidateChat checks the parameters the completion client needs.
func (s Settings) ValidateChat() error {
	if strings.TrimSpace(s.OpenAIAPIKey) == "" {
		return apperr.New(apperr.CodeConfig, "openai api key is not set (config openai.api_key or OPENAI_API_KEY)")
	}
	return nil
}

func defaultSettings() (Settings, error) {
	sessionPath, lockPath, err := defaultSessionPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:        "plain",
		Network:           NetworkProduction,
		Timeout:           30 * time.Second,
		CompletionTimeout: 60 * time.Second,
		Retries:           2,
		CacheTTL:          time.Minute,
		RefreshInterval:   time.Minute,
		ListenAddr:        ":8080",
		OpenAIBaseURL:     "https://api.openai.com/v1",
		OpenAIModel:       "gpt-4o-mini",
		SessionStorePath:  sessionPath,
		SessionLockPath:   lockPath,
		TokenListURL:      "https://raw.githubusercontent.com/solana-labs/token-list/main/src/tokens/solana.tokenlist.json",
		LogLevel:          "info",
		LogFormat:         "json",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "marginfi", "config.yaml"), nil
}

func defaultSessionPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "marginfi")
	return filepath.Join(dir, "sessions.db"), filepath.Join(dir, "sessions.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.Network != "" {
		settings.Network = strings.ToLower(cfg.Network)
	}
	if cfg.Snapshot != "" {
		settings.SnapshotPath = cfg.Snapshot
	}
	if cfg.Program != "" {
		settings.ProgramID = cfg.Program
	}
	if cfg.Group != "" {
		settings.GroupAddress = cfg.Group
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Listen != "" {
		settings.ListenAddr = cfg.Listen
	}
	if cfg.Cache.TTL != "" {
		d, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config cache.ttl: %w", err)
		}
		settings.CacheTTL = d
	}
	if cfg.Cache.RefreshInterval != "" {
		d, err := time.ParseDuration(cfg.Cache.RefreshInterval)
		if err != nil {
			return fmt.Errorf("config cache.refresh_interval: %w", err)
		}
		settings.RefreshInterval = d
	}
	if cfg.OpenAI.APIKey != "" {
		settings.OpenAIAPIKey = cfg.OpenAI.APIKey
	}
	if cfg.OpenAI.APIKeyEnv != "" {
		settings.OpenAIAPIKey = os.Getenv(cfg.OpenAI.APIKeyEnv)
	}
	if cfg.OpenAI.BaseURL != "" {
		settings.OpenAIBaseURL = cfg.OpenAI.BaseURL
	}
	if cfg.OpenAI.Model != "" {
		settings.OpenAIModel = cfg.OpenAI.Model
	}
	if cfg.OpenAI.Timeout != "" {
		d, err := time.ParseDuration(cfg.OpenAI.Timeout)
		if err != nil {
			return fmt.Errorf("config openai.timeout: %w", err)
		}
		settings.CompletionTimeout = d
	}
	if cfg.Sessions.Path != "" {
		settings.SessionStorePath = cfg.Sessions.Path
	}
	if cfg.Sessions.LockPath != "" {
		settings.SessionLockPath = cfg.Sessions.LockPath
	}
	if cfg.Tokens.ListURL != "" {
		settings.TokenListURL = cfg.Tokens.ListURL
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		settings.LogFormat = cfg.Log.Format
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("MARGINFI_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("MARGINFI_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	// Legacy name carried over from the original deployment.
	if v := os.Getenv("MY_MAINNET_URL"); v != "" && settings.RPCURL == "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("MARGINFI_NETWORK"); v != "" {
		settings.Network = strings.ToLower(v)
	}
	if v := os.Getenv("MARGINFI_SNAPSHOT"); v != "" {
		settings.SnapshotPath = v
	}
	if v := os.Getenv("MARGINFI_PROGRAM_ID"); v != "" {
		settings.ProgramID = v
	}
	if v := os.Getenv("MARGINFI_GROUP"); v != "" {
		settings.GroupAddress = v
	}
	if v := os.Getenv("MARGINFI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("MARGINFI_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("MARGINFI_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.CacheTTL = d
		}
	}
	if v := os.Getenv("MARGINFI_LISTEN"); v != "" {
		settings.ListenAddr = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		settings.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		settings.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		settings.OpenAIModel = v
	}
	if v := os.Getenv("MARGINFI_SESSIONS_PATH"); v != "" {
		settings.SessionStorePath = v
	}
	if v := os.Getenv("MARGINFI_SESSIONS_LOCK_PATH"); v != "" {
		settings.SessionLockPath = v
	}
	if v := os.Getenv("MARGINFI_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("MARGINFI_LOG_FORMAT"); v != "" {
		settings.LogFormat = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.Network != "" {
		settings.Network = strings.ToLower(flags.Network)
	}
	if flags.Snapshot != "" {
		settings.SnapshotPath = flags.Snapshot
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.CacheTTL != "" {
		d, err := time.ParseDuration(flags.CacheTTL)
		if err != nil {
			return fmt.Errorf("parse --cache-ttl: %w", err)
		}
		settings.CacheTTL = d
	}
	if flags.ListenAddr != "" {
		settings.ListenAddr = flags.ListenAddr
	}
	if flags.LogLevel != "" {
		settings.LogLevel = flags.LogLevel
	}
	if flags.NoRefresh {
		settings.NoRefresh = true
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
