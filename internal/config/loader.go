package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const envPrefix = "ANIQUIZ"

var (
	appConfig  *Config
	loadedFile string
	configMu   sync.RWMutex
)

// Load builds the effective configuration: embedded defaults, then the user
// config file (explicit path or $XDG_CONFIG_HOME/aniquiz/config.yaml), then
// ANIQUIZ_* environment variables. Safe to call more than once.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(defaultsYAML)); err != nil {
		return nil, fmt.Errorf("load embedded defaults: %w", err)
	}

	fileUsed := ""
	if cfgFile = strings.TrimSpace(cfgFile); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", cfgFile, err)
		}
		fileUsed = cfgFile
	} else if userFile := userConfigPath(); userFile != "" {
		v.SetConfigFile(userFile)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return nil, fmt.Errorf("load config file %s: %w", userFile, err)
			}
		} else {
			fileUsed = userFile
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decode); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDerivedDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = cfg
	loadedFile = fileUsed
	configMu.Unlock()

	return cfg, nil
}

// FileUsed returns the path of the config file merged by the last Load, or
// empty when only defaults and environment variables were used.
func FileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return loadedFile
}

// Get returns the last loaded configuration, loading defaults when nothing
// has been loaded yet.
func Get() (*Config, error) {
	configMu.RLock()
	cfg := appConfig
	configMu.RUnlock()

	if cfg != nil {
		return cfg, nil
	}
	return Load("")
}

func applyDerivedDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Store.Path) == "" && strings.TrimSpace(cfg.Store.URL) == "" {
		cfg.Store.Path = defaultStorePath()
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.AniList.MaxPerMinute <= 0 {
		return fmt.Errorf("anilist.max_per_minute must be positive, got %d", cfg.AniList.MaxPerMinute)
	}
	if cfg.Quiz.MaxAttempts <= 0 {
		return fmt.Errorf("quiz.max_attempts must be positive, got %d", cfg.Quiz.MaxAttempts)
	}
	if cfg.Quiz.YearFrom > cfg.Quiz.YearTo {
		return fmt.Errorf("quiz.year_from %d is after quiz.year_to %d", cfg.Quiz.YearFrom, cfg.Quiz.YearTo)
	}

	driver := strings.TrimSpace(cfg.Store.Driver)
	if driver != "" && driver != "libsql" && driver != "redis" {
		return fmt.Errorf("unsupported store driver: %s", driver)
	}
	if driver == "redis" && strings.TrimSpace(cfg.Store.RedisAddr) == "" {
		return fmt.Errorf("store.redis_addr is required for the redis driver")
	}

	return nil
}

func userConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "aniquiz", "config.yaml")
}

func defaultStorePath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "aniquiz.db"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "aniquiz", "aniquiz.db")
}
