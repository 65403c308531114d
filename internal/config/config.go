package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StorageConfig 持久化配置
// StorageConfig configures persistence
type StorageConfig struct {
	// DBPath SQLite 数据库路径 / SQLite database path
	DBPath string `json:"db_path"`
}

// TrimConfig 工作集裁剪配置
// TrimConfig configures working-set trimming
type TrimConfig struct {
	// Ceiling 工作集上限，超过则触发自动 checkpoint
	// Ceiling is the working-set size that triggers an automatic checkpoint
	Ceiling int `json:"ceiling"`
	// TargetRatio 裁剪后目标为 Ceiling*TargetRatio，避免抖动
	// TargetRatio targets Ceiling*TargetRatio after a trim to avoid thrashing
	TargetRatio float64 `json:"target_ratio"`
	// MinIntervalMS 自动 checkpoint 的最小间隔；手动请求不受限
	// MinIntervalMS rate-limits automatic checkpoints; manual ones are exempt
	MinIntervalMS int `json:"min_interval_ms"`
}

// ResumptionConfig 恢复上下文配置
// ResumptionConfig configures resumption synthesis
type ResumptionConfig struct {
	// TargetTokens 默认 token 预算 / Default token budget
	TargetTokens int `json:"target_tokens"`
}

// SummarizerConfig 摘要器配置
// SummarizerConfig configures the LLM summarizer
type SummarizerConfig struct {
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	TimeoutMS int    `json:"timeout_ms"`
}

// HubConfig 订阅分发配置
// HubConfig configures subscription fan-out
type HubConfig struct {
	// BufferSize 每观察者通道缓冲 / Per-observer channel buffer
	BufferSize int `json:"buffer_size"`
}

// LogConfig 日志配置
// LogConfig configures logging
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Config 全量配置
// Config is the full configuration
type Config struct {
	Storage    StorageConfig    `json:"storage"`
	Trim       TrimConfig       `json:"trim"`
	Resumption ResumptionConfig `json:"resumption"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Hub        HubConfig        `json:"hub"`
	Log        LogConfig        `json:"log"`
}

type fileStorageConfig struct {
	DBPath *string `json:"db_path"`
}

type fileTrimConfig struct {
	Ceiling       *int     `json:"ceiling"`
	TargetRatio   *float64 `json:"target_ratio"`
	MinIntervalMS *int     `json:"min_interval_ms"`
}

type fileResumptionConfig struct {
	TargetTokens *int `json:"target_tokens"`
}

type fileSummarizerConfig struct {
	BaseURL   *string `json:"base_url"`
	Model     *string `json:"model"`
	APIKey    *string `json:"api_key"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type fileHubConfig struct {
	BufferSize *int `json:"buffer_size"`
}

type fileLogConfig struct {
	Level  *string `json:"level"`
	Pretty *bool   `json:"pretty"`
}

type fileConfig struct {
	Storage    *fileStorageConfig    `json:"storage"`
	Trim       *fileTrimConfig       `json:"trim"`
	Resumption *fileResumptionConfig `json:"resumption"`
	Summarizer *fileSummarizerConfig `json:"summarizer"`
	Hub        *fileHubConfig        `json:"hub"`
	Log        *fileLogConfig        `json:"log"`
}

// Default 返回默认配置
// Default returns the default configuration
func Default() Config {
	return Config{
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
		},
		Trim: TrimConfig{
			Ceiling:       DefaultTrimCeiling,
			TargetRatio:   DefaultTrimTargetRatio,
			MinIntervalMS: DefaultTrimMinIntervalMS,
		},
		Resumption: ResumptionConfig{
			TargetTokens: DefaultResumptionTokens,
		},
		Summarizer: SummarizerConfig{
			TimeoutMS: DefaultSummarizerTimeoutMS,
		},
		Hub: HubConfig{
			BufferSize: DefaultHubBufferSize,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 读取配置文件并合并默认值；path 为空时探测默认位置
// Load reads the config file over defaults; an empty path probes the
// default locations
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath()
	}
	if err := mergeFromFile(&cfg, path); err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Trim.Ceiling < 2 {
		return fmt.Errorf("trim ceiling %d is too small", c.Trim.Ceiling)
	}
	if c.Trim.TargetRatio <= 0 || c.Trim.TargetRatio >= 1 {
		return fmt.Errorf("trim target ratio %v must be in (0, 1)", c.Trim.TargetRatio)
	}
	if c.Resumption.TargetTokens <= 0 {
		return fmt.Errorf("resumption target tokens %d must be positive", c.Resumption.TargetTokens)
	}
	return nil
}

func defaultConfigPath() string {
	candidates := []string{
		".journal/config.json",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".journal", "config.json"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".journal", DefaultDBFileName)
	}
	return filepath.Join(home, ".journal", DefaultDBFileName)
}

func mergeFromFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	applyFileConfig(cfg, fc)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Storage != nil {
		if fc.Storage.DBPath != nil {
			cfg.Storage.DBPath = *fc.Storage.DBPath
		}
	}
	if fc.Trim != nil {
		if fc.Trim.Ceiling != nil {
			cfg.Trim.Ceiling = *fc.Trim.Ceiling
		}
		if fc.Trim.TargetRatio != nil {
			cfg.Trim.TargetRatio = *fc.Trim.TargetRatio
		}
		if fc.Trim.MinIntervalMS != nil {
			cfg.Trim.MinIntervalMS = *fc.Trim.MinIntervalMS
		}
	}
	if fc.Resumption != nil {
		if fc.Resumption.TargetTokens != nil {
			cfg.Resumption.TargetTokens = *fc.Resumption.TargetTokens
		}
	}
	if fc.Summarizer != nil {
		if fc.Summarizer.BaseURL != nil {
			cfg.Summarizer.BaseURL = *fc.Summarizer.BaseURL
		}
		if fc.Summarizer.Model != nil {
			cfg.Summarizer.Model = *fc.Summarizer.Model
		}
		if fc.Summarizer.APIKey != nil {
			cfg.Summarizer.APIKey = *fc.Summarizer.APIKey
		}
		if fc.Summarizer.TimeoutMS != nil {
			cfg.Summarizer.TimeoutMS = *fc.Summarizer.TimeoutMS
		}
	}
	if fc.Hub != nil {
		if fc.Hub.BufferSize != nil {
			cfg.Hub.BufferSize = *fc.Hub.BufferSize
		}
	}
	if fc.Log != nil {
		if fc.Log.Level != nil {
			cfg.Log.Level = *fc.Log.Level
		}
		if fc.Log.Pretty != nil {
			cfg.Log.Pretty = *fc.Log.Pretty
		}
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("JOURNAL_DB_PATH")); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("JOURNAL_API_KEY")); v != "" {
		cfg.Summarizer.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("JOURNAL_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
}
