package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Router    RouterConfig    `mapstructure:"router"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Agents    []AgentConfig   `mapstructure:"agents"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// VenueConfig 描述单个场所的凭据与启用状态。
// 凭据只在注册适配器时被读取一次。
type VenueConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Credentials trade.Credentials `mapstructure:"credentials"`
}

// VenuesConfig 汇总各场所配置，承担配置态凭据存储。
type VenuesConfig struct {
	DEX        VenueConfig `mapstructure:"dex"`
	Prediction VenueConfig `mapstructure:"prediction_market"`
	Event      VenueConfig `mapstructure:"event_contract"`
}

// Entry 返回指定场所的配置。
func (v VenuesConfig) Entry(venueID trade.Venue) (VenueConfig, bool) {
	switch venueID {
	case trade.VenueDEX:
		return v.DEX, true
	case trade.VenuePrediction:
		return v.Prediction, true
	case trade.VenueEvent:
		return v.Event, true
	default:
		return VenueConfig{}, false
	}
}

// OpenAIConfig 描述 OpenAI 兼容提供方的调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnthropicConfig 描述 Anthropic 提供方的调用参数。
type AnthropicConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// RouterConfig 控制路由层的重试、幂等账本与轮询。
type RouterConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	MinBackoff   time.Duration `mapstructure:"min_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	LedgerWindow time.Duration `mapstructure:"ledger_window"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollWindow   time.Duration `mapstructure:"poll_window"`
}

// ServerConfig 控制对外 HTTP 服务。
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 管理日志行为。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// AgentConfig 描述启动时预注册的代理。
type AgentConfig struct {
	Name            string   `mapstructure:"name"`
	Provider        string   `mapstructure:"provider"`
	Model           string   `mapstructure:"model"`
	SystemPrompt    string   `mapstructure:"system_prompt"`
	MaxPositionSize float64  `mapstructure:"max_position_size"`
	RiskLimit       float64  `mapstructure:"risk_limit"`
	Venues          []string `mapstructure:"venues"`
}

// Validate 校验配置一致性，聚合全部违规项。
func (c *Config) Validate() error {
	var err error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port 非法: %d", c.Server.Port))
	}
	if c.Router.MaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("router.max_attempts 必须不小于 1，当前为 %d", c.Router.MaxAttempts))
	}
	if c.Router.MinBackoff > c.Router.MaxBackoff {
		err = multierr.Append(err, errors.New("router.min_backoff 不能大于 router.max_backoff"))
	}
	if !c.Database.InMemory && strings.TrimSpace(c.Database.Path) == "" {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if strings.TrimSpace(c.Logging.Encoding) == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}

	for i, a := range c.Agents {
		if strings.TrimSpace(a.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("agents[%d].name 不能为空", i))
		}
		if len(a.Venues) == 0 {
			err = multierr.Append(err, fmt.Errorf("agents[%d].venues 不能为空", i))
		}
	}

	return err
}
