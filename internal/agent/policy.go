package agent

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

// Provider 标识代理使用的大模型提供方。
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider 将字符串解析为 Provider。
func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("不支持的模型提供方: %q", raw)
	}
}

// Policy 为单个决策代理的完整配置。注册后不可变，
// 显式更新不影响在途决策（注册表总是拷贝出入）。
type Policy struct {
	Name            string        `json:"name" mapstructure:"name"`
	Provider        Provider      `json:"provider" mapstructure:"provider"`
	Model           string        `json:"model" mapstructure:"model"`
	SystemPrompt    string        `json:"system_prompt" mapstructure:"system_prompt"`
	MaxPositionSize float64       `json:"max_position_size" mapstructure:"max_position_size"`
	RiskLimit       float64       `json:"risk_limit" mapstructure:"risk_limit"`
	Venues          []trade.Venue `json:"venues" mapstructure:"venues"`
}

// Validate 校验策略字段合法性，聚合全部违规项。
func (p Policy) Validate() error {
	var err error

	if strings.TrimSpace(p.Name) == "" {
		err = multierr.Append(err, errors.New("name 不能为空"))
	}
	if _, perr := ParseProvider(string(p.Provider)); perr != nil {
		err = multierr.Append(err, perr)
	}
	if strings.TrimSpace(p.Model) == "" {
		err = multierr.Append(err, errors.New("model 不能为空"))
	}
	if p.MaxPositionSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("max_position_size 必须为正数，当前为 %f", p.MaxPositionSize))
	}
	if p.RiskLimit <= 0 || p.RiskLimit > 1 {
		err = multierr.Append(err, fmt.Errorf("risk_limit 必须位于 (0,1]，当前为 %f", p.RiskLimit))
	}
	if len(p.Venues) == 0 {
		err = multierr.Append(err, errors.New("venues 不能为空"))
	}
	for _, v := range p.Venues {
		if _, verr := trade.ParseVenue(string(v)); verr != nil {
			err = multierr.Append(err, verr)
		}
	}

	return err
}

// AllowsVenue 判断场所是否在策略允许范围内。
func (p Policy) AllowsVenue(v trade.Venue) bool {
	for _, allowed := range p.Venues {
		if allowed == v {
			return true
		}
	}
	return false
}

// clone 深拷贝策略，隔离注册表内外的可变切片。
func (p Policy) clone() Policy {
	cloned := p
	cloned.Venues = append([]trade.Venue(nil), p.Venues...)
	return cloned
}

// Summary 为列表接口暴露的策略摘要，不含系统提示词。
type Summary struct {
	Name     string        `json:"name"`
	Provider Provider      `json:"provider"`
	Model    string        `json:"model"`
	Venues   []trade.Venue `json:"venues"`
}

// Summarize 生成策略摘要。
func (p Policy) Summarize() Summary {
	return Summary{
		Name:     p.Name,
		Provider: p.Provider,
		Model:    p.Model,
		Venues:   append([]trade.Venue(nil), p.Venues...),
	}
}
