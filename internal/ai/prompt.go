package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

const systemGuidelines = `

交易守则：
- 始终优先考虑风险管理与仓位控制；
- 决策前先分析市场状况；
- 计算时计入滑点与手续费；
- 永不超过最大仓位与风险上限；
- 每个交易决策必须给出清晰理由。

可用场所: %s`

const decisionTemplate = `
你是一个跨场所交易代理。根据提供的市场数据与当前组合，在遵循风险约束的前提下决定是观望还是提交一笔交易。

当前市场数据：
{{ .MarketJSON }}

当前组合：
{{ .PortfolioJSON }}
{{ if .Context }}
补充上下文：
{{ .Context }}
{{ end }}
约束条件：
- 允许的场所: {{ .Venues }}
- 最大仓位（名义金额）: {{ printf "%.2f" .MaxPositionSize }}
- 单笔风险上限（组合占比）: {{ printf "%.4f" .RiskLimit }}

请严格输出唯一的 JSON 对象，格式如下：
{
  "action": "hold|trade",            // hold: 观望, trade: 提交交易
  "venue": "...",                   // 目标场所，必须在允许列表内
  "kind": "buy|sell|swap",           // 交易类型
  "symbol": "...",                  // 交易符号或市场标识
  "amount": 0.0,                      // 交易数量，必须为正数
  "price": 0.0,                       // （可选）限价，市价单填 0
  "slippage": 0.0-1.0,                // 可接受滑点
  "reasoning": "..."                // 支撑结论的关键理由
}

注意事项：
- 若决定观望，action 填 hold，其余交易字段可省略；
- venue 只能取允许列表中的值；
- 所有数值字段必须为数字而非字符串。
`

const analysisTemplate = `
你是一个跨场所交易分析师。请基于以下信息给出市场分析与洞察，但不要给出交易指令。

当前市场数据：
{{ .MarketJSON }}
{{ if .Context }}
补充上下文：
{{ .Context }}
{{ end }}
请从趋势、动量、流动性与风险四个角度展开，结论需落在可验证的观察上。
`

var (
	decisionTmpl = template.Must(template.New("decision").Parse(decisionTemplate))
	analysisTmpl = template.Must(template.New("analysis").Parse(analysisTemplate))
)

// PromptInput 为提示词渲染所需的全部上下文。
type PromptInput struct {
	MarketData      map[string]interface{}
	Portfolio       trade.Portfolio
	Context         string
	Venues          []trade.Venue
	MaxPositionSize float64
	RiskLimit       float64
}

type promptContext struct {
	MarketJSON      string
	PortfolioJSON   string
	Context         string
	Venues          string
	MaxPositionSize float64
	RiskLimit       float64
}

// BuildSystemPrompt 在代理配置的系统提示词后追加交易守则
// 与允许场所列表。
func BuildSystemPrompt(base string, venues []trade.Venue) string {
	names := make([]string, 0, len(venues))
	for _, v := range venues {
		names = append(names, string(v))
	}
	return base + fmt.Sprintf(systemGuidelines, strings.Join(names, ", "))
}

// BuildDecisionPrompt 渲染交易决策提示词。
func BuildDecisionPrompt(input PromptInput) (string, error) {
	return render(decisionTmpl, input)
}

// BuildAnalysisPrompt 渲染纯分析提示词，不包含交易指令格式。
func BuildAnalysisPrompt(input PromptInput) (string, error) {
	return render(analysisTmpl, input)
}

func render(tmpl *template.Template, input PromptInput) (string, error) {
	marketJSON, err := json.MarshalIndent(input.MarketData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化市场数据失败: %w", err)
	}
	portfolioJSON, err := json.MarshalIndent(input.Portfolio, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化组合失败: %w", err)
	}

	names := make([]string, 0, len(input.Venues))
	for _, v := range input.Venues {
		names = append(names, string(v))
	}

	ctx := promptContext{
		MarketJSON:      string(marketJSON),
		PortfolioJSON:   string(portfolioJSON),
		Context:         strings.TrimSpace(input.Context),
		Venues:          strings.Join(names, ", "),
		MaxPositionSize: input.MaxPositionSize,
		RiskLimit:       input.RiskLimit,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
