package feature

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

const (
	// minSeriesLen 为派生指标所需的最小收盘价样本数。
	minSeriesLen = 30

	smaPeriod = 20
	emaPeriod = 12
	rsiPeriod = 14
)

// seriesKeys 为市场数据中可能携带收盘价序列的键。
var seriesKeys = []string{"closes", "close_prices", "prices"}

// Derived 为从收盘价序列派生的指标特征。
type Derived struct {
	LastClose    float64 `json:"last_close"`
	SMA20        float64 `json:"sma_20"`
	EMA12        float64 `json:"ema_12"`
	RSI14        float64 `json:"rsi_14"`
	PriceVsSMA   float64 `json:"price_vs_sma_pct"`
	ChangePct    float64 `json:"change_pct"`
	SampleCount  int     `json:"sample_count"`
	SourceSeries string  `json:"source_series"`
}

// Enrich 检查市场数据是否携带收盘价序列，携带时派生指标特征
// 并以 derived_features 键合并进副本返回；否则原样返回。
// 代理看到的是结构化指标，而不是裸数组。
func Enrich(marketData map[string]interface{}) map[string]interface{} {
	key, closes := findSeries(marketData)
	if len(closes) < minSeriesLen {
		return marketData
	}

	sma := talib.Sma(closes, smaPeriod)
	ema := talib.Ema(closes, emaPeriod)
	rsi := talib.Rsi(closes, rsiPeriod)

	last := closes[len(closes)-1]
	derived := Derived{
		LastClose:    last,
		SMA20:        lastValid(sma),
		EMA12:        lastValid(ema),
		RSI14:        lastValid(rsi),
		ChangePct:    changePct(closes),
		SampleCount:  len(closes),
		SourceSeries: key,
	}
	if derived.SMA20 > 0 {
		derived.PriceVsSMA = (last - derived.SMA20) / derived.SMA20 * 100
	}

	enriched := make(map[string]interface{}, len(marketData)+1)
	for k, v := range marketData {
		enriched[k] = v
	}
	enriched["derived_features"] = derived
	return enriched
}

func findSeries(marketData map[string]interface{}) (string, []float64) {
	for _, key := range seriesKeys {
		raw, ok := marketData[key]
		if !ok {
			continue
		}
		closes := toFloats(raw)
		if len(closes) > 0 {
			return key, closes
		}
	}
	return "", nil
}

// toFloats 兼容 []float64 与 JSON 反序列化产生的 []interface{}。
func toFloats(raw interface{}) []float64 {
	switch values := raw.(type) {
	case []float64:
		return values
	case []interface{}:
		out := make([]float64, 0, len(values))
		for _, v := range values {
			f, ok := v.(float64)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	default:
		return nil
	}
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && series[i] != 0 {
			return series[i]
		}
	}
	return 0
}

func changePct(closes []float64) float64 {
	first := closes[0]
	if first == 0 {
		return 0
	}
	return (closes[len(closes)-1] - first) / first * 100
}
