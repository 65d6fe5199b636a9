package feature

import (
	"testing"
)

func risingCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func TestEnrich_DerivesIndicatorsFromCloseSeries(t *testing.T) {
	data := map[string]interface{}{
		"symbol": "SOL/USDC",
		"closes": risingCloses(40),
	}

	enriched := Enrich(data)
	raw, ok := enriched["derived_features"]
	if !ok {
		t.Fatalf("expected derived_features key")
	}
	derived, ok := raw.(Derived)
	if !ok {
		t.Fatalf("unexpected derived type %T", raw)
	}

	if derived.LastClose != 139 {
		t.Errorf("unexpected last close %f", derived.LastClose)
	}
	if derived.SampleCount != 40 {
		t.Errorf("unexpected sample count %d", derived.SampleCount)
	}
	if derived.SourceSeries != "closes" {
		t.Errorf("unexpected source series %q", derived.SourceSeries)
	}
	// 单调上涨序列里 SMA 低于最新价，RSI 接近超买。
	if derived.SMA20 <= 0 || derived.SMA20 >= derived.LastClose {
		t.Errorf("unexpected sma %f", derived.SMA20)
	}
	if derived.RSI14 < 90 {
		t.Errorf("expected overbought rsi for monotone series, got %f", derived.RSI14)
	}
	if derived.ChangePct <= 0 {
		t.Errorf("expected positive change, got %f", derived.ChangePct)
	}
	if derived.PriceVsSMA <= 0 {
		t.Errorf("expected price above sma, got %f", derived.PriceVsSMA)
	}
}

func TestEnrich_AcceptsJSONNumbers(t *testing.T) {
	series := make([]interface{}, 35)
	for i := range series {
		series[i] = 100.0 + float64(i)
	}
	data := map[string]interface{}{"close_prices": series}

	enriched := Enrich(data)
	if _, ok := enriched["derived_features"]; !ok {
		t.Fatalf("json-decoded series must also be enriched")
	}
}

func TestEnrich_SkipsShortSeries(t *testing.T) {
	data := map[string]interface{}{"closes": risingCloses(10)}

	enriched := Enrich(data)
	if _, ok := enriched["derived_features"]; ok {
		t.Fatalf("series below the minimum must be ignored")
	}
}

func TestEnrich_SkipsWhenNoSeriesPresent(t *testing.T) {
	data := map[string]interface{}{"symbol": "SOL/USDC", "price": 100.0}

	enriched := Enrich(data)
	if _, ok := enriched["derived_features"]; ok {
		t.Fatalf("no series, nothing to derive")
	}
	if len(enriched) != 2 {
		t.Errorf("input must pass through unchanged, got %v", enriched)
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	data := map[string]interface{}{"closes": risingCloses(40)}

	_ = Enrich(data)
	if _, ok := data["derived_features"]; ok {
		t.Fatalf("caller's map must not be mutated")
	}
}

func TestEnrich_IgnoresMixedTypeSeries(t *testing.T) {
	data := map[string]interface{}{
		"closes": []interface{}{100.0, "oops", 102.0},
	}

	enriched := Enrich(data)
	if _, ok := enriched["derived_features"]; ok {
		t.Fatalf("mixed-type series must be ignored")
	}
}
