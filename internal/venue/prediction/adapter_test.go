package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// stubClient 为可编程的 CLOB 客户端桩。
type stubClient struct {
	timeErr error

	order    Order
	orderErr error

	placedSide string
	placeCalls int

	cancelOK bool
}

func (s *stubClient) ServerTime(context.Context) error { return s.timeErr }

func (s *stubClient) PlaceOrder(_ context.Context, _, side string, _, _, _ float64) (Order, error) {
	s.placeCalls++
	s.placedSide = side
	return s.order, s.orderErr
}

func (s *stubClient) GetBalances(context.Context) (map[string]float64, error) {
	return map[string]float64{"USDC": 50}, nil
}

func (s *stubClient) GetMidPrice(context.Context, string) (float64, error) { return 0.42, nil }

func (s *stubClient) GetOrder(context.Context, string) (Order, error) {
	return s.order, s.orderErr
}

func (s *stubClient) CancelOrder(context.Context, string) (bool, error) {
	return s.cancelOK, nil
}

func buyRequest() trade.Request {
	return trade.Request{
		Venue:    trade.VenuePrediction,
		Kind:     trade.KindBuy,
		Symbol:   "TRUMP-YES",
		Amount:   10,
		Price:    0.4,
		Slippage: 0.02,
	}
}

func TestNew_RequiresKeyAndSecret(t *testing.T) {
	_, err := New(trade.Credentials{APIKey: "k"}, nil)
	if !venue.IsKind(err, venue.KindInvalidCredentials) {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
	if _, err := New(trade.Credentials{APIKey: "k", APISecret: "s"}, nil); err != nil {
		t.Fatalf("key+secret should suffice: %v", err)
	}
}

func TestPing_InvalidCredentialsPreserved(t *testing.T) {
	client := &stubClient{timeErr: venue.NewError(venue.KindInvalidCredentials, trade.VenuePrediction, "bad signature")}
	adapter := newWithClient(client, nil)

	err := adapter.Ping(context.Background())
	if !venue.IsKind(err, venue.KindInvalidCredentials) {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
}

func TestPing_RawErrorBecomesConnectivity(t *testing.T) {
	client := &stubClient{timeErr: errors.New("dial tcp: timeout")}
	adapter := newWithClient(client, nil)

	err := adapter.Ping(context.Background())
	if !venue.IsKind(err, venue.KindConnectivity) {
		t.Fatalf("expected connectivity, got %v", err)
	}
}

func TestExecuteTrade_RejectsSwap(t *testing.T) {
	client := &stubClient{}
	adapter := newWithClient(client, nil)

	req := buyRequest()
	req.Kind = trade.KindSwap

	result, err := adapter.ExecuteTrade(context.Background(), req)
	if !venue.IsKind(err, venue.KindRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if result.Status != trade.StatusFailed {
		t.Errorf("expected failed result, got %s", result.Status)
	}
	if client.placeCalls != 0 {
		t.Errorf("swap must not reach the venue")
	}
}

func TestExecuteTrade_MapsOrderStates(t *testing.T) {
	cases := []struct {
		status string
		want   trade.Status
	}{
		{"filled", trade.StatusCompleted},
		{"matched", trade.StatusCompleted},
		{"canceled", trade.StatusCancelled},
		{"rejected", trade.StatusFailed},
		{"live", trade.StatusExecuting},
		{"open", trade.StatusExecuting},
		{"queued", trade.StatusPending},
	}

	for _, tc := range cases {
		client := &stubClient{order: Order{OrderID: "o-1", Status: tc.status, Size: 10, Price: 0.4}}
		adapter := newWithClient(client, nil)

		result, err := adapter.ExecuteTrade(context.Background(), buyRequest())
		if err != nil {
			t.Fatalf("%s: ExecuteTrade failed: %v", tc.status, err)
		}
		if result.Status != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.status, tc.want, result.Status)
		}
		if result.TxRef != "o-1" {
			t.Errorf("%s: expected order id as tx ref", tc.status)
		}
	}
}

func TestExecuteTrade_FilledFallsBackToRequestedSize(t *testing.T) {
	client := &stubClient{order: Order{OrderID: "o-1", Status: "filled", Size: 10, Price: 0.4}}
	adapter := newWithClient(client, nil)

	result, err := adapter.ExecuteTrade(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if result.ExecutedAmount != 10 {
		t.Errorf("expected size fallback, got %f", result.ExecutedAmount)
	}
	if result.ExecutedPrice != 0.4 {
		t.Errorf("expected price fallback, got %f", result.ExecutedPrice)
	}
}

func TestExecuteTrade_SellSideForwarded(t *testing.T) {
	client := &stubClient{order: Order{OrderID: "o-1", Status: "live"}}
	adapter := newWithClient(client, nil)

	req := buyRequest()
	req.Kind = trade.KindSell
	if _, err := adapter.ExecuteTrade(context.Background(), req); err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if client.placedSide != "sell" {
		t.Errorf("expected sell side, got %q", client.placedSide)
	}
}

func TestCancelOrder(t *testing.T) {
	adapter := newWithClient(&stubClient{cancelOK: true}, nil)
	ok, err := adapter.CancelOrder(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if !ok {
		t.Errorf("expected cancellation to succeed")
	}
}

func TestSign_Deterministic(t *testing.T) {
	client := &restClient{secret: "secret", now: func() time.Time { return time.Unix(1700000000, 0) }}

	first := client.sign("1700000000", "POST", "/order", `{"size":10}`)
	second := client.sign("1700000000", "POST", "/order", `{"size":10}`)
	if first != second {
		t.Errorf("signature must be deterministic")
	}
	if first == client.sign("1700000001", "POST", "/order", `{"size":10}`) {
		t.Errorf("signature must depend on the timestamp")
	}
}
