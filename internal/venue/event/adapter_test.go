package event

import (
	"context"
	"testing"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

// stubClient 为可编程的事件交易所客户端桩。
type stubClient struct {
	loginErr error

	order    Order
	orderErr error

	placedCount int
	placedCents int
	placedSide  string
	placeCalls  int

	balanceUSD float64
}

func (s *stubClient) Login(context.Context) error { return s.loginErr }

func (s *stubClient) PlaceOrder(_ context.Context, _, action string, count, priceCents int) (Order, error) {
	s.placeCalls++
	s.placedSide = action
	s.placedCount = count
	s.placedCents = priceCents
	return s.order, s.orderErr
}

func (s *stubClient) GetBalanceUSD(context.Context) (float64, error) { return s.balanceUSD, nil }

func (s *stubClient) GetLastPrice(context.Context, string) (float64, error) { return 0.55, nil }

func (s *stubClient) GetOrder(context.Context, string) (Order, error) { return s.order, s.orderErr }

func (s *stubClient) CancelOrder(context.Context, string) (bool, error) { return true, nil }

func contractRequest() trade.Request {
	return trade.Request{
		Venue:    trade.VenueEvent,
		Kind:     trade.KindBuy,
		Symbol:   "RAIN-NYC-25SEP01",
		Amount:   10,
		Price:    0.55,
		Slippage: 0.05,
	}
}

func TestNew_RequiresKeyPair(t *testing.T) {
	_, err := New(trade.Credentials{APIKey: "k"}, nil)
	if !venue.IsKind(err, venue.KindInvalidCredentials) {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}
	if _, err := New(trade.Credentials{APIKey: "k", PrivateKey: "pem"}, nil); err != nil {
		t.Fatalf("key pair should suffice: %v", err)
	}
}

func TestExecuteTrade_ConvertsToContractsAndCents(t *testing.T) {
	client := &stubClient{order: Order{OrderID: "o-1", Status: "executed", Count: 10, PriceCents: 55}}
	adapter := newWithClient(client, nil)

	req := contractRequest()
	req.Amount = 10.9 // 非整数张数向下截断

	result, err := adapter.ExecuteTrade(context.Background(), req)
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if client.placedCount != 10 {
		t.Errorf("expected 10 contracts, got %d", client.placedCount)
	}
	if client.placedCents != 55 {
		t.Errorf("expected 55 cents, got %d", client.placedCents)
	}
	if client.placedSide != "BUY" {
		t.Errorf("expected BUY action, got %q", client.placedSide)
	}
	if result.Status != trade.StatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if result.ExecutedPrice != 0.55 {
		t.Errorf("expected dollar price back, got %f", result.ExecutedPrice)
	}
}

func TestExecuteTrade_RejectsFractionalContract(t *testing.T) {
	client := &stubClient{}
	adapter := newWithClient(client, nil)

	req := contractRequest()
	req.Amount = 0.4

	_, err := adapter.ExecuteTrade(context.Background(), req)
	if !venue.IsKind(err, venue.KindRejected) {
		t.Fatalf("expected rejected for <1 contract, got %v", err)
	}
	if client.placeCalls != 0 {
		t.Errorf("sub-contract order must not reach the venue")
	}
}

func TestExecuteTrade_RejectsSwap(t *testing.T) {
	adapter := newWithClient(&stubClient{}, nil)

	req := contractRequest()
	req.Kind = trade.KindSwap

	_, err := adapter.ExecuteTrade(context.Background(), req)
	if !venue.IsKind(err, venue.KindRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestExecuteTrade_MapsOrderStates(t *testing.T) {
	cases := []struct {
		status string
		want   trade.Status
	}{
		{"executed", trade.StatusCompleted},
		{"resting", trade.StatusExecuting},
		{"canceled", trade.StatusCancelled},
		{"rejected", trade.StatusFailed},
		{"queued", trade.StatusPending},
	}

	for _, tc := range cases {
		client := &stubClient{order: Order{OrderID: "o-1", Status: tc.status}}
		adapter := newWithClient(client, nil)

		result, err := adapter.ExecuteTrade(context.Background(), contractRequest())
		if err != nil {
			t.Fatalf("%s: ExecuteTrade failed: %v", tc.status, err)
		}
		if result.Status != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.status, tc.want, result.Status)
		}
	}
}

func TestGetBalance_USDOnly(t *testing.T) {
	adapter := newWithClient(&stubClient{balanceUSD: 120.5}, nil)

	balance, err := adapter.GetBalance(context.Background(), "")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance["USD"] != 120.5 {
		t.Errorf("expected USD balance, got %v", balance)
	}

	other, err := adapter.GetBalance(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("non-USD symbol must report empty balance, got %v", other)
	}
}

func TestToCents(t *testing.T) {
	cases := map[float64]int{
		0.55:  55,
		0.554: 55,
		0.555: 56,
		1:     100,
		0:     0,
	}
	for price, want := range cases {
		if got := toCents(price); got != want {
			t.Errorf("toCents(%f) = %d, want %d", price, got, want)
		}
	}
}
