package app

import (
	"errors"
	"testing"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/config"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
)

func TestPolicyFromConfig(t *testing.T) {
	policy, err := policyFromConfig(config.AgentConfig{
		Name:            "sol-momentum",
		Provider:        "OpenAI",
		Model:           "gpt-4.1",
		SystemPrompt:    "只做趋势交易",
		MaxPositionSize: 1000,
		RiskLimit:       0.1,
		Venues:          []string{"dex", "Event-Contract"},
	})
	if err != nil {
		t.Fatalf("policyFromConfig failed: %v", err)
	}

	if policy.Provider != agent.ProviderOpenAI {
		t.Errorf("unexpected provider %s", policy.Provider)
	}
	if len(policy.Venues) != 2 || policy.Venues[1] != trade.VenueEvent {
		t.Errorf("unexpected venues %v", policy.Venues)
	}
	if err := policy.Validate(); err != nil {
		t.Errorf("expected valid policy, got %v", err)
	}
}

func TestPolicyFromConfig_BadProvider(t *testing.T) {
	_, err := policyFromConfig(config.AgentConfig{
		Name:     "x",
		Provider: "gemini",
		Venues:   []string{"dex"},
	})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestPolicyFromConfig_BadVenue(t *testing.T) {
	_, err := policyFromConfig(config.AgentConfig{
		Name:     "x",
		Provider: "openai",
		Venues:   []string{"nasdaq"},
	})
	if err == nil {
		t.Fatal("expected error for unsupported venue")
	}
}

func TestConfigCredentials_Lookup(t *testing.T) {
	creds := configCredentials{venues: config.VenuesConfig{
		DEX: config.VenueConfig{
			Enabled:     true,
			Credentials: trade.Credentials{Wallet: "wallet-1"},
		},
		Prediction: config.VenueConfig{
			Enabled:     false,
			Credentials: trade.Credentials{APIKey: "k"},
		},
	}}

	got, err := creds.Lookup(trade.VenueDEX)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Wallet != "wallet-1" {
		t.Errorf("unexpected credentials %+v", got)
	}

	// 未启用的场所视同未配置。
	if _, err := creds.Lookup(trade.VenuePrediction); !errors.Is(err, venue.ErrCredentialsNotFound) {
		t.Errorf("expected ErrCredentialsNotFound, got %v", err)
	}
	if _, err := creds.Lookup(trade.VenueEvent); !errors.Is(err, venue.ErrCredentialsNotFound) {
		t.Errorf("expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestDefaultFactory_UnknownVenue(t *testing.T) {
	_, err := defaultFactory("nasdaq", trade.Credentials{}, nil)
	if !venue.IsKind(err, venue.KindUnknownVenue) {
		t.Fatalf("expected unknown_venue error, got %v", err)
	}
}

func TestDefaultFactory_BuildsAdapters(t *testing.T) {
	cases := map[trade.Venue]trade.Credentials{
		trade.VenueDEX:        {Wallet: "w"},
		trade.VenuePrediction: {APIKey: "k", APISecret: "s"},
		trade.VenueEvent:      {APIKey: "k", PrivateKey: "p"},
	}
	for v, creds := range cases {
		adapter, err := defaultFactory(v, creds, nil)
		if err != nil {
			t.Errorf("factory failed for %s: %v", v, err)
			continue
		}
		if adapter.Venue() != v {
			t.Errorf("adapter reports %s, want %s", adapter.Venue(), v)
		}
		_ = adapter.Close()
	}
}
