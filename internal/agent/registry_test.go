package agent

import (
	"testing"

	"github.com/SyrupLabs-code/Syrup/internal/trade"
)

func validPolicy(name string) Policy {
	return Policy{
		Name:            name,
		Provider:        ProviderOpenAI,
		Model:           "gpt-4.1",
		SystemPrompt:    "你是稳健的交易员。",
		MaxPositionSize: 500,
		RiskLimit:       0.05,
		Venues:          []trade.Venue{trade.VenueDEX},
	}
}

func TestCreate_And_Get(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Create(validPolicy("alpha")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	policy, ok := registry.Get("alpha")
	if !ok {
		t.Fatalf("expected to find alpha")
	}
	if policy.Model != "gpt-4.1" {
		t.Errorf("unexpected model %q", policy.Model)
	}
}

func TestCreate_RejectsDuplicateName(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Create(validPolicy("alpha")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := registry.Create(validPolicy("alpha")); err == nil {
		t.Fatalf("duplicate name must be rejected")
	}
}

func TestCreate_RejectsInvalidPolicy(t *testing.T) {
	registry := NewRegistry(nil)

	invalid := validPolicy("bad")
	invalid.RiskLimit = 2
	invalid.Venues = nil
	if err := registry.Create(invalid); err == nil {
		t.Fatalf("invalid policy must be rejected")
	}
	if len(registry.List()) != 0 {
		t.Errorf("rejected policy must not be stored")
	}
}

func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Create(validPolicy("alpha")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	policy, _ := registry.Get("alpha")
	policy.Venues[0] = trade.VenueEvent

	again, _ := registry.Get("alpha")
	if again.Venues[0] != trade.VenueDEX {
		t.Errorf("mutating a returned policy must not affect the registry")
	}
}

func TestUpdate_ReplacesExisting(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Create(validPolicy("alpha")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated := validPolicy("alpha")
	updated.Model = "gpt-5"
	if err := registry.Update(updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	policy, _ := registry.Get("alpha")
	if policy.Model != "gpt-5" {
		t.Errorf("expected updated model, got %q", policy.Model)
	}
}

func TestUpdate_UnknownAgent(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Update(validPolicy("ghost")); err == nil {
		t.Fatalf("updating a missing agent must fail")
	}
}

func TestList_SortedSummariesWithoutPrompt(t *testing.T) {
	registry := NewRegistry(nil)
	for _, name := range []string{"bravo", "alpha"} {
		if err := registry.Create(validPolicy(name)); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}

	summaries := registry.List()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Name != "alpha" || summaries[1].Name != "bravo" {
		t.Errorf("expected sorted order, got %v", summaries)
	}
}

func TestDelete(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Create(validPolicy("alpha")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := registry.Delete("alpha"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := registry.Get("alpha"); ok {
		t.Errorf("deleted agent must be gone")
	}
	if err := registry.Delete("alpha"); err == nil {
		t.Errorf("deleting a missing agent must fail")
	}
}
