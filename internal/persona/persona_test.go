package persona

import "testing"

func TestFixedCatalogHasCoreIntents(t *testing.T) {
	for _, key := range []string{"sales", "support", "trial-meeting"} {
		p, ok := FixedCatalog[key]
		if !ok {
			t.Fatalf("expected fixed catalog entry for %q", key)
		}
		if p.SystemPrompt == "" {
			t.Fatalf("expected non-empty system prompt for %q", key)
		}
	}
}

func TestCatalogActiveDefaultsToFixed(t *testing.T) {
	c := NewCatalog()
	active := c.Active()
	if len(active) != len(FixedCatalog) {
		t.Fatalf("expected active catalog to be fixed catalog by default")
	}
}

func TestCatalogActivePrefersCustomWhenLoaded(t *testing.T) {
	c := NewCatalog()
	custom := map[string]Persona{
		"billing": {Key: Key("billing"), SystemPrompt: "custom billing persona"},
	}
	c.LoadCustomCatalog(custom)

	active := c.Active()
	if _, ok := active["billing"]; !ok {
		t.Fatal("expected custom catalog to be active after load")
	}
	if _, ok := active["sales"]; ok {
		t.Fatal("expected fixed catalog entries to not leak into active custom catalog")
	}
}

func TestCatalogGetFallsBackToFixedWhenNotInCustom(t *testing.T) {
	c := NewCatalog()
	c.LoadCustomCatalog(map[string]Persona{
		"billing": {Key: Key("billing")},
	})

	if _, ok := c.Get("billing"); !ok {
		t.Fatal("expected billing persona from custom catalog")
	}
	if _, ok := c.Get("sales"); !ok {
		t.Fatal("expected fixed catalog entries to remain reachable by key even with a custom catalog loaded")
	}
	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected lookup miss for unknown key")
	}
}
