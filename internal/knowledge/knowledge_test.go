package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func buildTestCorpus(t *testing.T) string {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "support", "faq.json"), []FAQEntry{
		{Question: "What is your refund policy?", Answer: "30 days", Keywords: []string{"refund", "return"}},
		{Question: "How do I reset my password?", Answer: "Use the reset link", Keywords: []string{"password"}},
	})
	writeJSON(t, filepath.Join(root, "config", "routing-rules.json"), []RoutingRule{
		{Intent: "sales", Keywords: []string{"buy", "price", "purchase"}},
		{Intent: "support", Keywords: []string{"help", "broken", "refund"}},
	})
	writeJSON(t, filepath.Join(root, "sales", "products.json"), []Product{
		{ID: "p1", Name: "Widget Pro"},
	})
	writeJSON(t, filepath.Join(root, "company", "about.json"), map[string]interface{}{
		"name": "Acme", "tone": "friendly and concise",
	})
	// A malformed file should be skipped without failing the whole load.
	badPath := filepath.Join(root, "sales", "broken.json")
	os.MkdirAll(filepath.Dir(badPath), 0755)
	os.WriteFile(badPath, []byte("{not valid json"), 0644)
	return root
}

func TestIndexLoadSkipsBadFiles(t *testing.T) {
	idx := NewIndex(buildTestCorpus(t))
	if err := idx.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(idx.documents) == 0 {
		t.Fatal("expected documents to load despite one bad file")
	}
}

func TestSearchFAQScoring(t *testing.T) {
	idx := NewIndex(buildTestCorpus(t))
	idx.Load()

	matches := idx.SearchFAQ("I want a refund please")
	if len(matches) == 0 {
		t.Fatal("expected at least one FAQ match")
	}
	if matches[0].Entry.Question != "What is your refund policy?" {
		t.Errorf("expected refund FAQ to rank first, got %q", matches[0].Entry.Question)
	}
}

func TestSearchByKeywords(t *testing.T) {
	idx := NewIndex(buildTestCorpus(t))
	idx.Load()

	hits := idx.SearchByKeywords([]string{"friendly"}, nil)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestGetProduct(t *testing.T) {
	idx := NewIndex(buildTestCorpus(t))
	idx.Load()

	p, ok := idx.GetProduct("p1")
	if !ok || p.Name != "Widget Pro" {
		t.Fatalf("expected product p1 to resolve, got %+v ok=%v", p, ok)
	}
	if _, ok := idx.GetProduct("missing"); ok {
		t.Fatal("expected missing product to not be found")
	}
}

func TestRoutingRulesLoaded(t *testing.T) {
	idx := NewIndex(buildTestCorpus(t))
	idx.Load()
	rules := idx.RoutingRules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 routing rules, got %d", len(rules))
	}
}

func TestFindRelevantDataAlwaysIncludesCompany(t *testing.T) {
	idx := NewIndex(buildTestCorpus(t))
	idx.Load()

	data := idx.FindRelevantData("hello", "sales")
	if _, ok := data["company/about"]; !ok {
		t.Fatal("expected company info to always be included")
	}
}
