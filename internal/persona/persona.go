// Package persona implements the tagged-variant Persona model from the
// core spec's Design Notes: per-variant configuration (temperature,
// max-tokens, rule detectors) dispatched by a single Run function, no
// class hierarchy. The fixed catalog (sales, support, trial-meeting)
// ships by default; a persistence-backed custom catalog
// may override the intent->persona map per the Supplemented Features in
// SPEC_FULL.md.
package persona

// Key identifies a persona variant.
type Key string

const (
	KeySales        Key = "sales"
	KeySupport      Key = "support"
	KeyTrialMeeting Key = "trial-meeting"
	KeyHandoff      Key = "handoff"
	KeyRouter       Key = "router"
)

// Persona is configuration, not behavior — dispatch happens in
// internal/orchestrator.Run.
type Persona struct {
	Key             Key
	SystemPrompt    string
	Temperature     float64
	MaxTokens       int
	RoutingKeywords []string
	Topics          []string
}

// FixedCatalog is the default, permanent intent->persona map (spec Open
// Question #1 resolved: kept alongside any custom catalog, not deleted).
var FixedCatalog = map[string]Persona{
	"sales": {
		Key:             KeySales,
		SystemPrompt:    "You are a sales assistant for {companyName}. Be persuasive but honest, guide the customer toward a purchase decision.",
		Temperature:     0.7,
		MaxTokens:       1024,
		RoutingKeywords: []string{"buy", "price", "purchase", "cost", "discount", "upgrade"},
		Topics:          []string{"sales", "pricing", "products"},
	},
	"support": {
		Key:             KeySupport,
		SystemPrompt:    "You are a customer support assistant for {companyName}. Be empathetic, precise, and solve the customer's problem.",
		Temperature:     0.4,
		MaxTokens:       1024,
		RoutingKeywords: []string{"help", "broken", "issue", "problem", "refund", "return", "not working"},
		Topics:          []string{"support", "troubleshooting"},
	},
	"trial-meeting": {
		Key:             KeyTrialMeeting,
		SystemPrompt:    "You are a scheduling assistant for {companyName}. Help the customer book a trial or meeting slot.",
		Temperature:     0.5,
		MaxTokens:       512,
		RoutingKeywords: []string{"demo", "trial", "meeting", "schedule", "book a call"},
		Topics:          []string{"scheduling"},
	},
}

// DefaultIntent is used when the keyword fallback scorer finds no hits.
const DefaultIntent = "support"

// Catalog is the pluggable persona source the Router consults. A nil
// Custom field means only FixedCatalog is in play.
type Catalog struct {
	Fixed  map[string]Persona
	Custom map[string]Persona
}

func NewCatalog() *Catalog {
	return &Catalog{Fixed: FixedCatalog}
}

// LoadCustomCatalog installs a persistence-backed catalog of custom
// personas that, when present, replaces the fixed intent->persona map for
// routing purposes (fixed entries remain reachable by key through Get
// when the custom catalog lacks that key).
func (c *Catalog) LoadCustomCatalog(custom map[string]Persona) {
	c.Custom = custom
}

// Active returns the map the Router should rank candidates against:
// Custom when loaded, otherwise Fixed.
func (c *Catalog) Active() map[string]Persona {
	if len(c.Custom) > 0 {
		return c.Custom
	}
	return c.Fixed
}

func (c *Catalog) Get(key string) (Persona, bool) {
	if c.Custom != nil {
		if p, ok := c.Custom[key]; ok {
			return p, ok
		}
	}
	p, ok := c.Fixed[key]
	return p, ok
}
