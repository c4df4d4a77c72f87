// Package knowledge implements the Knowledge Index: a filesystem-loaded
// tree of category/subcategory JSON documents plus keyword/FAQ scoring.
// The directory-walk/load-or-skip-and-log shape is adapted from the
// teacher's specialist loader; the document domain (sales/support/company/
// config JSON instead of SPECIALIST.md frontmatter) and the scoring
// operations are new per the core spec.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
)

const component = "knowledge"

// Category is one of the four declared top-level document buckets.
type Category string

const (
	CategorySales   Category = "sales"
	CategorySupport Category = "support"
	CategoryCompany Category = "company"
	CategoryConfig  Category = "config"
)

// Document is one loaded knowledge file: its category/subcategory location,
// the raw decoded JSON object (nil when the file's top level is an array),
// and a flattened text representation used for substring scoring.
type Document struct {
	Category    Category
	Subcategory string
	Path        string
	Raw         map[string]interface{}
	Flat        string
}

// FAQEntry is the schema validated against documents under support/faq.
type FAQEntry struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
}

// RoutingRule is the schema validated against config/routing-rules.
type RoutingRule struct {
	Intent   string   `json:"intent"`
	Keywords []string `json:"keywords"`
}

// Product is the schema validated against sales/products.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Index is the loaded, queryable knowledge corpus.
type Index struct {
	root string

	mu        sync.RWMutex
	documents []Document
	faqs      []FAQEntry
	routing   []RoutingRule
	products  map[string]Product
}

func NewIndex(root string) *Index {
	return &Index{root: root, products: make(map[string]Product)}
}

// Load walks the root and (re)populates the index. It is safe to call
// again for an explicit reload; a failed individual file is logged and
// skipped rather than aborting the whole load.
func (idx *Index) Load() error {
	var docs []Document
	var faqs []FAQEntry
	var routing []RoutingRule
	products := make(map[string]Product)

	categories, err := os.ReadDir(idx.root)
	if err != nil {
		return fmt.Errorf("read knowledge root: %w", err)
	}

	for _, catEntry := range categories {
		if !catEntry.IsDir() {
			continue
		}
		category := Category(catEntry.Name())
		catPath := filepath.Join(idx.root, catEntry.Name())

		subEntries, err := os.ReadDir(catPath)
		if err != nil {
			obslog.WarnCF(component, "cannot read category directory", map[string]interface{}{"category": category, "error": err.Error()})
			continue
		}

		for _, sub := range subEntries {
			subPath := filepath.Join(catPath, sub.Name())
			var files []string
			if sub.IsDir() {
				entries, err := os.ReadDir(subPath)
				if err != nil {
					obslog.WarnCF(component, "cannot read subcategory directory", map[string]interface{}{"path": subPath, "error": err.Error()})
					continue
				}
				for _, f := range entries {
					if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
						files = append(files, filepath.Join(subPath, f.Name()))
					}
				}
			} else if strings.HasSuffix(sub.Name(), ".json") {
				files = append(files, subPath)
			}

			subcategory := strings.TrimSuffix(sub.Name(), ".json")

			for _, file := range files {
				data, err := os.ReadFile(file)
				if err != nil {
					obslog.WarnCF(component, "cannot read knowledge file", map[string]interface{}{"path": file, "error": err.Error()})
					continue
				}
				var parsed interface{}
				if err := json.Unmarshal(data, &parsed); err != nil {
					obslog.WarnCF(component, "cannot parse knowledge file", map[string]interface{}{"path": file, "error": err.Error()})
					continue
				}
				raw, _ := parsed.(map[string]interface{})

				docs = append(docs, Document{
					Category:    category,
					Subcategory: subcategory,
					Path:        file,
					Raw:         raw,
					Flat:        flatten(parsed),
				})

				switch {
				case category == CategorySupport && subcategory == "faq":
					var list []FAQEntry
					if err := json.Unmarshal(data, &list); err == nil {
						faqs = append(faqs, list...)
					}
				case category == CategoryConfig && subcategory == "routing-rules":
					var list []RoutingRule
					if err := json.Unmarshal(data, &list); err == nil {
						routing = append(routing, list...)
					}
				case category == CategorySales && subcategory == "products":
					var list []Product
					if err := json.Unmarshal(data, &list); err == nil {
						for _, p := range list {
							products[p.ID] = p
						}
					}
				}
			}
		}
	}

	idx.mu.Lock()
	idx.documents = docs
	idx.faqs = faqs
	idx.routing = routing
	idx.products = products
	idx.mu.Unlock()

	obslog.InfoCF(component, "knowledge index loaded", map[string]interface{}{"documents": len(docs), "faqs": len(faqs), "routing_rules": len(routing)})
	return nil
}

// flatten renders a decoded JSON value into a single lowercased string for
// substring scoring.
func flatten(v interface{}) string {
	var sb strings.Builder
	flattenInto(&sb, v)
	return strings.ToLower(sb.String())
}

func flattenInto(sb *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case string:
		sb.WriteString(t)
		sb.WriteString(" ")
	case map[string]interface{}:
		for _, val := range t {
			flattenInto(sb, val)
		}
	case []interface{}:
		for _, val := range t {
			flattenInto(sb, val)
		}
	case float64, bool, nil:
		// not relevant to keyword scoring
	}
}

// ScoredDocument pairs a document with its relevance count.
type ScoredDocument struct {
	Document  Document
	Relevance int
}

// SearchByKeywords scores documents by case-insensitive substring hit
// count, optionally restricted to one category.
func (idx *Index) SearchByKeywords(keywords []string, category *Category) []ScoredDocument {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []ScoredDocument
	for _, doc := range idx.documents {
		if category != nil && doc.Category != *category {
			continue
		}
		score := 0
		for _, kw := range keywords {
			score += strings.Count(doc.Flat, strings.ToLower(kw))
		}
		if score > 0 {
			out = append(out, ScoredDocument{Document: doc, Relevance: score})
		}
	}
	sortByRelevanceDesc(out)
	return out
}

func sortByRelevanceDesc(docs []ScoredDocument) {
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && docs[j].Relevance > docs[j-1].Relevance; j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}

// FAQMatch is a scored FAQ hit.
type FAQMatch struct {
	Entry FAQEntry
	Score int
}

// SearchFAQ scores FAQ entries: keyword-list matches weight 2, word-in-
// question matches weight 1.
func (idx *Index) SearchFAQ(query string) []FAQMatch {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryLower := strings.ToLower(query)
	queryWords := strings.Fields(queryLower)

	var matches []FAQMatch
	for _, faq := range idx.faqs {
		score := 0
		for _, kw := range faq.Keywords {
			if strings.Contains(queryLower, strings.ToLower(kw)) {
				score += 2
			}
		}
		questionLower := strings.ToLower(faq.Question)
		for _, w := range queryWords {
			if len(w) < 3 {
				continue
			}
			if strings.Contains(questionLower, w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, FAQMatch{Entry: faq, Score: score})
		}
	}
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Score > matches[j-1].Score; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches
}

// GetProduct looks up a product by id.
func (idx *Index) GetProduct(id string) (Product, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.products[id]
	return p, ok
}

// RoutingRules returns the loaded keyword routing rules used by the
// Orchestrator's keyword-fallback router.
func (idx *Index) RoutingRules() []RoutingRule {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]RoutingRule, len(idx.routing))
	copy(out, idx.routing)
	return out
}

// FindRelevantData assembles a persona-appropriate knowledge subset:
// company info and tone-of-voice always included, persona-specific blocks
// keyed by persona name, plus any document whose subcategory begins with
// "uploaded-" in that persona's relevant category.
func (idx *Index) FindRelevantData(message, persona string) map[string]Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string]Document)
	for _, doc := range idx.documents {
		if doc.Category == CategoryCompany {
			out["company/"+doc.Subcategory] = doc
			continue
		}
		if strings.HasPrefix(doc.Subcategory, "uploaded-") {
			out[string(doc.Category)+"/"+doc.Subcategory] = doc
			continue
		}
		if persona != "" && string(doc.Category) == persona {
			out[string(doc.Category)+"/"+doc.Subcategory] = doc
		}
	}
	return out
}
