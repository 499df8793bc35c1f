package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/soundimports/pricelens/internal/domain/extraction"
)

// ProductDocument is one known product name in a supplier's catalog.
type ProductDocument struct {
	ID          string  `json:"id"`
	SupplierKey string  `json:"supplier_key"`
	Name        string  `json:"name"`
	ModelCode   string  `json:"model_code"`
	Kind        string  `json:"kind"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
}

// Match is a recognized product with its relevance score.
type Match struct {
	Document ProductDocument
	Score    float64
}

// Index holds previously extracted product names per supplier. Extraction
// results are folded in after each run; lookups tell whether a candidate
// name resembles something this supplier has shipped before.
type Index struct {
	index   bleve.Index
	indexMu sync.RWMutex
	path    string
}

// NewIndex creates a catalog index. An empty path gives an in-memory index,
// otherwise the index is created or opened at path.
func NewIndex(path string) (*Index, error) {
	ci := &Index{path: path}

	var index bleve.Index
	var err error

	indexMapping := buildIndexMapping()

	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
				return nil, fmt.Errorf("create index directory: %w", mkdirErr)
			}
			index, err = bleve.New(path, indexMapping)
		} else {
			index, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create/open catalog index: %w", err)
	}

	ci.index = index
	return ci, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	numericFieldMapping := bleve.NewNumericFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("supplier_key", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("model_code", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("kind", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("price", numericFieldMapping)
	docMapping.AddFieldMappingsAt("currency", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

var modelTokenRe = regexp.MustCompile(`\b[A-Z][A-Z0-9-]{2,}\b`)

// modelCode pulls the leading model-code token out of a product name, if
// the name carries one.
func modelCode(name string) string {
	token := modelTokenRe.FindString(name)
	if token == "" || !strings.ContainsAny(token, "0123456789") {
		return ""
	}
	return token
}

// AddProducts folds one extraction run's products into the supplier's
// catalog. Products with a model code keep a stable document ID so repeat
// runs update in place instead of accumulating duplicates.
func (ci *Index) AddProducts(supplierKey string, products []extraction.ProductCandidate) error {
	ci.indexMu.Lock()
	defer ci.indexMu.Unlock()

	batch := ci.index.NewBatch()
	for _, p := range products {
		code := modelCode(p.Name)

		id := supplierKey + "/" + code
		if code == "" {
			id = supplierKey + "/" + uuid.NewString()
		}

		price, _ := p.Price.Float64()
		doc := ProductDocument{
			ID:          id,
			SupplierKey: supplierKey,
			Name:        p.Name,
			ModelCode:   code,
			Kind:        string(p.Kind),
			Price:       price,
			Currency:    p.Currency,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("index product %q: %w", p.Name, err)
		}
	}

	if err := ci.index.Batch(batch); err != nil {
		return fmt.Errorf("batch index products: %w", err)
	}
	return nil
}

// Recognize looks a candidate name up in the supplier's catalog. It returns
// the best match and true when the supplier has shipped something similar
// before, allowing one edit of typo tolerance per term.
func (ci *Index) Recognize(supplierKey, name string) (Match, bool, error) {
	ci.indexMu.RLock()
	defer ci.indexMu.RUnlock()

	supplierQuery := bleve.NewTermQuery(supplierKey)
	supplierQuery.SetField("supplier_key")

	nameQuery := bleve.NewMatchQuery(name)
	nameQuery.SetField("name")
	nameQuery.SetFuzziness(1)

	query := bleve.NewConjunctionQuery(supplierQuery, nameQuery)
	searchRequest := bleve.NewSearchRequest(query)
	searchRequest.Size = 1
	searchRequest.Fields = []string{"*"}

	searchResults, err := ci.index.Search(searchRequest)
	if err != nil {
		return Match{}, false, fmt.Errorf("recognize %q: %w", name, err)
	}
	if len(searchResults.Hits) == 0 {
		return Match{}, false, nil
	}

	hit := searchResults.Hits[0]
	return Match{Document: documentFromFields(hit.ID, hit.Fields), Score: hit.Score}, true, nil
}

// KnownNames returns up to limit product names indexed for the supplier,
// most relevant first.
func (ci *Index) KnownNames(supplierKey string, limit int) ([]string, error) {
	ci.indexMu.RLock()
	defer ci.indexMu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	termQuery := bleve.NewTermQuery(supplierKey)
	termQuery.SetField("supplier_key")

	searchRequest := bleve.NewSearchRequest(termQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"name"}

	searchResults, err := ci.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("list supplier %q: %w", supplierKey, err)
	}

	names := make([]string, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		if name, ok := hit.Fields["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// DocumentCount returns the number of products in the index.
func (ci *Index) DocumentCount() (uint64, error) {
	ci.indexMu.RLock()
	defer ci.indexMu.RUnlock()

	return ci.index.DocCount()
}

// Close closes the index.
func (ci *Index) Close() error {
	ci.indexMu.Lock()
	defer ci.indexMu.Unlock()

	if ci.index != nil {
		return ci.index.Close()
	}
	return nil
}

func documentFromFields(id string, fields map[string]any) ProductDocument {
	doc := ProductDocument{ID: id}
	if v, ok := fields["supplier_key"].(string); ok {
		doc.SupplierKey = v
	}
	if v, ok := fields["name"].(string); ok {
		doc.Name = v
	}
	if v, ok := fields["model_code"].(string); ok {
		doc.ModelCode = v
	}
	if v, ok := fields["kind"].(string); ok {
		doc.Kind = v
	}
	if v, ok := fields["price"].(float64); ok {
		doc.Price = v
	}
	if v, ok := fields["currency"].(string); ok {
		doc.Currency = v
	}
	return doc
}
