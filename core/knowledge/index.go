package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	DomainFieldName  = "domain"
	DefaultBatchSize = 100
	// titleBoost favours passages whose title matches the query.
	titleBoost = 2.0
)

var storedFields = []string{"title", "url", "content", DomainFieldName}

// indexDoc is the shape stored in bleve. Field names follow the json tags.
type indexDoc struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	Domain    string    `json:"domain"`
	IndexedAt time.Time `json:"indexed_at"`
}

// IndexConfig configures a bleve backed Index. An empty Path keeps the
// index in memory.
type IndexConfig struct {
	Path      string
	BatchSize int
}

// Index is a bleve full text index of passages with an exact match domain
// field used as a filter.
type Index struct {
	index  bleve.Index
	config IndexConfig
	mu     sync.RWMutex
	closed bool
}

// OpenIndex opens the index at cfg.Path, creating it when missing.
func OpenIndex(cfg IndexConfig) (*Index, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	idx, err := openOrCreate(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Index{index: idx, config: cfg}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(buildMapping())
	}

	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("open knowledge index: %w", err)
	}

	idx, err = bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create knowledge index: %w", err)
	}
	return idx, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true

	indexedAt := bleve.NewDateTimeFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("url", stored)
	doc.AddFieldMappingsAt(DomainFieldName, keyword)
	doc.AddFieldMappingsAt("indexed_at", indexedAt)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = en.AnalyzerName
	return m
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.index.Close()
}

func (i *Index) Path() string {
	return i.config.Path
}

// Add indexes passages in batches. Re-adding an ID replaces the passage.
func (i *Index) Add(ctx context.Context, passages []Passage) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrIndexClosed
	}

	now := time.Now().UTC()
	batch := i.index.NewBatch()
	for _, p := range passages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.ID == "" || strings.TrimSpace(p.Content) == "" {
			return fmt.Errorf("%w: %q", ErrEmptyPassage, p.Title)
		}

		doc := indexDoc{
			Title:     p.Title,
			URL:       p.URL,
			Content:   p.Content,
			Domain:    p.Domain.String(),
			IndexedAt: now,
		}
		if err := batch.Index(p.ID, doc); err != nil {
			return fmt.Errorf("index passage %q: %w", p.ID, err)
		}

		if batch.Size() >= i.config.BatchSize {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			batch = i.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("commit final batch: %w", err)
		}
	}
	return nil
}

func (i *Index) Delete(id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return ErrIndexClosed
	}
	return i.index.Delete(id)
}

func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return 0, ErrIndexClosed
	}
	return i.index.DocCount()
}

// Retrieve runs a match query over title and content restricted to d.
func (i *Index) Retrieve(ctx context.Context, text string, d domain.Domain, limit int) ([]Passage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, ErrIndexClosed
	}

	req := bleve.NewSearchRequestOptions(buildDomainQuery(text, d), limit, 0, false)
	req.Fields = storedFields

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}

	passages := make([]Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		passages = append(passages, Passage{
			ID:      hit.ID,
			Title:   stringField(hit.Fields, "title"),
			URL:     stringField(hit.Fields, "url"),
			Content: stringField(hit.Fields, "content"),
			Domain:  d,
			Score:   hit.Score,
		})
	}
	return passages, nil
}

// buildDomainQuery matches free text in title or content and requires the
// domain term. Match queries are used because user text is not valid
// query string syntax in general.
func buildDomainQuery(text string, d domain.Domain) query.Query {
	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(titleBoost)

	content := bleve.NewMatchQuery(text)
	content.SetField("content")

	term := bleve.NewTermQuery(d.String())
	term.SetField(DomainFieldName)

	q := bleve.NewBooleanQuery()
	q.AddMust(bleve.NewDisjunctionQuery(title, content))
	q.AddMust(term)
	return q
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
