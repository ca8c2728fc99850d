package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/ndmitriev/estore/internal/models"
)

// Index keeps the product search index in step with the product table.
// The index is a disposable projection: every write here is best-effort
// and the product row stays authoritative. Failures are logged and
// counted, never surfaced.
type Index struct {
	ES   *elasticsearch.Client
	Name string

	logger      *slog.Logger
	provisioned atomic.Bool
	failures    atomic.Int64
}

func NewIndex(logger *slog.Logger, client *elasticsearch.Client, name string) *Index {
	return &Index{ES: client, Name: name, logger: logger}
}

// ensure lazily creates the index with its mappings on first use.
// Safe under concurrent first use: creating an index that already
// exists is treated as success.
func (i *Index) ensure(ctx context.Context) error {
	if i.provisioned.Load() {
		return nil
	}

	res, err := i.ES.Indices.Exists([]string{i.Name}, i.ES.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists check: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		i.provisioned.Store(true)
		return nil
	}

	mapping := `{
		"mappings": {
			"properties": {
				"name":        {"type": "text"},
				"description": {"type": "text"},
				"category":    {"type": "keyword"},
				"price":       {"type": "float"}
			}
		}
	}`

	res, err = i.ES.Indices.Create(
		i.Name,
		i.ES.Indices.Create.WithContext(ctx),
		i.ES.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("index create: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if !strings.Contains(string(body), "resource_already_exists_exception") {
			return fmt.Errorf("index create: %s", res.Status())
		}
	}

	i.provisioned.Store(true)
	return nil
}

// Upsert writes the search document for a product, overwriting any
// previous version.
func (i *Index) Upsert(ctx context.Context, product *models.Product) {
	if err := i.ensure(ctx); err != nil {
		i.fail("upsert", err)
		return
	}

	price, _ := product.Price.Float64()
	doc := map[string]any{
		"name":        product.Name,
		"description": product.Description,
		"category":    product.Category,
		"price":       price,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		i.fail("upsert", err)
		return
	}

	res, err := i.ES.Index(
		i.Name,
		&buf,
		i.ES.Index.WithContext(ctx),
		i.ES.Index.WithDocumentID(strconv.FormatUint(uint64(product.ID), 10)),
	)
	if err != nil {
		i.fail("upsert", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		i.fail("upsert", fmt.Errorf("status %s", res.Status()))
	}
}

// Remove deletes the search document. A document that is already gone
// is not an error.
func (i *Index) Remove(ctx context.Context, productID uint) {
	res, err := i.ES.Delete(
		i.Name,
		strconv.FormatUint(uint64(productID), 10),
		i.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		i.fail("remove", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		i.fail("remove", fmt.Errorf("status %s", res.Status()))
	}
}

// Search returns product ids ranked by relevance. An unreachable
// backend or a failed query yields an empty result, so the catalog
// degrades to "no results" instead of an error page.
func (i *Index) Search(ctx context.Context, query string, from, size int) []uint {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		i.fail("search", err)
		return nil
	}

	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(i.Name),
		i.ES.Search.WithBody(&buf),
	)
	if err != nil {
		i.fail("search", err)
		return nil
	}
	defer res.Body.Close()
	if res.IsError() {
		i.fail("search", fmt.Errorf("status %s", res.Status()))
		return nil
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		i.fail("search", err)
		return nil
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

// Failures reports how many index operations have been dropped.
func (i *Index) Failures() int64 {
	return i.failures.Load()
}

func (i *Index) fail(op string, err error) {
	i.failures.Add(1)
	i.logger.Warn("search index operation dropped", "op", op, "index", i.Name, "error", err)
}
