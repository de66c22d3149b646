// Package catalog ranks dashboards by keywords. The index lives in memory
// and is rebuilt for every scan.
package catalog

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/grafana-toolbox/grafana-wtf/pkg/dashboard"
	"github.com/grafana-toolbox/grafana-wtf/pkg/types"
)

const DefaultLimit = 10

type document struct {
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Folder      string   `json:"folder"`
	Panels      []string `json:"panels"`
	Description string   `json:"description"`
}

type Hit struct {
	UID   string  `json:"uid"`
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score"`
}

type Catalog struct {
	index      bleve.Index
	dashboards map[string]*types.Dashboard
}

// Build indexes title, tags, folder, panel titles and description of every
// dashboard.
func Build(dashboards []*types.Dashboard) (*Catalog, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}

	c := &Catalog{index: index, dashboards: make(map[string]*types.Dashboard, len(dashboards))}
	batch := index.NewBatch()
	for _, d := range dashboards {
		uid := d.UID()
		if uid == "" {
			continue
		}
		c.dashboards[uid] = d
		if err := batch.Index(uid, documentOf(d)); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index dashboard %s: %w", uid, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	return c, nil
}

func documentOf(d *types.Dashboard) document {
	doc := document{
		Title:       d.Title(),
		Tags:        d.Tags(),
		Folder:      d.FolderTitle(),
		Description: d.Description(),
	}
	for _, panel := range dashboard.Panels(d) {
		if title, ok := panel["title"].(string); ok && title != "" {
			doc.Panels = append(doc.Panels, title)
		}
	}
	return doc
}

// Search returns the best matching dashboards, highest score first.
func (c *Catalog) Search(query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{UID: h.ID, Score: h.Score}
		if d, ok := c.dashboards[h.ID]; ok {
			hit.Title = d.Title()
			hit.URL = d.URL()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (c *Catalog) Len() int {
	return len(c.dashboards)
}

func (c *Catalog) Close() error {
	return c.index.Close()
}
