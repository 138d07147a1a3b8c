package search

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/pkg/fn"
)

const (
	outlineProbe = "目次"
	outlineLimit = 100
	bodyMarker   = "内容: "
	unknownTitle = "不明"
)

// OutlineEntry is one section of the manual table of contents.
type OutlineEntry struct {
	Title    string `json:"title"`
	Page     int    `json:"page"`
	FilePath string `json:"file_path"`
}

// ManualSearcher searches manual pages.
type ManualSearcher struct {
	adapter
}

// NewManualSearcher creates the manual source adapter.
func NewManualSearcher(e Embedder, idx Index, d Defaults, logger *slog.Logger) *ManualSearcher {
	return &ManualSearcher{adapter: newAdapter(domain.KindManual, e, idx, d, buildManual, logger)}
}

func pageSuffix(page int) string {
	if page == 0 {
		return ""
	}
	return fmt.Sprintf(" (ページ %d)", page)
}

func buildManual(doc string, meta map[string]any, distance, score float64) domain.SearchResult {
	title, hasTitle := metaString(meta, "title")
	page := metaInt(meta, "page")
	path, _ := metaString(meta, "file_path")

	heading := title
	if !hasTitle {
		heading = unknownTitle
	}
	body := doc
	if _, after, ok := strings.Cut(doc, bodyMarker); ok {
		body = after
	}

	source := "マニュアル"
	if path != "" {
		source += ": " + filepath.Base(path)
	}
	if title != "" {
		source += " - " + title
	}
	source += pageSuffix(page)

	return domain.SearchResult{
		Content:  heading + pageSuffix(page) + "\n" + body,
		Source:   source,
		Score:    score,
		Metadata: domain.ManualMeta{Title: title, Page: page, FilePath: path, Distance: distance},
	}
}

// Search returns manual pages similar to query. maxResults and minScore fall
// back to the defaults when zero.
func (m *ManualSearcher) Search(ctx context.Context, query string, maxResults int, minScore float64) domain.Outcome {
	return m.search(ctx, query, maxResults, minScore)
}

// SearchBySection searches using a section title as the query.
func (m *ManualSearcher) SearchBySection(ctx context.Context, title string, maxResults int) domain.Outcome {
	m.logger.Info("section search", "section", title)
	return m.search(ctx, title, maxResults, 0)
}

// SearchByPageRange over-fetches twice maxResults and keeps pages in [start, end],
// stopping at maxResults.
func (m *ManualSearcher) SearchByPageRange(ctx context.Context, query string, start, end, maxResults int) domain.Outcome {
	maxResults, _ = m.resolve(maxResults, 0)
	m.logger.Info("page range search", "query", query, "start", start, "end", end)

	out := m.search(ctx, query, maxResults*2, 0)
	if out.Status != domain.StatusOK {
		return out
	}
	return domain.Succeeded(fn.Keep(out.Results, maxResults, func(r domain.SearchResult) bool {
		meta, ok := r.Metadata.(domain.ManualMeta)
		return ok && meta.Page >= start && meta.Page <= end
	}))
}

// Outline lists up to 100 manual sections ordered by page. Failures yield an
// empty outline.
func (m *ManualSearcher) Outline(ctx context.Context) (entries []OutlineEntry) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("outline panicked", "panic", r)
			entries = nil
		}
	}()

	vec, err := m.embedder.Embed(ctx, outlineProbe)
	if err != nil {
		m.logger.Error("outline failed", "err", err)
		return nil
	}
	raw, err := m.index.Query(ctx, vec, outlineLimit, m.filter())
	if err != nil {
		m.logger.Error("outline failed", "err", err)
		return nil
	}

	entries = fn.Map(raw.Metadatas, func(meta map[string]any) OutlineEntry {
		title, ok := metaString(meta, "title")
		if !ok {
			title = unknownTitle
		}
		path, _ := metaString(meta, "file_path")
		return OutlineEntry{Title: title, Page: metaInt(meta, "page"), FilePath: path}
	})
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Page < entries[j].Page })
	m.logger.Info("outline loaded", "sections", len(entries))
	return entries
}

// Healthy reports whether manual pages exist and a probe search succeeds.
func (m *ManualSearcher) Healthy(ctx context.Context) bool {
	return m.healthy(ctx)
}
