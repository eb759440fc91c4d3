// Package sources provides the collection jobs harvester runs.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"harvester/pkg/models"
	"harvester/pkg/runner"
)

// DefaultFeedTimeout bounds the feed request.
const DefaultFeedTimeout = 15 * time.Second

// DefaultMaxFeedBody caps how much of a feed response is read.
const DefaultMaxFeedBody = 16 << 20

// previewCount is how many of the newest entries are echoed to the transcript.
const previewCount = 5

// Saver persists collected items and returns the ones written.
type Saver interface {
	SavePolicies(ctx context.Context, source string, items []models.Policy) ([]models.Policy, error)
}

// Fields maps feed entry keys to policy fields.
type Fields struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
	Date  string `yaml:"date"`
}

// Feed collects entries from a JSON list endpoint.
type Feed struct {
	Source        string
	URL           string
	BaseURL       string // prefixed to relative entry links
	ItemsKey      string // when the list is wrapped in an object
	Fields        Fields
	DateLayout    string
	Category      string
	OnlyYesterday bool
	Location      *time.Location

	Client  *http.Client
	MaxBody int64 // DefaultMaxFeedBody when zero
	Saver   Saver
	Now     func() time.Time
}

// Run fetches the feed, keeps the entries to collect and saves them.
func (f *Feed) Run(ctx context.Context, out io.Writer) (runner.Batch, error) {
	entries, err := f.fetch(ctx)
	if err != nil {
		return nil, err
	}

	items, skipped := f.collect(entries)
	fmt.Fprintf(out, "%s: %d entries, %d selected, %d outside the date window\n", f.Source, len(entries), len(items), skipped)
	f.preview(out, entries)

	if f.Saver == nil {
		fmt.Fprintf(out, "%s: no item store configured, nothing persisted\n", f.Source)
		return runner.Partial{Found: len(items)}, nil
	}

	saved, err := f.Saver.SavePolicies(ctx, f.Source, items)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", f.Source, err)
	}
	fmt.Fprintf(out, "%s: persisted %d of %d\n", f.Source, len(saved), len(items))
	return runner.Partial{Found: len(items), Persisted: len(saved)}, nil
}

func (f *Feed) fetch(ctx context.Context) ([]map[string]any, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFeedTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", f.URL, resp.StatusCode)
	}

	limit := f.MaxBody
	if limit <= 0 {
		limit = DefaultMaxFeedBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.URL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("read %s: body exceeds %d bytes", f.URL, limit)
	}
	return decodeEntries(body, f.ItemsKey)
}

// decodeEntries pulls the entry list out of a feed body. itemsKey is a
// JMESPath expression such as "list" or "data.items"; empty means the body
// itself is the list.
func decodeEntries(body []byte, itemsKey string) ([]map[string]any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	if itemsKey != "" {
		found, err := jmespath.Search(itemsKey, doc)
		if err != nil {
			return nil, fmt.Errorf("decode feed: items_key %q: %w", itemsKey, err)
		}
		if found == nil {
			return nil, fmt.Errorf("decode feed: %q not found", itemsKey)
		}
		doc = found
	}

	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("decode feed: expected a list, got %T", doc)
	}

	entries := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if entry, ok := item.(map[string]any); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// collect converts entries to policies. Entries without a title or link are
// dropped; with OnlyYesterday, so are entries not dated yesterday.
func (f *Feed) collect(entries []map[string]any) (items []models.Policy, outOfWindow int) {
	loc := f.location()
	yesterday := f.now().In(loc).AddDate(0, 0, -1).Format("2006-01-02")

	for _, entry := range entries {
		title := stringField(entry, f.Fields.Title)
		link := stringField(entry, f.Fields.URL)
		if title == "" || link == "" {
			continue
		}

		pubAt := f.parseDate(stringField(entry, f.Fields.Date), loc)
		if f.OnlyYesterday && (pubAt == nil || pubAt.Format("2006-01-02") != yesterday) {
			outOfWindow++
			continue
		}

		items = append(items, models.Policy{
			Title:    title,
			URL:      f.absolute(link),
			PubAt:    pubAt,
			Category: f.Category,
			Source:   f.Source,
		})
	}
	return items, outOfWindow
}

func (f *Feed) preview(out io.Writer, entries []map[string]any) {
	n := min(len(entries), previewCount)
	if n == 0 {
		return
	}
	fmt.Fprintf(out, "%s: latest %d entries:\n", f.Source, n)
	for _, entry := range entries[:n] {
		date := stringField(entry, f.Fields.Date)
		if date == "" {
			date = "unknown date"
		}
		fmt.Fprintf(out, "  %s %s\n", stringField(entry, f.Fields.Title), date)
	}
}

func (f *Feed) parseDate(s string, loc *time.Location) *time.Time {
	if s == "" {
		return nil
	}
	layout := f.DateLayout
	if layout == "" {
		layout = "2006-01-02"
	}
	if len(s) > len(layout) {
		s = s[:len(layout)]
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return nil
	}
	return &t
}

func (f *Feed) absolute(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") || f.BaseURL == "" {
		return link
	}
	return strings.TrimRight(f.BaseURL, "/") + "/" + strings.TrimLeft(link, "/")
}

func (f *Feed) location() *time.Location {
	if f.Location != nil {
		return f.Location
	}
	return time.UTC
}

func (f *Feed) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func stringField(entry map[string]any, key string) string {
	if key == "" {
		return ""
	}
	switch v := entry[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}
