// Package report turns a run report into notification payloads. Every
// function here is pure: same report and options, same payload.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"harvester/pkg/models"
)

// ErrUnknownFormat is returned for a format name Render does not know.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names one notification encoding.
type Format string

const (
	FormatText Format = "text"
	FormatPost Format = "post"
	FormatCard Format = "card"
)

const (
	displayLayout  = "2006-01-02 15:04:05"
	ellipsis       = "..."
	truncateMarker = "… (transcript truncated)"
)

// DefaultLocation is the fixed display zone for report timestamps (UTC+8).
var DefaultLocation = time.FixedZone("UTC+8", 8*60*60)

// Options controls presentation only; counts always come from Summarize.
type Options struct {
	Title             string
	Location          *time.Location
	TextErrorLimit    int // runes of error text in the plain digest
	PostErrorLimit    int // runes of error text in the block list
	TranscriptLimit   int // runes of transcript attached to a card
	IncludeTranscript bool
}

// DefaultOptions returns the settings the notifier ships with.
func DefaultOptions() Options {
	return Options{
		Title:             "Crawler run report",
		Location:          DefaultLocation,
		TextErrorLimit:    100,
		PostErrorLimit:    50,
		TranscriptLimit:   2000,
		IncludeTranscript: true,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if strings.TrimSpace(o.Title) == "" {
		o.Title = d.Title
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	if o.TextErrorLimit <= 0 {
		o.TextErrorLimit = d.TextErrorLimit
	}
	if o.PostErrorLimit <= 0 {
		o.PostErrorLimit = d.PostErrorLimit
	}
	if o.TranscriptLimit <= 0 {
		o.TranscriptLimit = d.TranscriptLimit
	}
	return o
}

// ParseFormats parses a comma separated list such as "post,card".
func ParseFormats(s string) ([]Format, error) {
	var formats []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		switch f {
		case FormatText, FormatPost, FormatCard:
		default:
			return nil, fmt.Errorf("%w: %q (valid options: text, post, card)", ErrUnknownFormat, string(f))
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// Render builds the payload for one format.
func Render(format Format, report *models.RunReport, opts Options) (any, error) {
	if report == nil {
		return nil, errors.New("report is required")
	}
	switch format {
	case FormatText:
		return Text(report, opts), nil
	case FormatPost:
		return Post(report, opts), nil
	case FormatCard:
		return Card(report, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// Digest is the short console summary printed after a run: one line per
// job with its counts or its truncated error.
func Digest(results models.Results, errorLimit int) string {
	if len(results) == 0 {
		return "no jobs were run"
	}
	if errorLimit <= 0 {
		errorLimit = DefaultOptions().TextErrorLimit
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r.Succeeded() {
			lines = append(lines, fmt.Sprintf("%s %s: found %d, persisted %d", glyph(r), r.Name, r.FoundCount, r.PersistedCount))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s: failed - %s", glyph(r), r.Name, truncate(r.ErrorMessage, errorLimit)))
	}
	return strings.Join(lines, "\n")
}

func glyph(r models.JobResult) string {
	if r.Succeeded() {
		return "✅"
	}
	return "❌"
}

// truncate cuts s to limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + ellipsis
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(displayLayout)
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func summaryLines(s models.Summary) []string {
	return []string{
		fmt.Sprintf("Jobs: %d", s.Total),
		fmt.Sprintf("Succeeded: %d", s.Succeeded),
		fmt.Sprintf("Failed: %d", s.Failed),
		fmt.Sprintf("Found: %d", s.TotalFound),
		fmt.Sprintf("Persisted: %d", s.TotalPersisted),
	}
}

func jobDetail(r models.JobResult, errorLimit int) string {
	if r.Succeeded() {
		return fmt.Sprintf("found %d, persisted %d (%s)", r.FoundCount, r.PersistedCount, formatSeconds(r.Elapsed))
	}
	return "failed - " + truncate(r.ErrorMessage, errorLimit)
}
