package report

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"harvester/pkg/models"
)

// Card header templates. Red marks a run with at least one failed job.
const (
	TemplateSuccess = "green"
	TemplateFailure = "red"
)

// CardMessage is the interactive card payload.
type CardMessage struct {
	MsgType string   `json:"msg_type"`
	Card    CardBody `json:"card"`
}

// CardBody is a titled container of elements.
type CardBody struct {
	Config   CardConfig    `json:"config"`
	Header   CardHeader    `json:"header"`
	Elements []CardElement `json:"elements"`
}

// CardConfig toggles card-wide rendering options.
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader carries the title and severity template.
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template"`
}

// CardText is a text node; Tag is plain_text or lark_md.
type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// CardElement is a div with text, or a bare hr.
type CardElement struct {
	Tag  string    `json:"tag"`
	Text *CardText `json:"text,omitempty"`
}

func markdownDiv(s string) CardElement {
	return CardElement{Tag: "div", Text: &CardText{Tag: "lark_md", Content: s}}
}

func plainDiv(s string) CardElement {
	return CardElement{Tag: "div", Text: &CardText{Tag: "plain_text", Content: s}}
}

func rule() CardElement {
	return CardElement{Tag: "hr"}
}

// Card renders the interactive card. The header turns red when any job
// failed; the transcript, when attached, is capped at TranscriptLimit runes.
func Card(report *models.RunReport, opts Options) CardMessage {
	opts = opts.normalized()
	summary := models.Summarize(report)

	template := TemplateSuccess
	if summary.HasFailures() {
		template = TemplateFailure
	}

	overview := fmt.Sprintf("**Started:** %s (%s)\n**Duration:** %s\n%s",
		formatTime(report.StartedAt, opts.Location),
		opts.Location,
		formatSeconds(summary.Duration),
		"**"+strings.Join(summaryLines(summary), "** · **")+"**",
	)

	elements := []CardElement{markdownDiv(overview), rule()}

	if len(report.Results) > 0 {
		details := make([]string, 0, len(report.Results))
		for _, r := range report.Results {
			name := escapeMarkdown(r.Name)
			if href, ok := linkTarget(r.Target); ok {
				name = fmt.Sprintf("[%s](%s)", name, href)
			}
			details = append(details, fmt.Sprintf("%s %s: %s", glyph(r), name, escapeMarkdown(jobDetail(r, opts.TextErrorLimit))))
		}
		elements = append(elements, markdownDiv(strings.Join(details, "\n")))
	} else {
		elements = append(elements, plainDiv("No jobs were registered."))
	}

	if opts.IncludeTranscript && report.Transcript != "" {
		elements = append(elements, rule(), plainDiv(capTranscript(report.Transcript, opts.TranscriptLimit)))
	}

	return CardMessage{
		MsgType: "interactive",
		Card: CardBody{
			Config: CardConfig{WideScreenMode: true},
			Header: CardHeader{
				Title:    CardText{Tag: "plain_text", Content: fmt.Sprintf("%s - %s", opts.Title, report.EndedAt.In(opts.Location).Format("2006-01-02"))},
				Template: template,
			},
			Elements: elements,
		},
	}
}

// capTranscript keeps the tail of the transcript, where the run summary and
// the latest failures are, and prefixes the truncation marker.
func capTranscript(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return truncateMarker + "\n" + string(runes[len(runes)-limit:])
}

var hrefEscaper = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")

// linkTarget returns an href safe to embed in a markdown link. Targets that
// are not absolute http(s) URLs render as plain text.
func linkTarget(target string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return hrefEscaper.Replace(u.String()), true
}

var markdownEscaper = strings.NewReplacer(
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"~", `\~`,
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
