package report

import (
	"fmt"
	"strings"

	"harvester/pkg/models"
)

// TextMessage is the plain-text webhook payload.
type TextMessage struct {
	MsgType string      `json:"msg_type"`
	Content TextContent `json:"content"`
}

// TextContent holds the message body.
type TextContent struct {
	Text string `json:"text"`
}

// Text renders the plain-text digest.
func Text(report *models.RunReport, opts Options) TextMessage {
	opts = opts.normalized()
	summary := models.Summarize(report)

	var b strings.Builder
	b.WriteString(opts.Title)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Started: %s (%s)\n", formatTime(report.StartedAt, opts.Location), opts.Location)
	fmt.Fprintf(&b, "Duration: %s\n", formatSeconds(summary.Duration))
	b.WriteString(strings.Join(summaryLines(summary), " | "))
	b.WriteByte('\n')

	for _, r := range report.Results {
		b.WriteByte('\n')
		b.WriteString(glyph(r))
		b.WriteByte(' ')
		b.WriteString(r.Name)
		if r.Target != "" {
			b.WriteString(" (")
			b.WriteString(r.Target)
			b.WriteByte(')')
		}
		b.WriteString(": ")
		b.WriteString(jobDetail(r, opts.TextErrorLimit))
	}

	return TextMessage{
		MsgType: "text",
		Content: TextContent{Text: b.String()},
	}
}
