package report

import (
	"fmt"

	"harvester/pkg/models"
)

// Span is one inline element of a block-list line.
type Span struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

// PostMessage is the structured block-list payload.
type PostMessage struct {
	MsgType string      `json:"msg_type"`
	Content PostContent `json:"content"`
}

// PostContent wraps the localized post bodies.
type PostContent struct {
	Post PostLocales `json:"post"`
}

// PostLocales carries one body per locale; only zh_cn is sent.
type PostLocales struct {
	ZhCN PostBody `json:"zh_cn"`
}

// PostBody is a title plus lines of spans.
type PostBody struct {
	Title   string   `json:"title"`
	Content [][]Span `json:"content"`
}

func text(s string) Span {
	return Span{Tag: "text", Text: s}
}

func link(s, href string) Span {
	return Span{Tag: "a", Text: s, Href: href}
}

// Post renders the block list. Jobs with a target get a clickable name.
func Post(report *models.RunReport, opts Options) PostMessage {
	opts = opts.normalized()
	summary := models.Summarize(report)

	lines := [][]Span{
		{text("🕐 Run time: "), text(fmt.Sprintf("%s - %s", formatTime(report.StartedAt, opts.Location), formatTime(report.EndedAt, opts.Location)))},
		{text("⏱️ Duration: "), text(formatSeconds(summary.Duration))},
		{},
		{text("📊 Summary:")},
		{text(fmt.Sprintf("   ✅ Succeeded: %d", summary.Succeeded))},
		{text(fmt.Sprintf("   ❌ Failed: %d", summary.Failed))},
		{text(fmt.Sprintf("   📦 Found: %d", summary.TotalFound))},
		{text(fmt.Sprintf("   💾 Persisted: %d", summary.TotalPersisted))},
		{},
		{text("📋 Jobs:")},
	}

	for _, r := range report.Results {
		line := []Span{text(fmt.Sprintf("   %s ", glyph(r)))}
		if r.Target != "" {
			line = append(line, link(r.Name, r.Target))
		} else {
			line = append(line, text(r.Name))
		}
		line = append(line, text(": "+jobDetail(r, opts.PostErrorLimit)))
		lines = append(lines, line)
	}

	return PostMessage{
		MsgType: "post",
		Content: PostContent{Post: PostLocales{ZhCN: PostBody{
			Title:   fmt.Sprintf("🤖 %s - %s", opts.Title, report.EndedAt.In(opts.Location).Format("2006-01-02")),
			Content: lines,
		}}},
	}
}
