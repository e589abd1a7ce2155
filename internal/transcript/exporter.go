// Package transcript renders a channel's message history into a static HTML
// document.
package transcript

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/gateway"
)

const (
	pageSize           = 100
	defaultMaxMessages = 5000
	contentType        = "text/html; charset=utf-8"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return markdown
}

// Config tunes the exporter.
type Config struct {
	Footer      string
	MaxMessages int
}

// Exporter implements gateway.TranscriptExporter on top of a Gateway.
type Exporter struct {
	gw     gateway.Gateway
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter builds an exporter reading history through gw.
func NewExporter(gw gateway.Gateway, cfg Config, logger *zap.Logger) *Exporter {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = defaultMaxMessages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{gw: gw, cfg: cfg, logger: logger, now: time.Now}
}

// Export fetches the channel history oldest-first and renders it. Returns a nil
// artifact when the channel has no messages.
func (e *Exporter) Export(ctx context.Context, channelID string) (*gateway.Artifact, error) {
	ch, err := e.gw.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	msgs, err := e.history(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	now := e.now()
	body, err := e.render(ch, msgs, now)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("transcript rendered",
		zap.String("channel_id", channelID),
		zap.Int("messages", len(msgs)),
		zap.Int("bytes", len(body)))
	return &gateway.Artifact{
		File: gateway.File{
			Name:        fmt.Sprintf("transcript-%s-%d.html", ch.Name, now.UnixMilli()),
			ContentType: contentType,
			Data:        body,
		},
		MessageCount: len(msgs),
	}, nil
}

func (e *Exporter) history(ctx context.Context, channelID string) ([]gateway.StoredMessage, error) {
	var (
		all    []gateway.StoredMessage
		before string
	)
	for len(all) < e.cfg.MaxMessages {
		limit := pageSize
		if rest := e.cfg.MaxMessages - len(all); rest < limit {
			limit = rest
		}
		page, err := e.gw.FetchMessages(ctx, channelID, before, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < limit {
			break
		}
		before = page[len(page)-1].ID
	}
	// pages arrive newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

type renderedMessage struct {
	Author    string
	Bot       bool
	Timestamp string
	Body      template.HTML
	Embeds    []gateway.Embed
	Files     []gateway.Attachment
}

type page struct {
	Channel     string
	GeneratedAt string
	Count       int
	Footer      string
	Messages    []renderedMessage
}

func (e *Exporter) render(ch gateway.Channel, msgs []gateway.StoredMessage, now time.Time) ([]byte, error) {
	p := page{
		Channel:     ch.Name,
		GeneratedAt: now.UTC().Format(time.RFC1123),
		Count:       len(msgs),
		Footer:      e.cfg.Footer,
		Messages:    make([]renderedMessage, 0, len(msgs)),
	}
	md := markdownRenderer()
	for _, m := range msgs {
		var buf bytes.Buffer
		if err := md.Convert([]byte(m.Content), &buf); err != nil {
			return nil, fmt.Errorf("render message %s: %w", m.ID, err)
		}
		author := m.AuthorName
		if author == "" {
			author = m.AuthorID
		}
		p.Messages = append(p.Messages, renderedMessage{
			Author:    author,
			Bot:       m.AuthorBot,
			Timestamp: m.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			// goldmark escapes raw HTML unless WithUnsafe is set
			Body:   template.HTML(buf.String()),
			Embeds: m.Embeds,
			Files:  m.Attachments,
		})
	}
	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, p); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

var pageTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>#{{.Channel}}</title>
<style>
body{background:#313338;color:#dbdee1;font-family:sans-serif;margin:0;padding:16px}
header{border-bottom:1px solid #4e5058;margin-bottom:12px;padding-bottom:8px}
.msg{padding:6px 0}
.author{font-weight:600;color:#f2f3f5}
.bot{background:#5865f2;border-radius:3px;color:#fff;font-size:10px;margin-left:4px;padding:1px 4px}
.ts{color:#949ba4;font-size:12px;margin-left:6px}
.embed{border-left:4px solid #5865f2;background:#2b2d31;margin:4px 0;padding:6px 10px}
footer{border-top:1px solid #4e5058;color:#949ba4;font-size:12px;margin-top:12px;padding-top:8px}
</style>
</head>
<body>
<header><h1>#{{.Channel}}</h1><div>{{.Count}} messages, exported {{.GeneratedAt}}</div></header>
{{range .Messages}}<div class="msg">
<span class="author">{{.Author}}</span>{{if .Bot}}<span class="bot">BOT</span>{{end}}<span class="ts">{{.Timestamp}}</span>
<div class="body">{{.Body}}</div>
{{range .Embeds}}<div class="embed">{{if .Title}}<strong>{{.Title}}</strong><br>{{end}}{{.Description}}{{range .Fields}}<div><strong>{{.Name}}</strong>: {{.Value}}</div>{{end}}</div>
{{end}}{{range .Files}}<div class="file"><a href="{{.URL}}">{{.Name}}</a></div>
{{end}}</div>
{{end}}{{if .Footer}}<footer>{{.Footer}}</footer>{{end}}
</body>
</html>
`))

var _ gateway.TranscriptExporter = (*Exporter)(nil)
