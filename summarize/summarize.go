// Package summarize turns a channel's feed items into a short block of display
// text, either through a chat-completions model or offline from the headlines.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"newsboard/content"
	"newsboard/internal/openaiutil"
)

// DefaultPrompt is the user prompt template. {channel}, {budget} and {items}
// are substituted.
const DefaultPrompt = "Below are the latest headlines and snippets from {channel}.\n" +
	"Summarize them as short bullet points, one per line, within {budget} characters in total.\n\n" +
	"{items}"

// Completer is the remote call the LLM summarizer depends on.
type Completer interface {
	Generate(ctx context.Context, userContent string) (openaiutil.Result, error)
}

// Config tunes the summarizers.
type Config struct {
	CharBudget int
	Prompt     string
	// Timeout bounds one remote call; zero waits indefinitely.
	Timeout time.Duration
}

// LLM summarizes through a chat-completions model.
type LLM struct {
	client Completer
	cfg    Config
	logger *log.Logger
}

func NewLLM(client Completer, cfg Config, logger *log.Logger) *LLM {
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &LLM{client: client, cfg: cfg, logger: logger}
}

// Transform returns the model's summary clamped to the character budget.
func (s *LLM) Transform(ctx context.Context, channel string, items []content.Item) (string, error) {
	if len(items) == 0 {
		return "", &content.TransformError{Channel: channel, Err: content.ErrNoItems}
	}
	if s.client == nil {
		return "", &content.TransformError{Channel: channel, Err: errors.New("no completion client")}
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	res, err := s.client.Generate(ctx, BuildPrompt(s.cfg.Prompt, channel, s.cfg.CharBudget, items))
	if err != nil {
		return "", &content.TransformError{Channel: channel, Err: err}
	}
	if res.PromptTokens > 0 || res.CompletionTokens > 0 {
		s.logf("Summarize: %s used %d prompt + %d completion tokens", channel, res.PromptTokens, res.CompletionTokens)
	}
	text := Clamp(res.Text, s.cfg.CharBudget)
	if strings.TrimSpace(text) == "" {
		return "", &content.TransformError{Channel: channel, Err: content.ErrEmptyOutput}
	}
	return text, nil
}

func (s *LLM) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

// Headlines is the offline transformer: one line per item title.
type Headlines struct {
	CharBudget int
}

func (h Headlines) Transform(ctx context.Context, channel string, items []content.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &content.TransformError{Channel: channel, Err: err}
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = strings.TrimSpace(it.Snippet)
		}
		if title == "" {
			continue
		}
		lines = append(lines, "- "+title)
	}
	text := Clamp(strings.Join(lines, "\n"), h.CharBudget)
	if text == "" {
		return "", &content.TransformError{Channel: channel, Err: content.ErrEmptyOutput}
	}
	return text, nil
}

// BuildPrompt fills the template with the channel name, the budget, and one
// "- title: snippet" line per item.
func BuildPrompt(template, channel string, budget int, items []content.Item) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Line())
	}
	budgetText := "a few hundred"
	if budget > 0 {
		budgetText = fmt.Sprintf("%d", budget)
	}
	r := strings.NewReplacer(
		"{channel}", channel,
		"{budget}", budgetText,
		"{items}", strings.Join(lines, "\n"),
	)
	return r.Replace(template)
}

// Clamp limits text to budget characters, keeping whole lines where possible.
// The line that crosses the budget is cut and marked with "...". A budget of
// zero or less leaves text unchanged.
func Clamp(text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}
	var out []string
	used := 0
	for _, line := range content.NormalizeLines(text) {
		sep := 0
		if len(out) > 0 {
			sep = 1
		}
		n := utf8.RuneCountInString(line)
		if used+sep+n <= budget {
			out = append(out, line)
			used += sep + n
			continue
		}
		room := budget - used - sep
		if room > 3 {
			out = append(out, truncateRunes(line, room-3)+"...")
		}
		break
	}
	return strings.Join(out, "\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimRight(s[:pos], " ")
		}
		i++
	}
	return s
}
