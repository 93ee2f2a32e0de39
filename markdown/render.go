// Package markdown formats conversation messages: user text stays literal,
// assistant text is rendered as markdown with highlighted code blocks, either
// as HTML or as styled ANSI output for the terminal.
package markdown

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/util"

	"github.com/srouault/personal-ai-assistant/msg"
)

// Kind tells how a Content value must be displayed.
type Kind int

const (
	KindText   Kind = iota // literal text, no markup interpretation
	KindMarkup             // rendered HTML
)

// Content is the formatted form of one message.
type Content struct {
	Kind Kind
	Text string
	HTML string
}

// String returns the literal text or the HTML, depending on Kind.
func (c Content) String() string {
	if c.Kind == KindText {
		return c.Text
	}
	return c.HTML
}

const defaultWrap = 100

// Formatter holds the parser and highlighter configuration. It is built once
// and only read afterwards; the glamour renderer cache is the sole mutable
// part and is guarded.
type Formatter struct {
	hl           Highlighter
	md           goldmark.Markdown
	policy       *bluemonday.Policy
	glamourStyle string
	wrap         int

	mu    sync.Mutex
	terms map[int]*glamour.TermRenderer
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithHighlighter replaces the chroma highlighter.
func WithHighlighter(h Highlighter) Option {
	return func(f *Formatter) { f.hl = h }
}

// WithGlamourStyle selects the glamour standard style ("dark", "light",
// "notty", "dracula", ...).
func WithGlamourStyle(name string) Option {
	return func(f *Formatter) { f.glamourStyle = name }
}

// WithWordWrap sets the widest line Terminal produces. Narrower widths
// passed to Terminal still apply.
func WithWordWrap(n int) Option {
	return func(f *Formatter) { f.wrap = n }
}

// New builds a Formatter. It fails only if glamour rejects the style.
func New(opts ...Option) (*Formatter, error) {
	f := &Formatter{
		glamourStyle: "dark",
		wrap:         defaultWrap,
		terms:        make(map[int]*glamour.TermRenderer),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.hl == nil {
		f.hl = NewChromaHighlighter("monokai", termenv.EnvColorProfile())
	}
	f.md = newMarkdown(f.hl)
	f.policy = newPolicy()
	if _, err := f.termRenderer(f.wrap); err != nil {
		return nil, fmt.Errorf("glamour style %q: %w", f.glamourStyle, err)
	}
	return f, nil
}

// Format converts a message into its display form.
func (f *Formatter) Format(m msg.Message) Content {
	switch m.Role {
	case msg.RoleAssistant:
		return Content{Kind: KindMarkup, HTML: f.HTML(m.Content)}
	default:
		return Content{Kind: KindText, Text: m.Content}
	}
}

// HTML renders markdown source to sanitized HTML.
func (f *Formatter) HTML(src string) string {
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(src), &buf); err != nil {
		slog.Debug("markdown convert failed", "err", err)
		return "<p>" + string(util.EscapeHTML([]byte(src))) + "</p>"
	}
	return f.policy.Sanitize(buf.String())
}

// CSS writes the stylesheet for highlighted code, when the highlighter has one.
func (f *Formatter) CSS(w io.Writer) error {
	type cssWriter interface{ CSS(io.Writer) error }
	if c, ok := f.hl.(cssWriter); ok {
		return c.CSS(w)
	}
	return nil
}

// Terminal renders a message as ANSI text wrapped at width.
func (f *Formatter) Terminal(m msg.Message, width int) string {
	if width <= 0 || (f.wrap > 0 && width > f.wrap) {
		width = f.wrap
	}
	if m.Role != msg.RoleAssistant {
		return wordwrap.String(m.Content, width)
	}

	var parts []string
	for _, seg := range splitFences(f.md, m.Content) {
		if seg.code {
			parts = append(parts, f.codeANSI(seg.text, seg.lang))
			continue
		}
		if strings.TrimSpace(seg.text) == "" {
			continue
		}
		parts = append(parts, f.prose(seg.text, width))
	}
	return strings.Join(parts, "\n\n")
}

var codeIndent = lipgloss.NewStyle().PaddingLeft(2)

func (f *Formatter) codeANSI(code, lang string) string {
	if f.hl.Supports(lang) {
		var buf bytes.Buffer
		err := f.hl.ANSI(&buf, code, lang)
		if err == nil {
			return codeIndent.Render(strings.TrimRight(buf.String(), "\n"))
		}
		slog.Debug("code block highlight failed", "lang", lang, "format", "ansi", "err", err)
	}
	return codeIndent.Render(code)
}

// prose renders a markdown segment with glamour, falling back to the raw
// segment if glamour fails.
func (f *Formatter) prose(src string, width int) string {
	r, err := f.termRenderer(width)
	if err != nil {
		return src
	}
	out, err := r.Render(src)
	if err != nil {
		slog.Debug("glamour render failed", "err", err)
		return src
	}
	// glamour pads with blank lines; trim for inline display.
	return strings.Trim(out, "\n")
}

func (f *Formatter) termRenderer(width int) (*glamour.TermRenderer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.terms[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(f.glamourStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	f.terms[width] = r
	return r, nil
}
