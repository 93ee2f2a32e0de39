package markdown

import (
	"errors"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

// ErrUnsupportedLanguage is returned when no grammar matches a fence tag.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Highlighter turns source code into styled token markup.
type Highlighter interface {
	// Supports reports whether lang names a known grammar.
	Supports(lang string) bool
	// HTML writes class-annotated HTML spans for code.
	HTML(w io.Writer, code, lang string) error
	// ANSI writes terminal escape sequences for code.
	ANSI(w io.Writer, code, lang string) error
}

// ChromaHighlighter is the chroma-backed Highlighter.
type ChromaHighlighter struct {
	style *chroma.Style
	html  *chromahtml.Formatter
	term  chroma.Formatter
}

// NewChromaHighlighter builds a highlighter using the named chroma style.
// The terminal formatter is picked from the colour profile.
func NewChromaHighlighter(styleName string, profile termenv.Profile) *ChromaHighlighter {
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}
	return &ChromaHighlighter{
		style: style,
		html:  chromahtml.New(chromahtml.WithClasses(true)),
		term:  terminalFormatter(profile),
	}
}

func terminalFormatter(p termenv.Profile) chroma.Formatter {
	name := "noop"
	switch p {
	case termenv.TrueColor:
		name = "terminal16m"
	case termenv.ANSI256:
		name = "terminal256"
	case termenv.ANSI:
		name = "terminal16"
	}
	f := formatters.Get(name)
	if f == nil {
		f = formatters.Fallback
	}
	return f
}

// Supports reports whether chroma has a lexer registered for lang.
func (h *ChromaHighlighter) Supports(lang string) bool {
	return lexerFor(lang) != nil
}

// HTML writes highlighted HTML for code.
func (h *ChromaHighlighter) HTML(w io.Writer, code, lang string) error {
	it, err := h.tokenise(code, lang)
	if err != nil {
		return err
	}
	return h.html.Format(w, h.style, it)
}

// ANSI writes highlighted terminal output for code.
func (h *ChromaHighlighter) ANSI(w io.Writer, code, lang string) error {
	it, err := h.tokenise(code, lang)
	if err != nil {
		return err
	}
	return h.term.Format(w, h.style, it)
}

// CSS writes the stylesheet matching the classes emitted by HTML.
func (h *ChromaHighlighter) CSS(w io.Writer) error {
	return h.html.WriteCSS(w, h.style)
}

func (h *ChromaHighlighter) tokenise(code, lang string) (chroma.Iterator, error) {
	lexer := lexerFor(lang)
	if lexer == nil {
		return nil, ErrUnsupportedLanguage
	}
	return chroma.Coalesce(lexer).Tokenise(nil, code)
}

// lexerFor only matches explicit tags; content sniffing would highlight
// blocks the author left untagged.
func lexerFor(lang string) chroma.Lexer {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return nil
	}
	return lexers.Get(lang)
}
