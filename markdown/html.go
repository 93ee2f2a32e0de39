package markdown

import (
	"bytes"
	"log/slog"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// blockRenderer overrides the goldmark HTML renderer for fenced code and raw
// HTML. Code goes through the highlighter; raw HTML is shown as text.
type blockRenderer struct {
	hl Highlighter
}

func (r *blockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
}

func (r *blockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	lang := string(n.Language(source))
	code := string(linesOf(source, n.Lines()))
	_, _ = w.WriteString(highlightHTML(r.hl, code, lang))
	_ = w.WriteByte('\n')
	return ast.WalkSkipChildren, nil
}

func (r *blockRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.HTMLBlock)
	raw := linesOf(source, n.Lines())
	if n.HasClosure() {
		raw = append(raw, n.ClosureLine.Value(source)...)
	}
	_, _ = w.WriteString("<p>")
	_, _ = w.Write(util.EscapeHTML(bytes.TrimRight(raw, "\n")))
	_, _ = w.WriteString("</p>\n")
	return ast.WalkSkipChildren, nil
}

func (r *blockRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}

// highlightHTML renders one code block. Untagged, unknown, and failing
// blocks come out as escaped plain text; only this block is affected.
func highlightHTML(hl Highlighter, code, lang string) string {
	if hl != nil && hl.Supports(lang) {
		var buf bytes.Buffer
		err := hl.HTML(&buf, code, lang)
		if err == nil {
			return buf.String()
		}
		slog.Debug("code block highlight failed", "lang", lang, "format", "html", "err", err)
	}
	return plainHTML(code, lang)
}

func plainHTML(code, lang string) string {
	var buf bytes.Buffer
	buf.WriteString("<pre><code")
	if lang != "" {
		buf.WriteString(` class="language-`)
		buf.Write(util.EscapeHTML([]byte(lang)))
		buf.WriteString(`"`)
	}
	buf.WriteString(">")
	buf.Write(util.EscapeHTML([]byte(code)))
	buf.WriteString("</code></pre>")
	return buf.String()
}

func linesOf(source []byte, lines *text.Segments) []byte {
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.Bytes()
}

func newMarkdown(hl Highlighter) goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(
				util.Prioritized(&blockRenderer{hl: hl}, 100),
			),
		),
	)
}

var classPattern = regexp.MustCompile(`^[\w -]+$`)

// newPolicy is the trusted pass over generated HTML. It keeps the chroma
// class attributes the stylesheet targets.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("span", "pre", "code", "div")
	p.AllowAttrs("class").Matching(classPattern).OnElements("span", "pre", "code", "div")
	return p
}
