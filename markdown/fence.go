package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// segment is a run of prose or one fenced code block.
type segment struct {
	code bool
	lang string
	text string
}

// splitFences cuts markdown into prose and the fenced code blocks at the top
// level of the document, using the same parser as the HTML path. Fences
// nested in lists or quotes stay inside their prose segment. An unclosed
// fence runs to the end of the input so a code block that is still streaming
// renders as code.
func splitFences(md goldmark.Markdown, src string) []segment {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var (
		out  []segment
		prev int
	)
	prose := func(end int) {
		if s := strings.Trim(src[prev:end], "\n"); s != "" {
			out = append(out, segment{text: s})
		}
	}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		fc, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		start, end, ok := fenceBounds(source, fc)
		if !ok {
			continue
		}
		prose(start)
		out = append(out, segment{
			code: true,
			lang: string(fc.Language(source)),
			text: strings.TrimSuffix(string(linesOf(source, fc.Lines())), "\n"),
		})
		prev = end
	}
	prose(len(src))
	return out
}

// fenceBounds returns the byte range of a top-level fenced block, fences
// included. goldmark only records the content lines, so the opening fence is
// the line before the first one and the closing fence, if any, the line after
// the last. A block with neither content nor info string cannot be located
// and is left to the prose renderer.
func fenceBounds(src []byte, n *ast.FencedCodeBlock) (int, int, bool) {
	var start, end int
	switch lines := n.Lines(); {
	case lines.Len() > 0:
		first := lineStart(src, lines.At(0).Start)
		if first == 0 {
			return 0, 0, false
		}
		start = lineStart(src, first-1)
		end = lines.At(lines.Len() - 1).Stop
	case n.Info != nil:
		start = lineStart(src, n.Info.Segment.Start)
		end = lineEnd(src, n.Info.Segment.Stop)
	default:
		return 0, 0, false
	}
	// At the top level a fenced block only ends at its closing fence or at
	// the end of the input.
	if end < len(src) {
		end = lineEnd(src, end)
	}
	return start, end, true
}

// lineStart is the offset of the first byte of the line holding pos.
func lineStart(src []byte, pos int) int {
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

// lineEnd is the offset just past the newline ending the line holding pos.
func lineEnd(src []byte, pos int) int {
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}
