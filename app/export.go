package app

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/srouault/personal-ai-assistant/markdown"
	"github.com/srouault/personal-ai-assistant/msg"
)

var transcriptTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; }
.msg { margin: 1rem 0; padding: .5rem 1rem; border-radius: .5rem; max-width: 80%; }
.user { margin-left: auto; background: #e0f2fe; }
.user pre { white-space: pre-wrap; font: inherit; margin: 0; }
.assistant { margin-right: auto; background: #f3f4f6; }
.assistant pre { overflow-x: auto; padding: .5rem; }
{{.CSS}}
</style>
</head>
<body>
{{range .Messages}}<div class="msg {{.Role}}">{{if .Literal}}<pre>{{.Text}}</pre>{{else}}{{.HTML}}{{end}}</div>
{{end}}</body>
</html>
`))

type transcriptMessage struct {
	Role    string
	Literal bool
	Text    string
	HTML    template.HTML
}

// WriteTranscript renders history as a standalone HTML page. User text is
// escaped by the template; assistant HTML comes from the formatter's
// sanitized pipeline.
func WriteTranscript(w io.Writer, f *markdown.Formatter, history []msg.Message) error {
	var css strings.Builder
	if err := f.CSS(&css); err != nil {
		return fmt.Errorf("code css: %w", err)
	}
	data := struct {
		Title    string
		CSS      template.CSS
		Messages []transcriptMessage
	}{
		Title: "Conversation",
		CSS:   template.CSS(css.String()),
	}
	for _, m := range history {
		c := f.Format(m)
		data.Messages = append(data.Messages, transcriptMessage{
			Role:    m.Role.String(),
			Literal: c.Kind == markdown.KindText,
			Text:    c.Text,
			HTML:    template.HTML(c.HTML),
		})
	}
	return transcriptTmpl.Execute(w, data)
}

// exportTranscript writes history to a timestamped file in dir.
func exportTranscript(dir string, f *markdown.Formatter, history []msg.Message, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, "chat-"+now.Format("20060102-150405")+".html")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	if err := WriteTranscript(file, f, history); err != nil {
		file.Close()
		return "", err
	}
	return path, file.Close()
}
