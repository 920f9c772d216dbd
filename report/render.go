package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/term"
)

const terminalWordWrap = 100

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts markdown to an HTML fragment. GFM tables are enabled.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// Page wraps the rendered markdown in a minimal standalone HTML document.
func Page(title, md string) (string, error) {
	body, err := HTML(md)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: right; }
td:nth-child(2), th:nth-child(2) { text-align: left; }
</style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body), nil
}

// Terminal writes md to w. When w is an interactive terminal the markdown
// is styled with glamour; otherwise it is written unchanged.
func Terminal(w io.Writer, md string) error {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		_, err := io.WriteString(w, md)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWordWrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render markdown for terminal: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
