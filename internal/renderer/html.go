package renderer

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>IT Trends Report</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 50em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.8em; text-align: left; }
th { background: #eee; }
blockquote { color: #a00; border-left: 3px solid #a00; padding-left: 1em; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`

// renderHTML converts the canonical markdown body to a standalone HTML page
func renderHTML(markdown string) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(htmlHeader)
	out.Write(body.Bytes())
	out.WriteString(htmlFooter)
	return out.Bytes(), nil
}
