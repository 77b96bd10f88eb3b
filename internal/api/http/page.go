package http

import (
	"bytes"
	"fmt"
	"html/template"
)

var pageTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>DevTools</title>
<style>
html, body { margin: 0; height: 100%; overflow: hidden; }
iframe { border: 0; width: 100%; height: 100%; }
</style>
</head>
<body>
<iframe id="devtools" src="{{.DebuggerURL}}" allow="clipboard-read; clipboard-write"></iframe>
</body>
</html>
`))

// RenderPage renders the landing page embedding debuggerURL in a
// full-window frame.
func RenderPage(debuggerURL string) ([]byte, error) {
	var buf bytes.Buffer
	data := struct{ DebuggerURL string }{DebuggerURL: debuggerURL}
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render landing page: %w", err)
	}
	return buf.Bytes(), nil
}
