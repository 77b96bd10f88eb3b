package devtools

import (
	"fmt"
	"strings"
)

// FrontendOrigin hosts the DevTools frontend bundles, one per browser build.
const FrontendOrigin = "https://chrome-devtools-frontend.appspot.com"

// RewriteOptions describes how clients reach this bridge.
type RewriteOptions struct {
	ExternalHost string
	TargetPort   int
	// InsecureWebSocket selects ws instead of wss for the frontend's
	// connection back to the bridge.
	InsecureWebSocket bool
}

// Scheme returns the WebSocket scheme the frontend should use.
func (o RewriteOptions) Scheme() string {
	if o.InsecureWebSocket {
		return "ws"
	}
	return "wss"
}

// BuildDebuggerURL points the frontend path's embedded WebSocket address at
// the external host and wraps it in the hosted frontend's serve_file URL.
// The result format is fixed by the frontend host:
//
//	https://chrome-devtools-frontend.appspot.com/serve_file/@<hash>/<path>&remoteFrontend=true
func BuildDebuggerURL(t Target, opts RewriteOptions) (string, error) {
	if t.BuildHash == "" {
		return "", &RewriteError{Reason: "empty build hash"}
	}
	if opts.ExternalHost == "" {
		return "", &RewriteError{Reason: "external host is not configured"}
	}

	local := fmt.Sprintf("ws=localhost:%d", opts.TargetPort)
	if !strings.Contains(t.FrontendPath, local) {
		return "", &RewriteError{Reason: fmt.Sprintf("frontend path %q does not contain %q", t.FrontendPath, local)}
	}
	path := strings.Replace(t.FrontendPath, local, opts.Scheme()+"="+opts.ExternalHost, 1)

	return fmt.Sprintf("%s/serve_file/@%s/%s&remoteFrontend=true", FrontendOrigin, t.BuildHash, path), nil
}
