/*
Package devtools locates a debuggable page on a browser's remote debugging
port and turns it into a URL an external client can open.

# Discovery

Client.Discover fetches /json/list and /json/version concurrently, extracts
the build hash from the WebKit-Version string and picks the first entry of
type "page" that is not about:blank. Only ErrPageNotReady is retried; a
TransportError or ParseError fails the call at once.

	client := devtools.NewClient(devtools.ClientConfig{
		Host:    "localhost",
		Port:    9222,
		Timeout: 5 * time.Second,
	}, logger)
	target, err := client.Discover(ctx)

# Rewriting

BuildDebuggerURL swaps the embedded ws=localhost:<port> address for the
bridge's external host and wraps the path in the hosted frontend URL:

	https://chrome-devtools-frontend.appspot.com/serve_file/@<hash>/<path>&remoteFrontend=true

The WebSocket scheme is wss unless RewriteOptions.InsecureWebSocket is set.
*/
package devtools
