package devtools

// PageDescriptor is one entry of the target's /json/list resource.
type PageDescriptor struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the target's /json/version resource.
type VersionInfo struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
	UserAgent       string `json:"User-Agent"`
	V8Version       string `json:"V8-Version"`
	// WebKitVersion carries the build hash, e.g. "537.36 (@cfede9db1d154de0468cb0538479f34c0755a0f4)".
	WebKitVersion string `json:"WebKit-Version"`
}

// Target is the outcome of a successful discovery.
type Target struct {
	BuildHash string
	// FrontendPath is the selected page's frontend URL without the leading
	// "/devtools/", e.g. "inspector.html?ws=localhost:9222/devtools/page/ABC".
	FrontendPath string
}
