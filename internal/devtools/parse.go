package devtools

import (
	"regexp"
	"strings"
)

const (
	pageType       = "page"
	blankURL       = "about:blank"
	frontendPrefix = "/devtools/"
)

var buildHashPattern = regexp.MustCompile(`\s\(@([0-9a-f]{5,40})`)

// ParseBuildHash extracts the hex build hash that follows " (@" in a
// version string.
func ParseBuildHash(version string) (string, error) {
	m := buildHashPattern.FindStringSubmatch(version)
	if m == nil {
		return "", &ParseError{Input: version}
	}
	return m[1], nil
}

// SelectPage returns the frontend path of the first real page, in the order
// the target listed them. Entries that are not pages or still show
// about:blank are skipped.
func SelectPage(pages []PageDescriptor) (string, error) {
	for _, p := range pages {
		if p.Type == pageType && p.URL != blankURL {
			return strings.TrimPrefix(p.DevtoolsFrontendURL, frontendPrefix), nil
		}
	}
	return "", ErrPageNotReady
}
