package crawl

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// DefaultTrackingParams are query parameters stripped during canonicalization.
// Anything prefixed "utm_" is stripped regardless of this list.
var DefaultTrackingParams = []string{
	"gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "ref", "source", "igshid",
}

// Canonicalizer normalizes URLs into the stable identity form used for
// deduplication. Two URLs differing only in tracking noise must canonicalize
// to the same string.
type Canonicalizer struct {
	denied map[string]struct{}
}

// NewCanonicalizer builds a Canonicalizer with the given tracking-parameter
// deny list. An empty list falls back to DefaultTrackingParams.
func NewCanonicalizer(trackingParams []string) *Canonicalizer {
	if len(trackingParams) == 0 {
		trackingParams = DefaultTrackingParams
	}
	denied := make(map[string]struct{}, len(trackingParams))
	for _, p := range trackingParams {
		denied[strings.ToLower(p)] = struct{}{}
	}
	return &Canonicalizer{denied: denied}
}

// Canonicalize lowercases scheme and host, removes default ports, strips the
// fragment and tracking parameters, and sorts the surviving query.
func (c *Canonicalizer) Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if c.isTracking(key) {
			q.Del(key)
		}
	}
	// Encode sorts keys, so parameter order never affects identity.
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Canonicalizer) isTracking(param string) bool {
	p := strings.ToLower(param)
	if strings.HasPrefix(p, "utm_") {
		return true
	}
	_, ok := c.denied[p]
	return ok
}

// RecordID derives the job record primary key from a canonical URL.
func RecordID(canonicalURL string) string {
	sum := sha1.Sum([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// Domain extracts the lowercased host (without port) from a URL, returning
// "" when the URL cannot be parsed.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
