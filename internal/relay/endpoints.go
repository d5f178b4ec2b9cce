package relay

import (
	"regexp"
	"strings"
)

var webhookPattern = regexp.MustCompile(`(?i)/webhook(/|$)`)

const chatRoute = "/api/chat"

// IsWebhookBase reports whether base points at a webhook-style flow.
func IsWebhookBase(base string) bool {
	return webhookPattern.MatchString(base)
}

// CandidateEndpoints lists the URLs to try, in order, for a configured base.
// A webhook base is tried directly first, then the conventional chat route on
// the same host. Any other base tries the chat route first, then itself.
func CandidateEndpoints(base string) []string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil
	}

	var candidates []string
	if loc := webhookPattern.FindStringIndex(base); loc != nil {
		candidates = append(candidates, base, base[:loc[0]]+chatRoute)
	} else if strings.HasSuffix(strings.ToLower(base), chatRoute) {
		candidates = append(candidates, base)
	} else {
		candidates = append(candidates, base+chatRoute, base)
	}

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
