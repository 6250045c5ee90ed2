package detection

import (
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
)

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z]*\\s*(.*?)```")

// sanitizeModelJSON pulls the JSON object out of a chat reply: code fences
// and surrounding prose are dropped, then comments and trailing commas are
// standardized away. Input hujson cannot parse is returned sliced but
// otherwise untouched, so the caller's decode error describes it.
func sanitizeModelJSON(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	raw = strings.TrimSpace(raw)

	std, err := hujson.Standardize([]byte(raw))
	if err != nil {
		return raw
	}
	return strings.TrimSpace(string(std))
}
