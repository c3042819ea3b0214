package websearch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Allowlist matches result hosts against trusted sites. A bare hostname
// also admits its subdomains. An empty Allowlist admits everything.
type Allowlist struct {
	patterns []string
	globs    []glob.Glob
}

func NewAllowlist(entries []string) (*Allowlist, error) {
	a := &Allowlist{}
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		patterns := []string{entry}
		if !strings.ContainsAny(entry, "*?[{") {
			patterns = append(patterns, "*."+entry)
		}
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("allowlist pattern %q: %w", entry, err)
			}
			a.globs = append(a.globs, g)
		}
		a.patterns = append(a.patterns, entry)
	}
	return a, nil
}

// Hosts returns the configured entries, used as provider side filters.
func (a *Allowlist) Hosts() []string {
	return a.patterns
}

func (a *Allowlist) Empty() bool {
	return len(a.globs) == 0
}

func (a *Allowlist) Allows(rawURL string) bool {
	if a.Empty() {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, g := range a.globs {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Filter keeps allowed results in order.
func (a *Allowlist) Filter(results []Result) []Result {
	if a.Empty() {
		return results
	}
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if a.Allows(r.URL) {
			kept = append(kept, r)
		}
	}
	return kept
}
