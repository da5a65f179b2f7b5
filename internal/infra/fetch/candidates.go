package fetch

import "strings"

// CandidateConfig is the static description of backend deployments.
type CandidateConfig struct {
	// Primary is the preferred base URL.
	Primary string
	// Fallbacks are known-good alternates, in preference order.
	Fallbacks []string
	// Broken lists base URLs known to be dead.
	Broken []string
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// BuildCandidates returns the ordered, de-duplicated candidate list.
//
// Broken fallbacks are dropped. A broken primary is moved behind the
// known-good fallbacks but kept as a last resort.
func BuildCandidates(cfg CandidateConfig) []string {
	broken := make(map[string]bool, len(cfg.Broken))
	for _, b := range cfg.Broken {
		if n := normalizeURL(b); n != "" {
			broken[n] = true
		}
	}

	seen := make(map[string]bool)
	var good []string
	for _, f := range cfg.Fallbacks {
		n := normalizeURL(f)
		if n == "" || seen[n] || broken[n] {
			continue
		}
		seen[n] = true
		good = append(good, n)
	}

	primary := normalizeURL(cfg.Primary)
	if primary == "" {
		return good
	}

	out := make([]string, 0, len(good)+1)
	if broken[primary] && len(good) > 0 {
		for _, g := range good {
			if g != primary {
				out = append(out, g)
			}
		}
		return append(out, primary)
	}

	out = append(out, primary)
	for _, g := range good {
		if g != primary {
			out = append(out, g)
		}
	}
	return out
}
