package config

import (
	"slices"
	"strings"
)

// Resolve returns the configured module IDs in load order. Providers
// load first so "llm.client" is registered before its consumers
// provision, then memory backends, then everything else. Within a
// group the order is lexicographic so loading stays deterministic.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if ra, rb := loadRank(a), loadRank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	return ids
}

func loadRank(id string) int {
	switch {
	case strings.HasPrefix(id, "provider."):
		return 0
	case strings.HasPrefix(id, "memory."):
		return 1
	default:
		return 2
	}
}
