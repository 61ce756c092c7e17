package cache

import "strings"

// Namespace is the key prefix shared by every backend.
const Namespace = "assistant"

// Kind classifies cached data; each kind has its own freshness policy.
type Kind string

const (
	KindQuote      Kind = "quote"
	KindIndex      Kind = "index"
	KindValuation  Kind = "valuation"
	KindFinancials Kind = "financials"
	KindProfile    Kind = "profile"
	KindSearch     Kind = "search"
	KindNews       Kind = "news"
)

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// Key returns the cache key for code under kind, e.g. assistant:quote:sh600519.
func Key(kind Kind, code string) string {
	return formatKey(string(kind), code)
}

// SearchCode joins the parts of a search query into the code half of a
// KindSearch key, so Key(KindSearch, SearchCode("github", "ai", "7")) is
// assistant:search:github:ai:7.
func SearchCode(source string, parts ...string) string {
	values := []string{source}
	for _, part := range parts {
		if clean := strings.TrimSpace(part); clean != "" {
			values = append(values, strings.ToLower(clean))
		}
	}
	return strings.Join(values, ":")
}
