package recovery

import "strings"

// Category groups errors by their likely cause.
type Category string

// Error categories, in classification priority order.
const (
	CategoryNetwork        Category = "network"
	CategoryTimeout        Category = "timeout"
	CategoryNotFound       Category = "not_found"
	CategoryServerError    Category = "server_error"
	CategoryAuthentication Category = "authentication"
	CategoryRateLimit      Category = "rate_limit"
	CategoryMemory         Category = "memory"
	CategoryParsing        Category = "parsing"
	CategoryExecution      Category = "execution"
	CategoryUnknown        Category = "unknown"
)

// Severity ranks how serious a classified error is.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// categoryRule pairs a category with the substrings that select it and
// the severity it implies.
type categoryRule struct {
	category Category
	severity Severity
	keywords []string
}

// categoryRules is evaluated in order; the first keyword match wins.
// Matching is case-insensitive substring search on the error message.
var categoryRules = []categoryRule{
	{CategoryNetwork, SeverityHigh, []string{"connection refused", "econnrefused", "no such host", "network", "dial tcp", "socket", "broken pipe", "connection reset"}},
	{CategoryTimeout, SeverityMedium, []string{"timeout", "timed out", "deadline exceeded"}},
	{CategoryNotFound, SeverityLow, []string{"not found", "404", "no such file", "does not exist"}},
	{CategoryServerError, SeverityHigh, []string{"500", "502", "503", "internal server error", "bad gateway", "service unavailable"}},
	{CategoryAuthentication, SeverityCritical, []string{"unauthorized", "401", "403", "forbidden", "authentication", "invalid credentials"}},
	{CategoryRateLimit, SeverityMedium, []string{"rate limit", "429", "too many requests"}},
	{CategoryMemory, SeverityCritical, []string{"out of memory", "cannot allocate", "oom"}},
	{CategoryParsing, SeverityLow, []string{"parse", "unmarshal", "invalid character", "unexpected token", "malformed"}},
	{CategoryExecution, SeverityMedium, []string{"exit status", "command failed", "exec:", "executable file not found"}},
}

// Classify assigns a category and severity to an error by matching its
// message text against the rule table. Unmatched errors are unknown
// with medium severity.
func Classify(err error) (Category, Severity) {
	if err == nil {
		return CategoryUnknown, SeverityLow
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				return rule.category, rule.severity
			}
		}
	}
	return CategoryUnknown, SeverityMedium
}
