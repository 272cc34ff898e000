package agent

import "strings"

// Canned degraded-mode responses, used when the LLM backend is
// unreachable or demo mode is forced.
const (
	offlineFallback = "I'm currently offline and couldn't process your request. " +
		"The language model backend is unreachable; please try again in a moment."

	demoGeneric = "[demo mode] The language model backend is not available, so this " +
		"is a canned response. Your message was received and stored; full answers " +
		"resume when the backend is back."

	demoCoding = "[demo mode] I would normally generate code for that request. " +
		"Start the LLM backend to get real code generation."

	demoQuestion = "[demo mode] I would normally answer that question with the " +
		"language model. Start the backend to get a real answer."
)

// demoResponse picks a canned demo-mode text for the message.
func demoResponse(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "code") || strings.Contains(lower, "implement"):
		return demoCoding
	case strings.Contains(message, "?"):
		return demoQuestion
	default:
		return demoGeneric
	}
}
