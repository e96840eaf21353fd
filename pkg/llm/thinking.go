package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches a <think>...</think> block that some reasoning
// models put before their answer.
var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

var thinkContentPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// ExtractThinking returns the content of the first <think> block, or "".
func ExtractThinking(response string) string {
	matches := thinkContentPattern.FindStringSubmatch(response)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// StripThinking removes reasoning blocks and returns the answer. An
// unterminated <think> block means the model ran out of tokens while
// reasoning, so nothing after it is an answer.
func StripThinking(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	if i := strings.Index(cleaned, "<think>"); i >= 0 {
		cleaned = cleaned[:i]
	}
	return strings.TrimSpace(cleaned)
}
