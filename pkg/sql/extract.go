package sql

import (
	"regexp"
	"strings"
)

var (
	sentenceTokenPattern = regexp.MustCompile(`(?i)\s*</?s>\s*`)
	thinkBlockPattern    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	chatPrefixPattern    = regexp.MustCompile(`(?im)^\s*(?:Here is the SQL query:|The SQL query to answer the question is:)\s*`)
	sqlFencePattern      = regexp.MustCompile("(?is)```sql\\s+(.*?)```")
	genericFencePattern  = regexp.MustCompile("(?s)```(?:\\w+)?[ \\t]*\\r?\\n(.*?)```")
	sqlLabelPattern      = regexp.MustCompile(`(?i)\bSQL:`)
	strayFencePattern    = regexp.MustCompile("(?i)```(?:sql)?")
	leadingVerbPattern   = regexp.MustCompile(`(?i)^(?:` + strings.Join(sqlVerbs, "|") + `)\b`)
)

// Extract isolates the SQL statement in a model response. It returns "" when
// nothing that starts with a SQL verb can be recovered.
//
// Sources are tried strictest first: a ```sql fence, a generic fence whose
// body starts with a verb, the text after the last "SQL:" label, the whole
// cleaned response, and finally the response treated as the tail of a SELECT.
func Extract(response string) string {
	cleaned := cleanResponse(response)
	if cleaned == "" {
		return ""
	}
	return finishExtraction(pickCandidate(cleaned))
}

func cleanResponse(response string) string {
	s := sentenceTokenPattern.ReplaceAllString(response, " ")
	s = thinkBlockPattern.ReplaceAllString(s, "")
	// Some models drop the opening tag and only close the reasoning block.
	if i := strings.LastIndex(strings.ToLower(s), "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	s = chatPrefixPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func pickCandidate(cleaned string) string {
	if m := sqlFencePattern.FindStringSubmatch(cleaned); m != nil {
		return m[1]
	}

	for _, m := range genericFencePattern.FindAllStringSubmatch(cleaned, -1) {
		if body := strings.TrimSpace(m[1]); StartsWithVerb(body) {
			return body
		}
	}

	// Models sometimes echo the few-shot examples before answering; only the
	// final label is theirs.
	if locs := sqlLabelPattern.FindAllStringIndex(cleaned, -1); len(locs) > 0 {
		tail := strings.TrimSpace(cleaned[locs[len(locs)-1][1]:])
		if tail != "" {
			return firstParagraph(tail)
		}
	}

	if StartsWithVerb(cleaned) {
		return cleaned
	}

	return "SELECT " + cleaned
}

// firstParagraph cuts trailing prose the model appended after a blank line.
func firstParagraph(s string) string {
	if i := strings.Index(s, "\n\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func finishExtraction(candidate string) string {
	s := strayFencePattern.ReplaceAllString(candidate, "")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(strings.TrimSuffix(s, ";"), " \t\r\n")
	if !StartsWithVerb(s) {
		return ""
	}
	return s
}

// StartsWithVerb reports whether text begins with a statement verb such as
// SELECT, WITH or INSERT.
func StartsWithVerb(text string) bool {
	return leadingVerbPattern.MatchString(strings.TrimSpace(text))
}
