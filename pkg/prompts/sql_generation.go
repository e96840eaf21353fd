package prompts

import (
	"fmt"
	"strings"
)

// NegativeExample is SQL that was rejected, with the reason.
type NegativeExample struct {
	Question string
	SQL      string
	Reason   string
}

// SQLPromptInput is everything the user prompt for one attempt needs.
type SQLPromptInput struct {
	Schema   string
	Accepted []Example
	Rejected []NegativeExample
	Question string

	// PreviousSQL and PreviousError are set on retries.
	PreviousSQL   string
	PreviousError string
}

// BuildSQLSystemPrompt describes the output format and the domain rules.
func BuildSQLSystemPrompt(rules *Rules) string {
	if rules == nil {
		rules = DefaultRules()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s SQL expert.\n", rules.Dialect)
	b.WriteString("Based on the schema you are given, write a SQL query to answer the user's request.\n")
	b.WriteString("Only return the SQL query, and nothing else. Do not add any explanations or text.\n")

	if len(rules.Rules) > 0 {
		b.WriteString("\nRules:\n")
		for _, r := range rules.Rules {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(r))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildSQLUserPrompt renders the schema, the examples and the question.
// Seed examples from rules come before learned ones.
func BuildSQLUserPrompt(rules *Rules, in SQLPromptInput) string {
	if rules == nil {
		rules = DefaultRules()
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Schema))
	b.WriteString("\n\n")

	examples := append(append([]Example(nil), rules.Examples...), in.Accepted...)
	for _, ex := range examples {
		fmt.Fprintf(&b, "User's request: %s\nSQL: %s\n\n", oneLine(ex.Question), oneLine(ex.SQL))
	}

	if len(in.Rejected) > 0 {
		b.WriteString("These queries were rejected before. Do not repeat their mistakes:\n\n")
		for _, ex := range in.Rejected {
			fmt.Fprintf(&b, "User's request: %s\nRejected SQL: %s\nReason: %s\n\n",
				oneLine(ex.Question), oneLine(ex.SQL), oneLine(ex.Reason))
		}
	}

	fmt.Fprintf(&b, "User's request: %s\n", strings.TrimSpace(in.Question))
	if in.PreviousSQL != "" || in.PreviousError != "" {
		b.WriteString("\nYour previous SQL for this request failed validation.\n")
		fmt.Fprintf(&b, "Previous SQL: %s\n", oneLine(in.PreviousSQL))
		fmt.Fprintf(&b, "Error: %s\n", oneLine(in.PreviousError))
		b.WriteString("Write a corrected query.\n")
	}
	b.WriteString("SQL:")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
