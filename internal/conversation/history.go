// Package conversation holds dialogue turns and the word budget applied
// before a transcript is sent to the dialogue model.
package conversation

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultWordBudget bounds the words sent per dialogue call.
const DefaultWordBudget = 3000

const DefaultSystemPrompt = "You are restricted to respond in 20 words."

// Turn is one attributed message. Turns are values and are never edited
// after they are appended.
type Turn struct {
	Author Role   `json:"author"`
	Text   string `json:"text"`
}

func (t Turn) Words() int {
	return len(strings.Fields(t.Text))
}

// Prepare prepends the system turn and drops the oldest turns until the
// total word count is within DefaultWordBudget. The newest turn is always
// kept. history is not modified.
func Prepare(systemPrompt string, history []Turn) []Turn {
	return PrepareWithBudget(systemPrompt, history, DefaultWordBudget)
}

func PrepareWithBudget(systemPrompt string, history []Turn, budget int) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, Turn{Author: RoleSystem, Text: systemPrompt})
	turns = append(turns, history...)
	return Truncate(turns, budget)
}

// Truncate returns the longest suffix of turns whose word total is at most
// budget, or just the last turn when that alone exceeds it.
func Truncate(turns []Turn, budget int) []Turn {
	if len(turns) == 0 {
		return nil
	}
	total := 0
	for _, t := range turns {
		total += t.Words()
	}
	start := 0
	for total > budget && start < len(turns)-1 {
		total -= turns[start].Words()
		start++
	}
	out := make([]Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}

// WordCount sums the words of every turn.
func WordCount(turns []Turn) int {
	n := 0
	for _, t := range turns {
		n += t.Words()
	}
	return n
}
