package conversation

import (
	"strings"
	"testing"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestPreparePrependsSystemPrompt(t *testing.T) {
	history := []Turn{{Author: RoleUser, Text: "hello there"}}
	got := Prepare(DefaultSystemPrompt, history)
	if len(got) != 2 {
		t.Fatalf("len(Prepare()) = %d, want 2", len(got))
	}
	if got[0].Author != RoleSystem || got[0].Text != DefaultSystemPrompt {
		t.Fatalf("first turn = %+v, want system prompt", got[0])
	}
	if got[1] != history[0] {
		t.Fatalf("second turn = %+v, want %+v", got[1], history[0])
	}
}

func TestPrepareDropsOldestUntilWithinBudget(t *testing.T) {
	history := []Turn{
		{Author: RoleUser, Text: words(1500)},
		{Author: RoleAssistant, Text: words(1000)},
		{Author: RoleUser, Text: words(1000)},
		{Author: RoleAssistant, Text: words(900)},
	}
	got := Prepare("be brief", history)
	if n := WordCount(got); n > DefaultWordBudget {
		t.Fatalf("WordCount = %d, want <= %d", n, DefaultWordBudget)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (oldest two dropped)", len(got))
	}
	if got[0] != history[1] || got[2] != history[3] {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestPrepareKeepsNewestTurnOverBudget(t *testing.T) {
	history := []Turn{
		{Author: RoleUser, Text: "short"},
		{Author: RoleUser, Text: words(4000)},
	}
	got := Prepare(DefaultSystemPrompt, history)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0] != history[1] {
		t.Fatalf("kept turn = %q..., want newest", got[0].Text[:10])
	}
}

func TestPrepareDoesNotMutateInput(t *testing.T) {
	history := []Turn{
		{Author: RoleUser, Text: words(2999)},
		{Author: RoleAssistant, Text: words(5)},
	}
	snapshot := append([]Turn(nil), history...)
	got := Prepare("sys", history)
	got[0].Text = "changed"
	for i := range history {
		if history[i] != snapshot[i] {
			t.Fatalf("history[%d] mutated", i)
		}
	}
}

func TestTruncateEmpty(t *testing.T) {
	if got := Truncate(nil, 10); got != nil {
		t.Fatalf("Truncate(nil) = %v, want nil", got)
	}
}
