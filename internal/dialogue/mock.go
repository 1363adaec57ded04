package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/speakwell/internal/conversation"
)

// Mock replies deterministically from the latest user turn.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Reply(ctx context.Context, turns []conversation.Turn) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	heard := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Author == conversation.RoleUser {
			heard = strings.TrimSpace(turns[i].Text)
			break
		}
	}
	if heard == "" {
		return "I did not catch that. Could you say it again?", nil
	}
	return fmt.Sprintf("I heard you say: %s", heard), nil
}
