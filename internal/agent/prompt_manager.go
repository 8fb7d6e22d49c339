package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul/robodriver/internal/action"
)

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetSystemPrompt returns system.md from the prompts directory when present,
// otherwise the built-in prompt. Any extra *.md files listed in the directory
// are ignored.
func (pm *PromptManager) GetSystemPrompt() (string, error) {
	if pm == nil || pm.Directory == "" {
		return defaultSystemPrompt(), nil
	}
	path := filepath.Join(pm.Directory, "system.md")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultSystemPrompt(), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return defaultSystemPrompt(), nil
	}
	return string(data) + "\n\n" + vocabularyText(), nil
}

func defaultSystemPrompt() string {
	return `You are controlling a web browser to accomplish a goal for a user.
Each turn you see the goal, what you have done so far, and the current page.
Choose the NEXT SINGLE ACTION that moves toward the goal.

Rules:
- Refer to elements only by the index or role and name shown in the current element list.
  Indices change every turn; never reuse an index from an earlier turn.
- If a previous step failed, read its message and try something different.
- When the goal is achieved, or clearly cannot be achieved, reply with "done".

` + vocabularyText()
}

// vocabularyText lists the actions and the exact reply format.
func vocabularyText() string {
	var b strings.Builder
	b.WriteString("Respond with ONLY one JSON object and nothing else. It must have a \"type\" field\n")
	b.WriteString("and exactly the fields listed for that type, plus an optional \"reasoning\" string.\n\nActions:\n")
	for _, entry := range action.Vocabulary() {
		fmt.Fprintf(&b, "- %s: %s\n", entry.Type, entry.Description)
		for _, p := range entry.Params {
			fmt.Fprintf(&b, "    %s (%s): %s\n", p.Name, p.Kind, p.Description)
		}
		fmt.Fprintf(&b, "    example: %s\n", entry.Example)
	}
	return b.String()
}
