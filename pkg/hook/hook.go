// Package hook provides types and functions for Claude Code PreToolUse hooks.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Exit codes understood by Claude Code.
const (
	ExitAllow = 0
	ExitBlock = 2
)

// PreToolUseInput represents the JSON input from Claude Code PreToolUse hooks.
// Only the Bash tool's fields are decoded.
type PreToolUseInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	CWD            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
	ToolName       string `json:"tool_name"`
	ToolInput      struct {
		Command     string `json:"command"`
		Description string `json:"description,omitempty"`
	} `json:"tool_input"`
}

// ReadPreToolUseInput reads and parses the hook input from stdin.
func ReadPreToolUseInput() (*PreToolUseInput, error) {
	return DecodePreToolUseInput(os.Stdin)
}

// DecodePreToolUseInput parses one hook payload from r.
func DecodePreToolUseInput(r io.Reader) (*PreToolUseInput, error) {
	var input PreToolUseInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to decode hook input: %w", err)
	}
	return &input, nil
}

// WriteBlock writes the block message and its issues in the format shown to
// the user.
func WriteBlock(w io.Writer, message string, issues []string) {
	_, _ = fmt.Fprintf(w, "🚫 BLOCKED: %s\n", message) //nolint:errcheck // nothing to do if the hook's stderr is gone
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "Issue: %s\n", issue) //nolint:errcheck
	}
}

// BlockPreToolUse blocks the command execution with an error message.
func BlockPreToolUse(message string, issues []string) {
	WriteBlock(os.Stderr, message, issues)
	os.Exit(ExitBlock)
}

// AllowPreToolUse allows the command to proceed.
func AllowPreToolUse() {
	os.Exit(ExitAllow)
}
