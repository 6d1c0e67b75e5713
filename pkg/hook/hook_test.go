package hook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePreToolUseInput(t *testing.T) {
	payload := `{
  "session_id": "abc",
  "cwd": "/src",
  "hook_event_name": "PreToolUse",
  "tool_name": "Bash",
  "tool_input": {"command": "git push origin main", "description": "Push"}
}`
	input, err := DecodePreToolUseInput(strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, "Bash", input.ToolName)
	assert.Equal(t, "PreToolUse", input.HookEventName)
	assert.Equal(t, "/src", input.CWD)
	assert.Equal(t, "git push origin main", input.ToolInput.Command)
}

func TestDecodePreToolUseInput_Malformed(t *testing.T) {
	_, err := DecodePreToolUseInput(strings.NewReader(`{"tool_input": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode hook input")
}

func TestWriteBlock(t *testing.T) {
	var buf bytes.Buffer
	WriteBlock(&buf, "Blocked command detected!", []string{"Blocked git pattern detected", "git uses dynamic subcommand"})

	assert.Equal(t, "🚫 BLOCKED: Blocked command detected!\n"+
		"Issue: Blocked git pattern detected\n"+
		"Issue: git uses dynamic subcommand\n", buf.String())
}
