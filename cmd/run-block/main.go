// Package main provides a shell command blocker for Claude Code PreToolUse hooks.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/krmcbride/runlint/pkg/detector"
	"github.com/krmcbride/runlint/pkg/hook"
)

const defaultMaxRecursion = 10

// cmdFlag allows multiple -cmd flags to be specified
type cmdFlag []string

func (c *cmdFlag) String() string {
	return strings.Join(*c, ", ")
}

func (c *cmdFlag) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	var commands cmdFlag
	flag.Var(&commands, "cmd", "Command and optional patterns to block (can be specified multiple times)")

	maxRecur := flag.String("max-recursion", strconv.Itoa(defaultMaxRecursion), "Max recursion depth")
	showHelp := flag.Bool("help", false, "Show help message")

	flag.Parse()

	if *showHelp || len(commands) == 0 {
		showUsage()
		if *showHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	maxRecursion, err := strconv.Atoi(*maxRecur)
	if err != nil || maxRecursion <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid max-recursion '%s'. Must be a positive integer\n", *maxRecur)
		os.Exit(1)
	}

	rules := parseCommandRules(commands)
	if len(rules) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no valid command rules specified\n")
		os.Exit(1)
	}

	commandDetector, err := detector.NewCommandDetector(rules, maxRecursion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	input, err := hook.ReadPreToolUseInput()
	if err != nil {
		// Fail secure: an unreadable payload is blocked.
		hook.BlockPreToolUse("Failed to parse hook input", []string{err.Error()})
		return
	}

	if blocked, issues := check(commandDetector, input); blocked {
		hook.BlockPreToolUse("Blocked command detected!", issues)
		return
	}
	hook.AllowPreToolUse()
}

// check runs the detector over the Bash command of a hook payload. Other
// tools are allowed.
func check(d *detector.CommandDetector, input *hook.PreToolUseInput) (bool, []string) {
	if input.ToolName != "" && input.ToolName != "Bash" {
		return false, nil
	}
	if d.ShouldBlockShellExpr(input.ToolInput.Command) {
		return true, d.GetIssues()
	}
	return false, nil
}

// parseCommandRules parses -cmd flag values into CommandRule structs
func parseCommandRules(commands []string) []detector.CommandRule {
	var rules []detector.CommandRule

	for _, cmd := range commands {
		parts := strings.Fields(cmd)
		if len(parts) == 0 {
			continue
		}

		// A bare command blocks every use of it.
		blockedPatterns := []string{"*"}
		if len(parts) > 1 {
			blockedPatterns = parts[1:]
		}

		rules = append(rules, detector.CommandRule{
			BlockedCommand:  parts[0],
			BlockedPatterns: blockedPatterns,
		})
	}

	return rules
}

func showUsage() {
	fmt.Fprintf(os.Stderr, `run-block: shell command blocker for Claude Code hooks

Resolves shell variables, splits on control operators and looks inside
sh -c, eval, xargs and find -exec before matching. Commands whose name or
subcommand cannot be resolved statically are blocked.

USAGE:
    run-block -cmd COMMAND_SPEC [-cmd COMMAND_SPEC ...] [OPTIONS]

REQUIRED:
    -cmd string
            Command and optional patterns to block (can be specified multiple times)
            Format: "command [pattern1] [pattern2] ..."

            Examples:
              -cmd git                    Block all git commands
              -cmd "git push"             Block only git push
              -cmd "git push pull"        Block git push and git pull
              -cmd "aws delete-*"         Block aws delete-* commands

OPTIONAL:
    -max-recursion int
            Maximum nesting depth of sh -c and eval (default: %d)

    -help
            Show this help message

CLAUDE CODE CONFIGURATION:
Add to your Claude Code settings.json:

{
  "hooks": {
    "PreToolUse": [
      {
        "matcher": "Bash",
        "hooks": [
          {"type": "command", "command": "/path/to/run-block -cmd 'git push' -cmd 'aws delete-*'"}
        ]
      }
    ]
  }
}

`, defaultMaxRecursion)
}
