package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/krmcbride/runlint/pkg/detector"
	"github.com/krmcbride/runlint/pkg/hook"
)

func TestParseCommandRules(t *testing.T) {
	tests := []struct {
		name     string
		commands []string
		want     []detector.CommandRule
	}{
		{
			name:     "Single command blocks all",
			commands: []string{"git"},
			want: []detector.CommandRule{
				{BlockedCommand: "git", BlockedPatterns: []string{"*"}},
			},
		},
		{
			name:     "Command with multiple patterns",
			commands: []string{"git push pull force-push"},
			want: []detector.CommandRule{
				{BlockedCommand: "git", BlockedPatterns: []string{"push", "pull", "force-push"}},
			},
		},
		{
			name:     "Command with wildcard patterns",
			commands: []string{"aws delete-* terminate-*"},
			want: []detector.CommandRule{
				{BlockedCommand: "aws", BlockedPatterns: []string{"delete-*", "terminate-*"}},
			},
		},
		{
			name:     "Empty command ignored",
			commands: []string{"", "git push", "  "},
			want: []detector.CommandRule{
				{BlockedCommand: "git", BlockedPatterns: []string{"push"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommandRules(tt.commands)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCommandRules() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	d, err := detector.NewCommandDetector(parseCommandRules([]string{"git push", "kubectl"}), defaultMaxRecursion)
	if err != nil {
		t.Fatalf("NewCommandDetector() error = %v", err)
	}

	tests := []struct {
		name      string
		payload   string
		wantBlock bool
	}{
		{
			name:      "Direct push",
			payload:   `{"tool_name":"Bash","tool_input":{"command":"git push origin main"}}`,
			wantBlock: true,
		},
		{
			name:      "Push through a variable",
			payload:   `{"tool_name":"Bash","tool_input":{"command":"CMD=push; git $CMD"}}`,
			wantBlock: true,
		},
		{
			name:      "Any kubectl use",
			payload:   `{"tool_name":"Bash","tool_input":{"command":"kubectl get pods"}}`,
			wantBlock: true,
		},
		{
			name:      "Allowed git command",
			payload:   `{"tool_name":"Bash","tool_input":{"command":"git status && git log"}}`,
			wantBlock: false,
		},
		{
			name:      "Other tools are not checked",
			payload:   `{"tool_name":"Write","tool_input":{"command":"git push"}}`,
			wantBlock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := hook.DecodePreToolUseInput(strings.NewReader(tt.payload))
			if err != nil {
				t.Fatalf("DecodePreToolUseInput() error = %v", err)
			}
			blocked, issues := check(d, input)
			if blocked != tt.wantBlock {
				t.Errorf("check() blocked = %v, want %v (issues: %v)", blocked, tt.wantBlock, issues)
			}
			if blocked && len(issues) == 0 {
				t.Error("check() blocked without reporting an issue")
			}
		})
	}
}
