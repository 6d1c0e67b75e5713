package detector

import (
	"strings"
	"testing"
)

func newTestDetector(t *testing.T, rules []CommandRule, maxDepth int) *CommandDetector {
	t.Helper()
	detector, err := NewCommandDetector(rules, maxDepth)
	if err != nil {
		t.Fatalf("NewCommandDetector() error = %v", err)
	}
	return detector
}

func TestNewCommandDetector(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push", "remote add"},
		},
	}

	detector := newTestDetector(t, rules, 5)

	if len(detector.rules) != 1 {
		t.Errorf("Expected 1 rule, got %d", len(detector.rules))
	}
	if len(detector.rules[0].patterns) != 2 {
		t.Errorf("Expected 2 compiled patterns, got %d", len(detector.rules[0].patterns))
	}
	if detector.maxDepth != 5 {
		t.Errorf("Expected maxDepth 5, got %d", detector.maxDepth)
	}
}

func TestNewCommandDetector_InvalidPattern(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"[push"},
		},
	}

	if _, err := NewCommandDetector(rules, 5); err == nil {
		t.Error("Expected an error for an invalid glob")
	}
}

func TestCommandDetector_BasicGitPush(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push"},
		},
	}

	tests := []struct {
		name      string
		command   string
		wantBlock bool
	}{
		{
			name:      "Direct git push",
			command:   "git push",
			wantBlock: true,
		},
		{
			name:      "Git push with arguments",
			command:   "git push origin main",
			wantBlock: true,
		},
		{
			name:      "Git push with global flags",
			command:   "git -C /src push",
			wantBlock: true,
		},
		{
			name:      "Git pull (allowed)",
			command:   "git pull",
			wantBlock: false,
		},
		{
			name:      "Git alone (allowed)",
			command:   "git",
			wantBlock: false,
		},
		{
			name:      "Shell command with git push",
			command:   "sh -c 'git push'",
			wantBlock: true,
		},
		{
			name:      "Login shell with clustered flags",
			command:   `bash -lc "cd /src && git push"`,
			wantBlock: true,
		},
		{
			name:      "Git push with variable",
			command:   "CMD=push; git $CMD",
			wantBlock: true,
		},
		{
			name:      "Git push with exported variable",
			command:   "export CMD=push && git $CMD",
			wantBlock: true,
		},
		{
			name:      "Git with harmless variable",
			command:   "CMD=status; git $CMD",
			wantBlock: false,
		},
		{
			name:      "Git with unknown variable",
			command:   "git $CMD",
			wantBlock: true,
		},
		{
			name:      "Push in second command",
			command:   "git add . && git commit -m wip && git push",
			wantBlock: true,
		},
		{
			name:      "Push glued to separator",
			command:   "git pull;git push",
			wantBlock: true,
		},
		{
			name:      "Push inside a subshell",
			command:   "(cd /src && git push)",
			wantBlock: true,
		},
		{
			name:      "Push mentioned in a quoted message",
			command:   `echo "remember to git push"`,
			wantBlock: false,
		},
		{
			name:      "Xargs git push",
			command:   "echo origin | xargs git push",
			wantBlock: true,
		},
		{
			name:      "Echo piped to shell",
			command:   `echo "git push origin" | sh`,
			wantBlock: true,
		},
		{
			name:      "Harmless echo piped to shell",
			command:   `echo "git status" | bash -s`,
			wantBlock: false,
		},
		{
			name:      "Decoded payload piped to shell",
			command:   "base64 -d payload.txt | sudo bash",
			wantBlock: true,
		},
		{
			name:      "Echo with escapes piped to shell",
			command:   `echo -e "\x67it push" | sh`,
			wantBlock: true,
		},
		{
			name:      "Shell running a script file",
			command:   "cat notes.txt | sh build.sh",
			wantBlock: false,
		},
		{
			name:      "Find exec git push",
			command:   `find . -name .git -exec git push \;`,
			wantBlock: true,
		},
		{
			name:      "Eval git push",
			command:   `eval "git push"`,
			wantBlock: true,
		},
		{
			name:      "Eval of dynamic content",
			command:   `eval "$SCRIPT"`,
			wantBlock: true,
		},
		{
			name:      "Shell with dynamic script",
			command:   `sh -c "$SCRIPT"`,
			wantBlock: true,
		},
		{
			name:      "Dynamic command word",
			command:   "$(echo git) push",
			wantBlock: true,
		},
		{
			name:      "Unparseable input",
			command:   `git push "`,
			wantBlock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector(t, rules, 10)
			gotBlock := detector.ShouldBlockShellExpr(tt.command)

			if gotBlock != tt.wantBlock {
				t.Errorf("ShouldBlockShellExpr() = %v, want %v. Issues: %v", gotBlock, tt.wantBlock, detector.GetIssues())
			}
		})
	}
}

func TestCommandDetector_CompoundCommands(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push"},
		},
	}

	tests := []struct {
		name      string
		command   string
		wantBlock bool
	}{
		{"For loop with dynamic command", "for i in 1; do $CMD; done", true},
		{"If with dynamic command", "if true; then $CMD; fi", true},
		{"Block with dynamic command", "{ $CMD; }", true},
		{"Subshell with dynamic command", "( $CMD )", true},
		{"Negated dynamic command", "! $CMD", true},
		{"Timed dynamic command", "time $CMD", true},
		{"Eval of dynamic content in if", `if true; then eval "$X"; fi`, true},
		{"Eval of dynamic content in while", `while true; do eval "$X"; done`, true},
		{"Git push in else branch", "if false; then ls; else git push; fi", true},
		{"Git push in until condition", "until git push; do sleep 1; done", true},
		{"Git push in case item", "case $BRANCH in main) git push;; esac", true},
		{"Git push in function body", "deploy() { git push origin main; }", true},
		{"Timed git push", "time git push", true},
		{"Loop over files", "for f in *.txt; do cat $f; done", false},
		{"If with safe commands", "if [ -d .git ]; then git status; fi", false},
		{"Subshell with safe commands", "(cd /src && make)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector(t, rules, 10)
			gotBlock := detector.ShouldBlockShellExpr(tt.command)

			if gotBlock != tt.wantBlock {
				t.Errorf("ShouldBlockShellExpr(%q) = %v, want %v. Issues: %v", tt.command, gotBlock, tt.wantBlock, detector.GetIssues())
			}
		})
	}
}

func TestCommandDetector_MultipleRules(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push"},
		},
		{
			BlockedCommand:  "aws",
			BlockedPatterns: []string{"delete-bucket", "terminate-instances"},
		},
		{
			BlockedCommand:  "kubectl",
			BlockedPatterns: []string{"delete namespace"},
		},
	}

	tests := []struct {
		name      string
		command   string
		wantBlock bool
	}{
		{
			name:      "Git push blocked",
			command:   "git push",
			wantBlock: true,
		},
		{
			name:      "AWS delete-bucket blocked",
			command:   "aws s3api delete-bucket --bucket my-bucket",
			wantBlock: true,
		},
		{
			name:      "AWS terminate-instances blocked",
			command:   "aws ec2 terminate-instances --instance-ids i-1234567890abcdef0",
			wantBlock: true,
		},
		{
			name:      "Kubectl delete namespace blocked",
			command:   "kubectl delete namespace production",
			wantBlock: true,
		},
		{
			name:      "Kubectl delete pod allowed",
			command:   "kubectl delete pod my-pod",
			wantBlock: false,
		},
		{
			name:      "AWS list operations allowed",
			command:   "aws s3 ls",
			wantBlock: false,
		},
		{
			name:      "Git pull allowed",
			command:   "git pull",
			wantBlock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector(t, rules, 10)
			gotBlock := detector.ShouldBlockShellExpr(tt.command)

			if gotBlock != tt.wantBlock {
				t.Errorf("ShouldBlockShellExpr() = %v, want %v. Issues: %v", gotBlock, tt.wantBlock, detector.GetIssues())
			}
		})
	}
}

func TestCommandDetector_CommandMatching(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push"},
		},
	}

	tests := []struct {
		name      string
		command   string
		wantBlock bool
	}{
		{
			name:      "Direct git command",
			command:   "git push",
			wantBlock: true,
		},
		{
			name:      "Full path git command",
			command:   "/usr/bin/git push",
			wantBlock: true,
		},
		{
			name:      "Local git command",
			command:   "./git push",
			wantBlock: true,
		},
		{
			name:      "Windows git command",
			command:   "git.exe push",
			wantBlock: true,
		},
		{
			name:      "Windows full path git command",
			command:   "\"C:\\Program Files\\Git\\bin\\git.exe\" push",
			wantBlock: true,
		},
		{
			name:      "Similar command name",
			command:   "gitk push",
			wantBlock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector(t, rules, 10)
			gotBlock := detector.ShouldBlockShellExpr(tt.command)

			if gotBlock != tt.wantBlock {
				t.Errorf("ShouldBlockShellExpr() = %v, want %v. Issues: %v", gotBlock, tt.wantBlock, detector.GetIssues())
			}
		})
	}
}

func TestCommandDetector_InterspersedFlags(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "aws",
			BlockedPatterns: []string{"terminate-instances"},
		},
		{
			BlockedCommand:  "kubectl",
			BlockedPatterns: []string{"delete namespace"},
		},
	}

	tests := []struct {
		name      string
		command   string
		wantBlock bool
	}{
		{
			name:      "AWS terminate-instances with region flag before subcommand",
			command:   "aws --region us-east-1 ec2 terminate-instances --instance-ids i-1234567890abcdef0",
			wantBlock: true,
		},
		{
			name:      "AWS terminate-instances with multiple flags before subcommand",
			command:   "aws --region us-west-2 --profile prod ec2 terminate-instances --instance-ids i-1234567890abcdef0",
			wantBlock: true,
		},
		{
			name:      "Kubectl delete namespace with context flag",
			command:   "kubectl --context prod delete --force namespace production",
			wantBlock: true,
		},
		{
			name:      "Kubectl delete namespace with multiple flags",
			command:   "kubectl --kubeconfig ~/.kube/config --context staging delete namespace test-env --grace-period=0",
			wantBlock: true,
		},
		{
			name:      "Kubectl delete pod with context flag (should be allowed)",
			command:   "kubectl --context prod delete pod my-pod",
			wantBlock: false,
		},
		{
			name:      "AWS list operations with flags (should be allowed)",
			command:   "aws --region us-east-1 ec2 describe-instances --output json",
			wantBlock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector(t, rules, 10)
			gotBlock := detector.ShouldBlockShellExpr(tt.command)

			if gotBlock != tt.wantBlock {
				t.Errorf("ShouldBlockShellExpr() = %v, want %v. Command: %s, Issues: %v", gotBlock, tt.wantBlock, tt.command, detector.GetIssues())
			}
		})
	}
}

func TestCommandDetector_MaxDepthValidation(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push"},
		},
	}

	detector := newTestDetector(t, rules, 2)

	// Nesting deeper than the limit blocks even harmless commands
	command := `sh -c "sh -c 'sh -c ls'"`
	if !detector.ShouldBlockShellExpr(command) {
		t.Error("Expected deep nesting to be blocked")
	}

	found := false
	for _, issue := range detector.GetIssues() {
		if strings.Contains(issue, "Maximum nesting depth exceeded") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected nesting depth issue, got %v", detector.GetIssues())
	}

	if detector.ShouldBlockShellExpr(`sh -c ls`) {
		t.Errorf("Expected shallow nesting to be allowed. Issues: %v", detector.GetIssues())
	}
}

func TestCommandDetector_IssueReporting(t *testing.T) {
	rules := []CommandRule{
		{
			BlockedCommand:  "git",
			BlockedPatterns: []string{"push"},
		},
	}

	detector := newTestDetector(t, rules, 10)

	if !detector.ShouldBlockShellExpr("git push") {
		t.Fatal("Expected git push to be blocked")
	}
	issues := detector.GetIssues()
	if len(issues) == 0 {
		t.Fatal("Expected issues to be reported")
	}
	if !strings.Contains(issues[0], "git") {
		t.Errorf("Expected issue to mention git, got %q", issues[0])
	}

	// Issues are reset between calls
	if detector.ShouldBlockShellExpr("git status") {
		t.Error("Expected git status to be allowed")
	}
	if got := detector.GetIssues(); got != nil {
		t.Errorf("Expected no issues after an allowed command, got %v", got)
	}

	// The returned slice is a copy
	detector.ShouldBlockShellExpr("git push")
	copied := detector.GetIssues()
	copied[0] = "changed"
	if detector.GetIssues()[0] == "changed" {
		t.Error("GetIssues() must return a copy")
	}
}
