package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileBlockedPattern(t *testing.T) {
	tests := []struct {
		name    string
		command string
		blocked string
		input   string
		want    bool
	}{
		{"star matches the bare command", "git", "*", "git", true},
		{"star matches any subcommand", "git", "*", "git status", true},
		{"words may be separated by other arguments", "git", "push", "git -C /src push origin", true},
		{"multi-word pattern", "git", "remote add", "git remote -v add origin x", true},
		{"multi-word pattern keeps word order", "git", "remote add", "git add remote", false},
		{"glob word", "aws", "delete-*", "aws s3api delete-bucket --bucket b", true},
		{"glob word without a match", "aws", "delete-*", "aws s3 ls", false},
		{"glob is case sensitive", "aws", "delete-*", "aws s3api DELETE-bucket", false},
		{"character class", "kubectl", "[dr]*", "kubectl rollout restart", true},
		{"whole words only", "git", "push", "git pushd", false},
		{"command given as a path", "git", "push", "/usr/bin/git push", true},
		{"command behind a wrapper", "git", "push", "xargs git push", true},
		{"other command", "git", "push", "hg push", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compileBlockedPattern(tt.command, tt.blocked)
			require.NoError(t, err)
			got := len(p.SearchWithoutSplit(argsOf(tt.input), nil)) > 0
			assert.Equal(t, tt.want, got, "pattern %q on %q", tt.blocked, tt.input)
		})
	}
}

func TestCompileBlockedPattern_Errors(t *testing.T) {
	_, err := compileBlockedPattern("git", "   ")
	require.ErrorIs(t, err, ErrEmptyPattern)

	_, err = compileBlockedPattern("git", "push [main")
	require.Error(t, err)
}

func TestCommandDetector_GlobRules(t *testing.T) {
	rules := []CommandRule{
		{BlockedCommand: "aws", BlockedPatterns: []string{"delete-*", "terminate-*"}},
		{BlockedCommand: "terraform", BlockedPatterns: []string{"destroy"}},
		{BlockedCommand: "git", BlockedPatterns: []string{"push"}},
	}

	tests := []struct {
		name      string
		command   string
		wantBlock bool
	}{
		{"Terminate instances", "aws ec2 terminate-instances --instance-ids i-0abc", true},
		{"Delete behind sudo", "sudo aws s3api delete-bucket --bucket b", true},
		{"Listing is allowed", "aws s3 ls", false},
		{"Destroy through find -exec", `find . -name main.tf -execdir terraform destroy -auto-approve \;`, true},
		{"Plan through find -exec", `find . -name main.tf -execdir terraform plan \;`, false},
		{"Push through xargs", "echo main | xargs git push origin", true},
		{"Status through xargs", "echo . | xargs git -C status", false},
		{"Glob word assembled from variables", "OP=delete; aws s3api ${OP}-object --key k", true},
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
