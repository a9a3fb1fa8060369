// Package git extracts repository context for message generation by shelling
// out to git: the staged diff, recent commit subjects, the repository's
// .gmuse instructions file, and the current branch.
package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"gmuse/cli/internal/diff"
	"gmuse/cli/internal/erruser"
)

// ErrNotARepository indicates the working directory is not inside a git
// repository (or git itself is unavailable).
var ErrNotARepository = errors.New("not a git repository; run gmuse from within a git repository")

// ErrNoStagedChanges indicates the staging area is empty.
var ErrNoStagedChanges = errors.New("no staged changes found; stage files with 'git add' first")

// InstructionsFilename is the repo-root file holding project-level guidance
// for message generation.
const InstructionsFilename = ".gmuse"

// Instructions is project-level guidance from the repository's .gmuse file.
// Content is non-empty only when Present is true.
type Instructions struct {
	Content string
	Present bool
}

// BranchInfo describes the current branch for prompt context. Type and
// Summary come from sanitized branch-name parsing; either may be empty.
type BranchInfo struct {
	Raw       string
	Type      string
	Summary   string
	IsDefault bool
}

// runGit executes git with a minimal environment and returns trimmed stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

func minimalEnv() []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"GIT_TERMINAL_PROMPT=0",
	}
}

// IsRepository reports whether dir is inside a git repository.
func IsRepository(ctx context.Context, dir string) bool {
	_, err := runGit(ctx, dir, "rev-parse", "--git-dir")
	return err == nil
}

// RepoRoot returns the absolute path of the repository root containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ErrNotARepository
	}
	return filepath.Abs(out)
}

// StagedDiff extracts the staged changes at dir. Returns ErrNotARepository
// outside a repository and ErrNoStagedChanges when the staging area is empty.
func StagedDiff(ctx context.Context, dir string) (diff.StagedDiff, error) {
	if !IsRepository(ctx, dir) {
		return diff.StagedDiff{}, ErrNotARepository
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--no-color", "--no-ext-diff")
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return diff.StagedDiff{}, erruser.New("Could not read the staged diff.", err)
	}
	raw := string(out)
	if strings.TrimSpace(raw) == "" {
		return diff.StagedDiff{}, ErrNoStagedChanges
	}

	var files []string
	if names, err := runGit(ctx, dir, "diff", "--cached", "--name-only"); err == nil {
		for _, f := range strings.Split(names, "\n") {
			if f != "" {
				files = append(files, f)
			}
		}
	}

	added, removed := diff.CountLines(raw)
	return diff.StagedDiff{
		Raw:          raw,
		FilesChanged: files,
		LinesAdded:   added,
		LinesRemoved: removed,
	}, nil
}

// History returns up to depth recent commit subject lines, newest first.
// A repository without commits yields an empty history, not an error.
func History(ctx context.Context, dir string, depth int) ([]string, error) {
	if depth <= 0 {
		return nil, nil
	}
	out, err := runGit(ctx, dir, "log", "-n"+strconv.Itoa(depth), "--format=%s")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && strings.Contains(string(exitErr.Stderr), "does not have any commits") {
			return nil, nil
		}
		return nil, erruser.New("Could not read commit history.", err)
	}
	if out == "" {
		return nil, nil
	}
	var messages []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			messages = append(messages, line)
		}
	}
	return messages, nil
}

// LoadInstructions reads the repository's .gmuse file. Missing or unreadable
// files yield an absent result, never an error; project guidance is optional.
func LoadInstructions(ctx context.Context, dir string) Instructions {
	root, err := RepoRoot(ctx, dir)
	if err != nil {
		return Instructions{}
	}
	data, err := os.ReadFile(filepath.Join(root, InstructionsFilename))
	if err != nil {
		return Instructions{}
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return Instructions{}
	}
	return Instructions{Content: content, Present: true}
}

// defaultBranches are long-lived branches whose names carry no intent worth
// sending to the model.
var defaultBranches = map[string]bool{
	"main": true, "master": true, "develop": true, "development": true,
}

// Branch returns parsed info for the current branch, or nil in detached HEAD
// state or when branch detection fails (branch context is best-effort).
func Branch(ctx context.Context, dir string, maxLen int) *BranchInfo {
	raw, err := runGit(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || raw == "HEAD" {
		return nil
	}
	typ, summary := parseBranchName(raw, maxLen)
	return &BranchInfo{
		Raw:       raw,
		Type:      typ,
		Summary:   summary,
		IsDefault: defaultBranches[strings.ToLower(raw)],
	}
}
