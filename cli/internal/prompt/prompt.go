// Package prompt assembles the system and user prompts sent to the model.
// Assembly is deterministic: identical input yields identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"gmuse/cli/internal/config"
	"gmuse/cli/internal/diff"
	"gmuse/cli/internal/git"
)

// SystemPrompt frames every generation regardless of format.
const SystemPrompt = `You are an expert commit message generator. Your role is to analyze code changes and produce clear, informative commit messages that help developers understand what changed and why.

Guidelines:
- Focus on WHAT changed and WHY (when obvious from diff)
- Be concise but informative
- Use technical terminology appropriately
- Avoid stating the obvious (e.g., "Updated file.py")
- Prioritize clarity over cleverness`

const freeformTask = `Generate a commit message in natural language.

Requirements:
- Use imperative mood (e.g., "Add feature" not "Added feature")
- Keep it concise (1-3 sentences)
- Focus on the most significant changes
- No special formatting required

Output only the commit message text, nothing else.`

const gitmojiTask = `Generate a commit message with a relevant emoji prefix (gitmoji style).

Common emojis and their meanings:
✨ :sparkles: - New feature
🐛 :bug: - Bug fix
📝 :memo: - Documentation
💄 :lipstick: - UI/styling
♻️ :recycle: - Refactoring
✅ :white_check_mark: - Tests
🔧 :wrench: - Configuration
⚡ :zap: - Performance
🔒 :lock: - Security

Format: emoji description

Requirements:
- Choose emoji based on primary change type
- Description should be concise, imperative mood
- Use only ONE emoji (the most relevant)

Examples:
✨ Add JWT authentication
🐛 Fix null pointer in user endpoint
📝 Update installation guide

Output only the commit message (emoji + description), nothing else.`

// conventionalTask returns the Conventional Commits task prompt. An explicit
// character cap drops the built-in "under 100 characters" line so the prompt
// never carries two conflicting limits.
func conventionalTask(maxChars *int) string {
	lengthGuidance := "- Keep total length under 100 characters\n"
	if maxChars != nil {
		lengthGuidance = ""
	}
	return fmt.Sprintf(`Generate a commit message following Conventional Commits specification.

Format: type(scope): description

Types:
- feat: New feature
- fix: Bug fix
- docs: Documentation changes
- style: Code style/formatting (no logic change)
- refactor: Code restructuring (no behavior change)
- test: Adding or updating tests
- chore: Build process, dependencies, etc.

Requirements:
- type is REQUIRED
- scope is OPTIONAL (use if changes are focused on one area)
- description must be lowercase, imperative mood
%s- No period at end of description

Examples:
feat(auth): add JWT token validation
fix(api): handle null pointer in user endpoint
docs: update installation instructions

Output only the commit message (one line), nothing else.`, lengthGuidance)
}

// historyDisplayCap bounds the style-reference commits shown in the prompt;
// deeper histories are gathered but only the newest few are worth tokens.
const historyDisplayCap = 5

// Input carries everything Build folds into the user prompt. Optional context
// (History, Instructions, Branch, Hint) is simply omitted when absent.
type Input struct {
	Format       config.Format
	MaxChars     *int
	Diff         diff.StagedDiff
	History      []string
	Instructions git.Instructions
	Branch       *git.BranchInfo
	Hint         string
}

// Build assembles the (system, user) prompt pair. The user prompt is the
// context block followed by the format's task prompt; when MaxChars is set an
// explicit length requirement closes the task.
func Build(in Input) (system, user string) {
	context := buildContext(in)

	var task string
	switch in.Format {
	case config.FormatConventional:
		task = conventionalTask(in.MaxChars)
	case config.FormatGitmoji:
		task = gitmojiTask
	default:
		task = freeformTask
	}

	if in.MaxChars != nil {
		task += fmt.Sprintf("\n\nAdditional requirement:\n- Ensure the final commit message is at most %d characters long.", *in.MaxChars)
	}

	return SystemPrompt, context + "\n\n" + task
}

// buildContext renders the fixed-order context block: branch, recent commits,
// repository instructions, user hint, change summary, then the diff itself.
func buildContext(in Input) string {
	var parts []string

	if b := in.Branch; b != nil {
		parts = append(parts, "Branch context:")
		if b.Type != "" {
			parts = append(parts, "- Branch type: "+b.Type)
		}
		if b.Summary != "" {
			parts = append(parts, "- Branch summary: "+b.Summary)
		}
		parts = append(parts, "")
	}

	if len(in.History) > 0 {
		parts = append(parts, "Recent commits for style reference:")
		shown := in.History
		if len(shown) > historyDisplayCap {
			shown = shown[:historyDisplayCap]
		}
		for _, msg := range shown {
			parts = append(parts, "- "+msg)
		}
		parts = append(parts, "")
	}

	if in.Instructions.Present {
		parts = append(parts, "Repository instructions:", in.Instructions.Content, "")
	}

	if in.Hint != "" {
		parts = append(parts, "User hint: "+in.Hint, "")
	}

	parts = append(parts,
		"Staged changes summary:",
		fmt.Sprintf("- Files changed: %d", len(in.Diff.FilesChanged)),
		fmt.Sprintf("- Lines added: %d", in.Diff.LinesAdded),
		fmt.Sprintf("- Lines removed: %d", in.Diff.LinesRemoved),
		"",
	)

	if in.Diff.Truncated {
		parts = append(parts, "[Diff truncated to fit token limits]")
	}
	parts = append(parts, "Diff:", in.Diff.Raw)

	return strings.Join(parts, "\n")
}

// EstimateTokens approximates the token count of text with the usual
// four-characters-per-token heuristic. Rough, but close enough for the
// dry-run report.
func EstimateTokens(text string) int {
	return len(text) / 4
}
