// Package generate orchestrates one message generation: gather repository
// context, build the prompt, call the provider, validate the result.
package generate

import (
	"context"
	"fmt"
	"time"

	"gmuse/cli/internal/config"
	"gmuse/cli/internal/diff"
	"gmuse/cli/internal/git"
	"gmuse/cli/internal/prompt"
	"gmuse/cli/internal/validate"
)

// Context is everything gathered from the repository for one generation.
type Context struct {
	Diff         diff.StagedDiff
	History      []string
	Instructions git.Instructions
	Branch       *git.BranchInfo
}

// Result pairs the generated message with the context it came from.
type Result struct {
	Message string
	Context *Context
}

// Generator produces a completion from a prompt pair. *llm.Client satisfies
// it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// InvalidMessageError reports a generated message that failed validation.
// The outcome is kept so callers can map the failure kind.
type InvalidMessageError struct {
	Outcome validate.Outcome
}

func (e *InvalidMessageError) Error() string { return e.Outcome.Reason }

// GatherContext collects the staged diff (truncated to the configured byte
// budget), commit history, repository instructions, and, when enabled, the
// current branch. Fails fast on the git sentinels; everything past the diff
// is optional context.
func GatherContext(ctx context.Context, dir string, cfg *config.Config) (*Context, error) {
	d, err := git.StagedDiff(ctx, dir)
	if err != nil {
		return nil, err
	}
	d = diff.Truncate(d, cfg.MaxDiffBytes)

	history, err := git.History(ctx, dir, cfg.HistoryDepth)
	if err != nil {
		return nil, err
	}

	gctx := &Context{
		Diff:         d,
		History:      history,
		Instructions: git.LoadInstructions(ctx, dir),
	}

	if cfg.IncludeBranch {
		// Default branches carry no intent worth sending.
		if b := git.Branch(ctx, dir, cfg.BranchMaxLength); b != nil && !b.IsDefault {
			gctx.Branch = b
		}
	}
	return gctx, nil
}

// promptInput folds configuration, gathered context, and the user's hint into
// the prompt builder's input.
func promptInput(cfg *config.Config, gctx *Context, hint string) prompt.Input {
	return prompt.Input{
		Format:       cfg.Format,
		MaxChars:     cfg.MaxChars,
		Diff:         gctx.Diff,
		History:      gctx.History,
		Instructions: gctx.Instructions,
		Branch:       gctx.Branch,
		Hint:         hint,
	}
}

// Generate builds the prompt, calls the provider under the configured
// timeout, and validates the result. Validation failures surface as
// *InvalidMessageError; the message is never silently shortened.
func Generate(ctx context.Context, cfg *config.Config, gctx *Context, hint string, gen Generator) (*Result, error) {
	system, user := prompt.Build(promptInput(cfg, gctx, hint))

	genCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
	defer cancel()

	message, err := gen.Generate(genCtx, system, user, cfg.Temperature, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	if out := validate.Message(message, cfg.Format, cfg.EffectiveMaxLength()); !out.Passed {
		return nil, &InvalidMessageError{Outcome: out}
	}

	return &Result{Message: message, Context: gctx}, nil
}

// DryRun renders the prompt that Generate would send, without touching any
// provider. model may be empty when none is configured yet.
func DryRun(cfg *config.Config, gctx *Context, hint, model string) string {
	system, user := prompt.Build(promptInput(cfg, gctx, hint))

	if model == "" {
		model = "none"
	}
	truncated := "false"
	if gctx.Diff.Truncated {
		truncated = "true"
	}
	return fmt.Sprintf("MODEL: %s\nFORMAT: %s\nTRUNCATED: %s\n\nSYSTEM PROMPT:\n%s\n\nUSER PROMPT:\n%s",
		model, cfg.Format, truncated, system, user)
}
