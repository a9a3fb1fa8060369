package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gmuse/cli/internal/clipboard"
	"gmuse/cli/internal/config"
	"gmuse/cli/internal/erruser"
	"gmuse/cli/internal/generate"
	"gmuse/cli/internal/git"
	"gmuse/cli/internal/llm"
	"gmuse/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// stdout and stderr are replaceable so tests can capture output.
var stdout io.Writer = os.Stdout
var stderr io.Writer = os.Stderr

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing so that
// main.go can meet per-file coverage requirements.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "gmuse",
		Short:   "AI generated commit messages",
		Version: version.String(),
	}
	rootCmd.AddCommand(newMsgCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "\nInterrupted by user")
			return 130
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(stderr, "Details: %v\n", u)
		}
		if hint := errHint(err); hint != "" {
			fmt.Fprintf(stderr, "\n%s\n", hint)
		}
		return exitCode(err)
	}
	return 0
}

// exitCode maps an error to the process exit code: 2 for provider and
// validation failures, 1 for configuration and git errors.
func exitCode(err error) int {
	var llmErr *llm.Error
	var invalid *generate.InvalidMessageError
	if errors.As(err, &llmErr) || errors.As(err, &invalid) {
		return 2
	}
	return 1
}

// errHint returns recovery guidance for errors the user can fix themselves.
func errHint(err error) string {
	var invalid *generate.InvalidMessageError
	switch {
	case errors.Is(err, git.ErrNotARepository):
		return "Run this command inside a git repository.\nTo initialize a new repository: git init"
	case errors.Is(err, git.ErrNoStagedChanges):
		return "Stage your changes first:\n  git add <files>"
	case errors.As(err, &invalid):
		return "This is likely a temporary issue. Try again."
	}
	return ""
}

func newMsgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msg",
		Short: "Generate a commit message from staged changes",
		Long: `Generate a commit message from staged changes.

Analyzes your staged git changes and generates a commit message with the
configured provider. The message is printed to stdout.

Examples:
  gmuse msg                        # Basic usage
  gmuse msg --hint "security fix"  # Add context hint
  gmuse msg --format conventional  # Use conventional commits format
  gmuse msg --copy                 # Auto-copy to clipboard
  gmuse msg --model claude-3-opus  # Use specific model
  gmuse msg --dry-run              # Preview prompt without calling the provider`,
		RunE: runMsg,
	}
	cmd.Flags().StringP("hint", "H", "", "Additional guidance for message generation (e.g., 'emphasize security')")
	cmd.Flags().BoolP("copy", "c", false, "Copy generated message to clipboard")
	cmd.Flags().StringP("model", "m", "", "LLM model to use (e.g., 'gpt-4', 'claude-3-opus')")
	cmd.Flags().StringP("format", "f", "", "Message format: 'freeform' (default), 'conventional', or 'gitmoji'")
	cmd.Flags().Int("history-depth", 0, "Number of recent commits to use for style context (0-50)")
	cmd.Flags().String("provider", "", "Explicit provider override (e.g., 'openai', 'gemini', 'anthropic')")
	cmd.Flags().Int("max-chars", 0, "Hard cap on message length in characters (1-500)")
	cmd.Flags().Bool("dry-run", false, "Print the assembled prompt without calling the LLM provider")
	return cmd
}

// cliValues builds the CLI override source from flags the user actually set.
func cliValues(cmd *cobra.Command) map[string]any {
	cli := map[string]any{}
	stringFlags := map[string]string{
		"model":    "model",
		"format":   "format",
		"provider": "provider",
	}
	for flag, key := range stringFlags {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			cli[key] = v
		}
	}
	if cmd.Flags().Changed("history-depth") {
		v, _ := cmd.Flags().GetInt("history-depth")
		cli["history_depth"] = v
	}
	if cmd.Flags().Changed("max-chars") {
		v, _ := cmd.Flags().GetInt("max-chars")
		cli["max_chars"] = v
	}
	if cmd.Flags().Changed("copy") {
		v, _ := cmd.Flags().GetBool("copy")
		cli["copy_to_clipboard"] = v
	}
	return cli
}

// loadConfig resolves configuration from all four sources for the msg command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	file, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return config.Resolve(cliValues(cmd), file, config.EnvValues(os.Environ()))
}

func runMsg(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return erruser.New("Could not determine current directory.", err)
	}

	gctx, err := generate.GatherContext(cmd.Context(), cwd, cfg)
	if err != nil {
		return err
	}
	if gctx.Diff.Truncated {
		fmt.Fprintln(stderr, "Warning: Large diff truncated to fit token limits.")
	}

	hint, _ := cmd.Flags().GetString("hint")
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintln(stdout, generate.DryRun(cfg, gctx, hint, cfg.Model))
		return nil
	}

	client, err := llm.NewClient(cfg.Provider, cfg.Model, cfg.Timeout, nil)
	if err != nil {
		return err
	}
	result, err := generate.Generate(cmd.Context(), cfg, gctx, hint, client)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, result.Message)

	if cfg.CopyToClipboard {
		if err := clipboard.Copy(result.Message); err != nil {
			fmt.Fprintf(stderr, "Warning: Could not copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(stderr, "✓ Copied to clipboard")
		}
	}
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print resolved configuration and provider detection for debugging",
		RunE:  runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	// Best-effort resolution: info should still print when the file or
	// environment carries an invalid value.
	var cfg *config.Config
	if path, err := config.Path(); err == nil {
		if file, err := config.LoadFile(path); err == nil {
			cfg, _ = config.Resolve(nil, file, config.EnvValues(os.Environ()))
		}
	}
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}

	detected := "none"
	if p, err := llm.DetectProvider(); err == nil {
		detected = p
	}

	fmt.Fprintf(stdout, "Resolved model: %s\n", cfg.Value("model"))
	fmt.Fprintf(stdout, "Detected provider heuristics: %s\n", detected)
	fmt.Fprintf(stdout, "Configured provider in merged config: %s\n", cfg.Value("provider"))
	fmt.Fprintln(stdout, "Environment vars:")
	for _, name := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		_, set := os.LookupEnv(name)
		fmt.Fprintf(stdout, "  %s set: %t\n", name, set)
	}
	fmt.Fprintf(stdout, "  GMUSE_MODEL env var: %s\n", orNone(os.Getenv("GMUSE_MODEL")))
	fmt.Fprintf(stdout, "  GMUSE_TIMEOUT env var: %s\n", orNone(os.Getenv("GMUSE_TIMEOUT")))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gmuse global configuration",
		Long: `Manage gmuse global configuration.

View and modify settings stored in the global config file. These settings
apply across all repositories unless overridden by environment variables or
CLI flags.`,
	}
	cmd.AddCommand(newConfigViewCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Display current global configuration",
		RunE:  runConfigView,
	}
}

func runConfigView(cmd *cobra.Command, args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Global config file: %s\n\n", path)

	raw, readErr := os.ReadFile(path)
	if readErr != nil && !os.IsNotExist(readErr) {
		return erruser.New("Could not read configuration file.", readErr)
	}
	if os.IsNotExist(readErr) {
		fmt.Fprintln(stdout, "No global configuration file found.")
		fmt.Fprintln(stdout, "Create one with: gmuse config set <key> <value>")
		fmt.Fprintln(stdout)
	} else {
		fmt.Fprintln(stdout, "--- File Contents ---")
		fmt.Fprintln(stdout, strings.TrimRight(string(raw), "\n"))
		fmt.Fprintln(stdout)
	}

	file, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	env := config.EnvValues(os.Environ())
	cfg, err := config.Resolve(nil, file, env)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "--- Effective Configuration ---")
	fmt.Fprintf(stdout, "%-18s %-22s %s\n", "Key", "Value", "Source")
	fmt.Fprintln(stdout, strings.Repeat("-", 60))
	for _, key := range config.Keys() {
		_, inFile := file[key]
		_, inEnv := env[key]
		source := "default"
		switch {
		case inEnv && inFile:
			source = "env (" + config.EnvName(key) + ") overrides file"
		case inEnv:
			source = "env (" + config.EnvName(key) + ")"
		case inFile:
			source = "file"
		}
		fmt.Fprintf(stdout, "%-18s %-22s %s\n", key, cfg.Value(key), source)
	}
	return nil
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a configuration key into the global config file",
		Long: `Persist a validated configuration key/value into the global config file.

Use 'null' or 'none' as the value to remove an optional key (e.g. max_chars).`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	value, err := config.ParseValue(key, raw)
	if err != nil {
		return err
	}

	path, err := config.Path()
	if err != nil {
		return err
	}
	file, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if value == nil {
		delete(file, key)
	} else {
		file[key] = value
	}
	// Range and enum checks run on the would-be file before anything is written.
	if _, err := config.Resolve(nil, file, nil); err != nil {
		return err
	}

	if err := config.WriteKey(path, key, value); err != nil {
		return err
	}
	if value == nil {
		fmt.Fprintf(stdout, "Removed %s from %s\n", key, path)
	} else {
		fmt.Fprintf(stdout, "Set %s = %v in %s\n", key, value, path)
	}
	return nil
}
