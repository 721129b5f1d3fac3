package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	// earlyinit must be listed before bubbletea so its init() runs first and
	// pre-sets lipgloss.SetHasDarkBackground, preventing bubbletea's init()
	// from sending an OSC 11 terminal colour query that leaks into stdin on WSL2.
	_ "github.com/yourusername/codexterm/internal/earlyinit"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yourusername/codexterm/internal/config"
	"github.com/yourusername/codexterm/internal/engine"
	"github.com/yourusername/codexterm/internal/logger"
	"github.com/yourusername/codexterm/internal/rollout"
	"github.com/yourusername/codexterm/internal/tui"
	"github.com/yourusername/codexterm/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codexterm",
		Short: "Codexterm - conversational coding assistant in your terminal",
		Long: `Codexterm is an interactive terminal front-end for a conversational
coding assistant. It streams model output into your scrollback, keeps a
full transcript behind Ctrl-T, and can resume earlier sessions from
their rollout logs.`,
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("model", "m", "", "Model to use")
	rootCmd.PersistentFlags().String("effort", "", "Reasoning effort (none, low, medium, high)")
	rootCmd.Flags().StringP("resume", "r", "", "Rollout file to resume, or 'latest'")
	rootCmd.Flags().StringP("prompt", "p", "", "Initial prompt to submit on startup")
	rootCmd.Flags().StringArrayP("image", "i", nil, "Image file to attach to the initial prompt")

	rootCmd.AddCommand(
		sessionsCmd(),
		completionCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// filterOSCSequences removes OSC (Operating System Command) sequences from messages.
// This prevents terminal responses like OSC 11 (background color query) from appearing
// as garbage text in the input area.
func filterOSCSequences(_ tea.Model, msg tea.Msg) tea.Msg {
	switch v := msg.(type) {
	case tea.KeyMsg:
		str := v.String()
		if matched, _ := regexp.MatchString(`\d{1,4}/\d{4}/\d{4}`, str); matched {
			return nil
		}
		if strings.HasPrefix(str, "]11;") ||
			strings.HasPrefix(str, "b:") ||
			strings.HasPrefix(str, "gb:") ||
			strings.HasPrefix(str, "rgb:") ||
			strings.Contains(str, ";rgb:") {
			return nil
		}
	}
	return msg
}

// runTUI is the default command - starts the interactive session
func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer logger.Close()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("codexterm requires an interactive terminal")
	}

	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("no API key configured. Set OPENAI_API_KEY or add openai_api_key to your config file")
	}

	if resume, _ := cmd.Flags().GetString("resume"); resume != "" {
		path, err := resolveResumePath(cfg, resume)
		if err != nil {
			return err
		}
		cfg.ExperimentalResume = path
	}
	cfg.InitialPrompt, _ = cmd.Flags().GetString("prompt")
	cfg.InitialImages, _ = cmd.Flags().GetStringArray("image")

	manager := engine.NewManager(cfg)

	// Inline mode (no alt screen) so committed history lands in real
	// terminal scrollback; overlays switch to the alt screen on demand.
	usage, err := tui.Run(cfg, manager, tea.WithFilter(filterOSCSequences))
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if usage.TotalTokens > 0 {
		fmt.Printf("Token usage: %d input (%d cached), %d output, %d total\n",
			usage.InputTokens, usage.CachedInputTokens, usage.OutputTokens, usage.TotalTokens)
	}
	return nil
}

// resolveResumePath turns the --resume argument into a rollout file path.
// "latest" picks the most recently modified rollout in the session dir.
func resolveResumePath(cfg *config.Config, arg string) (string, error) {
	if arg != "latest" {
		if _, err := os.Stat(arg); err != nil {
			return "", fmt.Errorf("cannot resume %s: %w", arg, err)
		}
		return arg, nil
	}

	matches, err := filepath.Glob(filepath.Join(cfg.SessionDir, "*.jsonl"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no sessions found in %s", cfg.SessionDir)
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, _ := os.Stat(matches[i])
		fj, _ := os.Stat(matches[j])
		if fi == nil || fj == nil {
			return false
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0], nil
}

// ---------------------------------------------------------------------------
// sessions command
// ---------------------------------------------------------------------------

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List resumable sessions",
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rollout files with their message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			matches, _ := filepath.Glob(filepath.Join(cfg.SessionDir, "*.jsonl"))
			if len(matches) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}
			sort.Strings(matches)

			fmt.Printf("%-26s %-38s %-8s\n", "Started", "ID", "Msgs")
			fmt.Println(strings.Repeat("-", 76))
			for _, path := range matches {
				meta, _ := rollout.ReadMeta(path)
				id := ""
				if meta.ID != nil {
					id = meta.ID.String()
				}
				count := "?"
				if stats := rollout.ReadSessionStats(path, 512*1024); stats.MessageCount != nil {
					count = fmt.Sprintf("%d", *stats.MessageCount)
				}
				fmt.Printf("%-26s %-38s %-8s\n", meta.Timestamp, id, count)
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [path]",
		Short: "Delete a rollout file and its sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.Remove(args[0]); err != nil {
				return err
			}
			_ = os.Remove(args[0] + ".meta.json")
			fmt.Printf("Session %s deleted.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)

	// Default to list
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return listCmd.RunE(cmd, args)
	}

	return cmd
}

// ---------------------------------------------------------------------------
// completion command
// ---------------------------------------------------------------------------

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootCmd := cmd.Root()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
}

// ---------------------------------------------------------------------------
// version command
// ---------------------------------------------------------------------------

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codexterm version %s\n", version.Version)
			fmt.Printf("go version %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		cfg.Model = m
	}
	if e, _ := cmd.Flags().GetString("effort"); e != "" {
		cfg.ReasoningEffort = e
	}
}
