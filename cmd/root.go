package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/taskreview/internal/clock"
	"github.com/zjrosen/taskreview/internal/config"
	"github.com/zjrosen/taskreview/internal/git"
	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/render"
	"github.com/zjrosen/taskreview/internal/review"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/tracing"
	"github.com/zjrosen/taskreview/internal/ui/reviewpane"
	"github.com/zjrosen/taskreview/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const projectConfigPath = ".taskreview/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskreview",
	Short: "Review a task worktree's changes in the terminal",
	Long: `A terminal review pane for the changes of a task worktree: every changed file
in one scrolling list, a sidebar that follows the file in view, and diffs
rendered ahead of the scroll position.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .taskreview/config.yaml, then ~/.config/taskreview/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write a debug log (also enabled by TASKREVIEW_DEBUG)")
	rootCmd.PersistentFlags().StringP("path", "p", "",
		"worktree to review (default: current directory)")
	rootCmd.PersistentFlags().StringP("base", "b", "",
		"git ref to compare against (default: HEAD)")
	rootCmd.PersistentFlags().Bool("stats-only", false,
		"show line counts only, without file contents")
	rootCmd.Flags().Bool("no-auto-refresh", false,
		"disable reloading when the worktree changes")

	_ = viper.BindPFlag("path", rootCmd.PersistentFlags().Lookup("path"))
	_ = viper.BindPFlag("base", rootCmd.PersistentFlags().Lookup("base"))
	_ = viper.BindPFlag("stats_only", rootCmd.PersistentFlags().Lookup("stats-only"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("base", defaults.Base)
	viper.SetDefault("auto_refresh", defaults.AutoRefresh)
	viper.SetDefault("auto_refresh_debounce", defaults.AutoRefreshDebounce)
	viper.SetEnvPrefix("TASKREVIEW")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .taskreview/config.yaml (current directory)
		// 2. ~/.config/taskreview/config.yaml (user config)
		if _, err := os.Stat(projectConfigPath); err == nil {
			viper.SetConfigFile(projectConfigPath)
		} else {
			viper.AddConfigPath(userConfigDir())
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config anywhere: seed the user config so the tuning knobs are discoverable.
			defaultPath := filepath.Join(userConfigDir(), "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
		} else {
			fmt.Fprintf(os.Stderr, "warning: reading config: %v\n", err)
		}
	}

	cfg = config.Defaults()
	// Slices decode in place; a shorter list would keep trailing defaults.
	if viper.IsSet("review.default_collapsed") {
		cfg.Review.DefaultCollapsed = nil
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: parsing config: %v\n", err)
	}
}

func userConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskreview"
	}
	return filepath.Join(home, ".config", "taskreview")
}

// setupLogging enables the debug log when requested. The returned cleanup is never nil.
func setupLogging(prefix string) (func(), error) {
	debug := os.Getenv("TASKREVIEW_DEBUG") != "" || debugFlag
	if !debug {
		return func() {}, nil
	}
	logPath := os.Getenv("TASKREVIEW_LOG")
	if logPath == "" {
		logPath = cfg.Log.File
	}
	if logPath == "" {
		logPath = "debug.log"
	}

	cleanup, err := log.InitWithTeaLog(logPath, prefix)
	if err != nil {
		return func() {}, fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	log.Info(log.CatConfig, "taskreview starting", "version", version, "logPath", logPath, "config", viper.ConfigFileUsed())
	return cleanup, nil
}

// openWorktree resolves the worktree to review and returns an executor rooted at it.
func openWorktree() (*git.RealExecutor, string, error) {
	workDir := cfg.Path
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting current directory: %w", err)
		}
	}

	exec := git.NewRealExecutor(workDir)
	if !exec.IsGitRepo() {
		return nil, "", fmt.Errorf("%s: %w", workDir, git.ErrNotGitRepo)
	}
	root, err := exec.GetRepoRoot()
	if err != nil {
		return nil, "", fmt.Errorf("resolving repository root: %w", err)
	}
	return git.NewRealExecutor(root), root, nil
}

func loadOptions(tracer trace.Tracer) git.LoadOptions {
	return git.LoadOptions{
		StatsOnly:          cfg.StatsOnly,
		MaxCumulativeBytes: cfg.Review.MaxCumulativeBytes,
		Tracer:             tracer,
	}
}

func runApp(cmd *cobra.Command, _ []string) error {
	cleanup, err := setupLogging("taskreview")
	defer cleanup()
	if err != nil {
		return err
	}

	if noAutoRefresh, _ := cmd.Flags().GetBool("no-auto-refresh"); noAutoRefresh {
		cfg.AutoRefresh = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	exec, root, err := openWorktree()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer()

	provider := render.NewProvider(cfg.Render, tracer)
	defer provider.Close()

	scroller := reviewpane.NewScroller()
	pane := review.New(review.ConfigFrom(cfg.Review, cfg.Render), review.Deps{
		Scroller: scroller,
		Renderer: provider,
		Clock:    clock.Real{},
		Tracer:   tracer,
	})
	defer pane.Close()

	var changes <-chan struct{}
	if cfg.AutoRefresh {
		w, err := watcher.New(watcher.Config{
			Root:        root,
			DebounceDur: cfg.AutoRefreshDebounce,
			IgnoreDirs:  watcher.DefaultIgnoreDirs,
		})
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer func() { _ = w.Stop() }()
		if changes, err = w.Start(); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
	}

	base := cfg.Base
	opts := loadOptions(tracer)
	load := func(ctx context.Context) ([]catalog.DiffRecord, error) {
		return git.LoadDiffs(ctx, exec, base, opts)
	}

	zone.NewGlobal()
	model := reviewpane.New(reviewpane.Options{
		Pane:         pane,
		Renderer:     provider,
		Scroller:     scroller,
		Load:         load,
		Changes:      changes,
		UI:           cfg.UI,
		LineHeight:   cfg.Review.LineHeight,
		ContextLines: cfg.Render.ContextLines,
		Context:      ctx,
	})
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	provider.OnReady(func(r render.Ready) {
		p.Send(reviewpane.RenderReadyMsg{Ready: r})
	})

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
