package cli

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/config"
	"github.com/existflow/slotflow/internal/form"
	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/tui"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	apiURL     string
)

var rootCmd = &cobra.Command{
	Use:   "slotflow",
	Short: "SlotFlow - Book course slots from the terminal",
	Long: `SlotFlow is a terminal client for the SlotFlow course booking API.
Learners browse courses and book or cancel slots, admins manage the catalog.

Run 'slotflow' without arguments to launch the interactive TUI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			logger.Warn("Failed to load .env", logger.F("error", err))
		}

		// Load config from file (or defaults if not exists)
		cfg, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			cfg = config.DefaultConfig()
		}

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}
		if cmd.Flags().Changed("api-url") {
			cfg.APIURL = apiURL
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := cfg.Save(); err != nil {
				logger.Warn("Failed to save config", logger.F("error", err))
			}
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("SlotFlow started", logger.F("command", cmd.CommandPath()), logger.F("api_url", cfg.APIURL))

		sess, err = openSession(cmd, cfg)
		if err != nil {
			return err
		}
		return sess.authorize(cmd)
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("Launching TUI")
		m, err := tui.NewModel(sess.cfg, sess.store)
		if err != nil {
			return err
		}
		defer m.Close()

		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error("TUI error", logger.F("error", err))
			return fmt.Errorf("failed to run TUI: %w", err)
		}

		logger.Info("TUI exited normally")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("SlotFlow exiting", logger.F("command", cmd.CommandPath()))
	},
}

// Execute runs the root command. Errors that were already shown to the
// user as notifications are not printed again.
func Execute() error {
	defer logger.Close()

	err := rootCmd.Execute()
	switch {
	case err == nil:
	case !shown(err):
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	case errors.Is(err, errLoginRequired):
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Run 'slotflow auth login' first.")
	}
	if sess != nil && sess.expired {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Run 'slotflow auth login' to sign in again.")
	}
	if err != nil {
		logger.Warn("Command failed", logger.F("error", err))
	}
	return err
}

func shown(err error) bool {
	var apiErr *api.Error
	var formErr *form.ValidationError
	var refusal notified
	switch {
	case errors.As(err, &refusal):
		return true
	case errors.As(err, &apiErr), errors.As(err, &formErr):
		return true
	case errors.Is(err, booking.ErrCourseFull), errors.Is(err, booking.ErrAlreadyBooked),
		errors.Is(err, booking.ErrNoActiveBooking), errors.Is(err, booking.ErrUnknownCourse),
		errors.Is(err, booking.ErrActionPending):
		return true
	}
	return false
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "SlotFlow API base URL")

	// Add subcommands
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(bookingsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
}
