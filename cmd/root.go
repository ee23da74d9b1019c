package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pitt-crc/starfish-api-client/config"
	"github.com/pitt-crc/starfish-api-client/starfish"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	client  *starfish.Client

	// Command flags
	modeOverride string

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "starfish",
	Short: "A command line client for the Starfish storage API",
	Long: `starfish talks to a Starfish storage-management server. It lists volumes
and their top level directories, reports user and group membership, and runs
asynchronous file queries whose results can be narrowed with filter expressions.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// SetVersion records build information for the version and update commands
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeOverride, "mode", "", "execution mode: blocking or non-blocking (overrides client.mode)")

	rootCmd.AddCommand(testCmd)
}

// initializeApp initializes the configuration and the API client
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging, os.Stderr)

	// Override execution mode from command line if specified
	if cmd.Flags().Changed("mode") {
		cfg.Client.Mode = modeOverride
	}

	opts, err := cfg.ClientOptions()
	if err != nil {
		return err
	}
	opts = append(opts, starfish.WithUserAgent("starfish-cli/"+version))

	client, err = starfish.NewClient(cfg.Server.URL, cfg.Credentials(), logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Starfish client: %w", err)
	}

	logger.Debug().
		Str("url", cfg.Server.URL).
		Stringer("mode", client.Mode()).
		Msg("Starfish client ready")
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig, out *os.File) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(out).With().Timestamp().Logger()
	}

	return consoleLogger(out, cfg.Color && isTerminal(out))
}

func consoleLogger(w io.Writer, color bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !color,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:     "test",
	Short:   "Test connection to Starfish",
	Long:    `Authenticate against the Starfish server and list its volumes.`,
	PreRunE: initializeApp,
	RunE:    runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	fmt.Printf("Testing connection to Starfish at %s...\n", cfg.Server.URL)

	ctx := cmd.Context()
	if err := client.TestConnection(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Connection successful!")

	names, err := client.VolumeNames(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("\nStarfish Statistics:\n")
	fmt.Printf("- Execution mode: %s\n", client.Mode())
	fmt.Printf("- Total volumes: %d\n", len(names))
	for _, name := range names {
		fmt.Printf("  • %s\n", name)
	}
	return nil
}
