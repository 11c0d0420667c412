package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hotpath/internal/banner"
	"hotpath/internal/config"
	"hotpath/internal/hotpath"
	"hotpath/internal/logging"
	"hotpath/internal/storage"
	"hotpath/internal/tui/styles"
)

// Process exit codes, matching what CI already expects from k6.
const (
	ExitThresholdsFailed = 99
	ExitSetupFailed      = 107
	ExitError            = 1
)

// CodeError carries a process exit code up to main.
type CodeError struct {
	Code int
	Err  error
}

func (e *CodeError) Error() string { return e.Err.Error() }
func (e *CodeError) Unwrap() error { return e.Err }

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	outPrefix   string
	historyPath string
	noHistory   bool
	metricsAddr string
	liveView    bool

	v   = config.NewViper()
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "hotpath",
	Short: "hotpath - chat platform hot path load tests",
	Long: `
hotpath drives the chat platform's busiest request paths under load.

Scenarios:
  chat  login, create one room, then every VU posts messages into it
  msa   orgHub login, then message create, presence update and tenant
        list across the chat, session and tenantHub services

Runs are configured through the environment (BASE_URL, CHAT_BASE_URL,
SESSION_BASE_URL, ORGHUB_BASE_URL, TENANTHUB_BASE_URL, TENANT_ID,
SMOKE_EMAIL, SMOKE_PASSWORD, K6_VUS, K6_DURATION, K6_SLEEP_MS) or a YAML
file passed with --config.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logLevel, logFormat)
		if err != nil {
			return err
		}
		log = l
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString("chat · session · orgHub · tenantHub"))
		_ = cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		if codeErr.Code != ExitThresholdsFailed {
			fmt.Fprintln(os.Stderr, styles.Error.Render(codeErr.Error()))
		}
		return codeErr.Code
	}
	fmt.Fprintln(os.Stderr, styles.Error.Render(err.Error()))
	return ExitError
}

func init() {
	rootCmd.AddCommand(newRunCmd(hotpath.ChatName, "Single-service chat hot path"))
	rootCmd.AddCommand(newRunCmd(hotpath.MSAName, "Cross-service MSA hot path"))
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dummyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file (default is $HOME/.hotpath.yaml if present)")
	pf.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", logging.FormatConsole, "console or json")
}

func initConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		log.Debug("config loaded", zap.String("file", v.ConfigFileUsed()))
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(".hotpath")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func resolveHistoryPath() string {
	if noHistory {
		return ""
	}
	if historyPath != "" {
		return historyPath
	}
	p, err := storage.DefaultPath()
	if err != nil {
		log.Warn("history disabled", zap.Error(err))
		return ""
	}
	return p
}
