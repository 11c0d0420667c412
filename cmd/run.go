package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hotpath/internal/cli"
	"hotpath/internal/config"
	"hotpath/internal/hotpath"
)

func newRunCmd(scenario, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   scenario,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := hotpath.Defaults(scenario)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v, defaults)
			if err != nil {
				return err
			}

			log.Info("run configured",
				zap.String("scenario", scenario),
				zap.Int("vus", cfg.VUs),
				zap.Duration("duration", cfg.Duration),
				zap.Duration("sleep", cfg.Sleep))

			summary, err := cli.Start(cmd.Context(), cfg, cli.Options{
				Scenario:    scenario,
				OutPrefix:   outPrefix,
				HistoryPath: resolveHistoryPath(),
				MetricsAddr: metricsAddr,
				Live:        liveView,
			}, cmd.OutOrStdout(), log)

			var setupErr *hotpath.SetupError
			switch {
			case errors.As(err, &setupErr):
				return &CodeError{Code: ExitSetupFailed, Err: err}
			case err != nil:
				return err
			case !summary.Passed:
				return &CodeError{Code: ExitThresholdsFailed, Err: errors.New("thresholds failed")}
			}
			return nil
		},
	}

	f := c.Flags()
	f.StringVarP(&outPrefix, "out", "o", "", "write <prefix>_summary.json and <prefix>.md")
	f.BoolVar(&liveView, "live", false, "show the live terminal view instead of the progress line")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	f.StringVar(&historyPath, "history", "", "run history file (default $HOME/.hotpath/history.db)")
	f.BoolVar(&noHistory, "no-history", false, "do not record this run")
	f.Int("vus", 0, "virtual users (overrides K6_VUS)")
	f.String("duration", "", "load duration (overrides K6_DURATION)")
	f.Int("sleep-ms", 0, "pause after each iteration in ms (overrides K6_SLEEP_MS)")

	c.PreRunE = func(cmd *cobra.Command, args []string) error {
		for flag, key := range map[string]string{
			"vus":      config.KeyVUs,
			"duration": config.KeyDuration,
			"sleep-ms": config.KeySleepMs,
		} {
			if cmd.Flags().Changed(flag) {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return c
}
