package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hotpath/internal/cli"
	"hotpath/internal/report"
	"hotpath/internal/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report <summary.json> <chat|msa>",
	Short: "Render a run summary as markdown",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := report.LoadSummary(args[0])
		if err != nil {
			return err
		}
		return report.WriteMarkdown(cmd.OutOrStdout(), s, args[1])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.Store) error {
			items, err := s.List()
			if err != nil {
				return err
			}
			cli.PrintHistory(cmd.OutOrStdout(), items)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.Store) error {
			it, err := s.Get(args[0])
			if err != nil {
				return err
			}
			return cli.PrintRun(cmd.OutOrStdout(), it)
		})
	},
}

func withStore(fn func(*storage.Store) error) error {
	path := resolveHistoryPath()
	if path == "" {
		return fmt.Errorf("no history file")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("no history at %s yet", path)
	}
	s, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyPath, "history", "", "run history file (default $HOME/.hotpath/history.db)")
	historyCmd.AddCommand(historyShowCmd)
}
