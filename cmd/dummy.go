package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hotpath/internal/dummy"
)

var dummyCfg dummy.ServerConfig

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Serve a local fake of the chat, session, orgHub and tenantHub APIs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server := dummy.New(dummyCfg, log).Start()

		<-cmd.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("dummy server stopping", zap.Int("port", dummyCfg.Port))
		return server.Shutdown(ctx)
	},
}

func init() {
	f := dummyCmd.Flags()
	f.IntVarP(&dummyCfg.Port, "port", "p", 8080, "port to listen on")
	f.StringVar(&dummyCfg.Email, "email", "admin@example.com", "accepted login email")
	f.StringVar(&dummyCfg.Password, "password", "pass1234", "accepted login password")
	f.DurationVar(&dummyCfg.Latency, "latency", 0, "max random delay added to each response")
	f.Float64Var(&dummyCfg.ErrorRate, "error-rate", 0, "share of load calls answered with 500 (0..1)")
	f.IntVar(&dummyCfg.KeepMessages, "keep-messages", dummy.DefaultKeepMessages, "message bodies kept per room")
}
