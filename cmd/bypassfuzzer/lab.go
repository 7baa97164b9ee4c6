package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/bypassfuzzer/internal/lab"
	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
)

func newLabCmd() *cobra.Command {
	cfg := lab.DefaultConfig()
	var addr string

	cmd := &cobra.Command{
		Use:   "lab",
		Short: "Serve a deliberately bypassable target for practice",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewConsole(verbose)
			srv := lab.New(cfg, log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				srv.Shutdown() //nolint:errcheck
			}()

			err := srv.Listen(addr)
			granted, denied := srv.Counts()
			log.Info("lab stopped", "granted", granted, "denied", denied)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	flags.StringVar(&cfg.Protected, "protected", cfg.Protected, "Guarded path")
	flags.StringVar(&cfg.TrustedIP, "trusted-ip", cfg.TrustedIP, "Address trusted in forwarding headers")
	flags.IntVar(&cfg.Limit, "limit", 0, "Requests per window before 429 (0 = unlimited)")
	flags.DurationVar(&cfg.Window, "window", time.Second, "Rate limit window")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every granted request")
	return cmd
}
