package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/vtour-agent-core/server/internal/agent/model"
	"github.com/vtour-agent-core/server/internal/api"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

var envFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tour-agent",
		Short:         "Conversational agent for virtual tour demos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.AddCommand(newServeCmd(), newAskCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.runSweepers(ctx)

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      api.NewServer(a.engine, cfg.Server.AllowedOrigin).Handler(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				logx.Info().Str("addr", srv.Addr).Msg("http server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logx.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}

func newAskCmd() *cobra.Command {
	var in model.QueryInput
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Run a single turn against the engine and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			in.Query = strings.Join(args, " ")
			resp, err := a.engine.Handle(cmd.Context(), model.AgentRequest{
				Message:   in.Query,
				DemoID:    in.DemoID,
				SessionID: in.SessionID,
				Locale:    model.ParseLocale(in.Locale),
				CallerID:  "cli",
			})
			if err != nil {
				return err
			}
			out, err := sonic.ConfigStd.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&in.DemoID, "demo", "", "demo slug")
	cmd.Flags().StringVar(&in.SessionID, "session", "", "session id to continue")
	cmd.Flags().StringVar(&in.Locale, "locale", "en", "en or ar")
	_ = cmd.MarkFlagRequired("demo")
	return cmd
}
