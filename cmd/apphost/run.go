package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PaulAvery/app"
	"github.com/PaulAvery/app/obsx"
	"github.com/PaulAvery/app/runtimex"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the demo components and serve until shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		return run(cmd.Context(), s)
	},
}

func init() {
	registerFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context, s Settings, extra ...app.Option) error {
	provider, err := obsx.NewProvider(ctx, obsx.Options{ServiceName: s.Name, ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("metrics provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	if err := provider.EnableRuntimeMetrics(); err != nil {
		return fmt.Errorf("runtime metrics: %w", err)
	}
	metrics, err := obsx.NewMetrics(provider)
	if err != nil {
		return fmt.Errorf("lifecycle metrics: %w", err)
	}

	a, err := newHost(s, provider, metrics, extra...)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func newHost(s Settings, provider *obsx.Provider, metrics *obsx.Metrics, extra ...app.Option) (*app.App, error) {
	opts := []app.Option{
		app.WithShutdownTimeout(s.ShutdownTimeout),
		app.WithSignals(!s.NoSignals),
		app.WithMetrics(metrics),
	}
	if s.Debug {
		opts = append(opts, app.WithDebugLogs(true))
	}

	a, err := app.New(s.Name, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}

	for _, c := range []app.Component{
		runtimex.Diagnostics(s.DiagAddr, runtimex.WithMetricsHandler(provider.Handler())),
		dbComponent(s.ConnectDelay),
		apiComponent(),
	} {
		if err := a.Register(c); err != nil {
			return nil, err
		}
	}
	return a, nil
}
