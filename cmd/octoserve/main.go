package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coffyg/octoserve"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	configPath := flag.String("config", octoserve.DefaultConfigPath, "path to the settings file")
	noWait := flag.Bool("no-wait", false, "exit on startup errors without waiting for Enter")
	flag.Parse()

	stdin := bufio.NewReader(os.Stdin)

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	octoserve.SetupLogger(&log)

	if err := run(context.Background(), *configPath, stdin, &log); err != nil {
		log.Error().Stack().Err(err).Msg("[octoserve] fatal error")
		if !*noWait {
			finishWait(stdin)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, stdin io.Reader, log *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("[octoserve] Starting web server...")

	cfg, err := octoserve.LoadConfig(configPath)
	if err != nil {
		log.Error().Msg("[octoserve] The config cannot be properly parsed. Aborting the startup of the web server until the config file can be accessed.")
		return err
	}
	leveled := log.Level(cfg.Level())
	octoserve.SetupLogger(&leveled)

	if err := octoserve.Bootstrap(cfg.Root); err != nil {
		return err
	}

	shutdownMetrics, err := setupMetrics(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			leveled.Warn().Err(err).Msg("[octoserve] failed to flush metrics")
		}
	}()

	srv := octoserve.NewServer(cfg)
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	stopped := make(chan struct{})
	go func() {
		ok, err := octoserve.NewController(srv, os.Stdout).Run(ctx, stdin)
		if err != nil {
			leveled.Warn().Err(err).Msg("[octoserve] command input closed")
		}
		if ok {
			close(stopped)
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-stopped:
		return nil
	case <-ctx.Done():
		leveled.Info().Msg("[octoserve] Stopping the web server...")
		return srv.Close()
	}
}

// setupMetrics installs an OTLP/gRPC meter provider when an endpoint is
// configured. The returned function flushes and stops it.
func setupMetrics(ctx context.Context, cfg *octoserve.Config) (func(context.Context) error, error) {
	if cfg.MetricsEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.MetricsEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics exporter")
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

func finishWait(stdin *bufio.Reader) {
	fmt.Println("Press enter to continue...")
	stdin.ReadString('\n')
}
