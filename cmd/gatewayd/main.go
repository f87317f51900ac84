// Command gatewayd runs the Martin RPC gateway: it loads the accounts/
// endpoints config, opens a gRPC listener on localhost:50051, and serves
// Prometheus metrics on :9090 until SIGINT/SIGTERM.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/lilwiggy/ex-act/internal/config"
	"github.com/lilwiggy/ex-act/internal/driver/binance"
	"github.com/lilwiggy/ex-act/internal/driver/bitfinex"
	"github.com/lilwiggy/ex-act/internal/driver/ftx"
	"github.com/lilwiggy/ex-act/internal/driver/huobi"
	"github.com/lilwiggy/ex-act/pkg/gateway"
	"github.com/lilwiggy/ex-act/pkg/gatewaypb"
	"github.com/lilwiggy/ex-act/pkg/session"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

const (
	grpcAddr    = "localhost:50051"
	metricsAddr = ":9090"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfgPath := "config.yaml"
	if p := os.Getenv("GATEWAYD_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfgPath).Msg("failed to load config")
		os.Exit(1)
	}

	registry := session.NewRegistry(cfg, buildAdapter)

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", grpcAddr).Msg("failed to open gRPC listener")
	}

	grpcServer := grpc.NewServer(
		grpc.CustomCodec(gatewaypb.Codec{}),
		grpc.UnaryInterceptor(gateway.MetricsInterceptor),
	)
	gatewaypb.RegisterMartinServer(grpcServer, gateway.NewServer(registry))

	go func() {
		log.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", metricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	grpcServer.GracefulStop()
	metricsServer.Close()
	registry.Close()
}

// buildAdapter dispatches on account.Exchange to the venue-specific
// constructor. endpoints is not read: every adapter uses the URLs baked
// into its own REST/WS clients.
func buildAdapter(account config.Account, endpoints config.Endpoints) (venue.Adapter, error) {
	switch account.Exchange {
	case "reference", "binance":
		return binance.NewAdapter(account.APIKey, account.APISecret, account.TestNet)
	case "huobi":
		return huobi.NewAdapter(account.APIKey, account.APISecret, account.TestNet), nil
	case "bitfinex":
		return bitfinex.NewAdapter(account.APIKey, account.APISecret), nil
	case "ftx":
		return ftx.NewAdapter(account.APIKey, account.APISecret), nil
	default:
		return nil, fmt.Errorf("gatewayd: unknown exchange %q for account %q", account.Exchange, account.Name)
	}
}
