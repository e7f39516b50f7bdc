// Server serves the user.* and post.* entry points over gRPC and the ops endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"server-actions/backend/internal/config"
	healthhandler "server-actions/backend/internal/health/handler"
	"server-actions/backend/internal/logging"
	"server-actions/backend/internal/metrics"
	"server-actions/backend/internal/ops"
	"server-actions/backend/internal/policy/engine"
	"server-actions/backend/internal/security"
	"server-actions/backend/internal/server"
	"server-actions/backend/internal/server/interceptors"
	"server-actions/backend/internal/store"
	"server-actions/backend/internal/telemetry"
	otelsetup "server-actions/backend/internal/telemetry/otel"
	"server-actions/backend/internal/telemetry/producer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func newPolicy(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*engine.OPAEvaluator, error) {
	src := engine.DefaultReadPolicy
	if cfg.PolicyFile != "" {
		var err error
		if src, err = engine.LoadPolicyFile(cfg.PolicyFile); err != nil {
			return nil, err
		}
		log.WithField("file", cfg.PolicyFile).Info("policy: loaded")
	}
	return engine.NewOPAEvaluator(ctx, src, log)
}

func newVerifier(cfg *config.Config, log logrus.FieldLogger) (*security.Verifier, error) {
	if cfg.JWTPublicKey == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_PUBLIC_KEY must be set when APP_ENV=production")
		}
		log.Warn("auth: JWT_PUBLIC_KEY not set; only public entry points are callable")
		return nil, nil
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
	}
	return security.NewVerifier(pub, cfg.JWTIssuer, cfg.JWTAudience), nil
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()

	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("store: close")
		}
	}()

	policy, err := newPolicy(ctx, cfg, log)
	if err != nil {
		return err
	}
	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return err
	}

	kafka, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		return err
	}
	var emitters []telemetry.EventEmitter
	if kafka != nil {
		emitters = append(emitters, kafka)
		log.WithField("topic", cfg.TelemetryKafkaTopic).Info("telemetry: kafka enabled")
	}
	if providers.Enabled() {
		emitters = append(emitters, otelsetup.NewEventEmitter(providers.LoggerProvider))
	}
	var async *telemetry.Async
	if emitter := telemetry.Multi(emitters...); emitter != nil {
		async = telemetry.NewAsync(emitter, log)
	}

	reg, err := server.NewRegistry(server.Deps{
		UserRepo:   st.Users,
		PostRepo:   st.Posts,
		ReadPolicy: policy,
	})
	if err != nil {
		return err
	}
	health := healthhandler.NewServer(st.Pinger, policy)
	m := metrics.New()
	grpcServer := server.NewGRPCServer(reg, health, server.Options{
		Verifier:    verifier,
		Metrics:     m,
		Telemetry:   async,
		RateLimiter: interceptors.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 0),
		Log:         log,
		Tracing:     providers.Enabled(),
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	errCh := make(chan error, 2)
	go func() {
		log.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
		errCh <- grpcServer.Serve(lis)
	}()

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           ops.NewRouter(ops.Options{Ready: health.Ready, Metrics: m.Handler(), Registry: reg, Log: log}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.WithField("addr", cfg.HTTPAddr).Info("ops HTTP listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case err := <-errCh:
		log.WithError(err).Error("server failed; shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()

	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, telemetry.ShutdownDrainDuration)
	if err := async.Wait(drainCtx); err != nil {
		log.WithError(err).Warn("telemetry: drain incomplete")
	}
	drainCancel()
	if err := kafka.Close(); err != nil {
		log.WithError(err).Warn("telemetry: kafka close")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("telemetry: otel shutdown")
	}
	log.Info("server stopped")
	return nil
}
