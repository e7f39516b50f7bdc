// Package server assembles the gRPC server: entry point registry, health service and interceptor chain.
package server

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"server-actions/backend/internal/action"
	healthhandler "server-actions/backend/internal/health/handler"
	"server-actions/backend/internal/metrics"
	posthandler "server-actions/backend/internal/post/handler"
	postrepo "server-actions/backend/internal/post/repository"
	"server-actions/backend/internal/security"
	"server-actions/backend/internal/server/interceptors"
	"server-actions/backend/internal/telemetry"
	userhandler "server-actions/backend/internal/user/handler"
	userrepo "server-actions/backend/internal/user/repository"
)

// Deps holds the persistence and policy dependencies of the entry points.
type Deps struct {
	// UserRepo backs user.*. If nil, user entry points return Unimplemented.
	UserRepo userrepo.Repository
	// PostRepo backs post.*. If nil, post entry points return Unimplemented.
	PostRepo postrepo.Repository
	// ReadPolicy decides post visibility. If nil, the built-in rule applies.
	ReadPolicy posthandler.ReadPolicy
}

// NewRegistry declares every entry point.
//
// Domain → handler mapping:
//   - user.* → internal/user/handler
//   - post.* → internal/post/handler
func NewRegistry(deps Deps) (*action.Registry, error) {
	reg := action.NewRegistry()
	if err := reg.Add(userhandler.NewServer(deps.UserRepo).EntryPoints()...); err != nil {
		return nil, err
	}
	if err := reg.Add(posthandler.NewServer(deps.PostRepo, deps.ReadPolicy).EntryPoints()...); err != nil {
		return nil, err
	}
	return reg, nil
}

// healthMethods are served without a token and excluded from telemetry and rate limiting.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// PublicMethods returns the full methods that run without a caller identity: the registry's public
// entry points plus the health service.
func PublicMethods(reg *action.Registry) map[string]bool {
	out := reg.PublicMethods()
	for m := range healthMethods {
		out[m] = true
	}
	return out
}

// Options configures the interceptor chain. Nil fields disable the corresponding interceptor.
type Options struct {
	Verifier    *security.Verifier
	Metrics     *metrics.Metrics
	Telemetry   *telemetry.Async
	RateLimiter *interceptors.RateLimiter
	Log         logrus.FieldLogger
	// Tracing installs the otelgrpc stats handler; it uses the global OTel providers.
	Tracing bool
}

// RegisterServices registers the entry point services and the health service with s.
func RegisterServices(s grpc.ServiceRegistrar, reg *action.Registry, health *healthhandler.Server) {
	reg.Register(s)
	if health != nil {
		healthpb.RegisterHealthServer(s, health)
	}
}

// NewGRPCServer returns a server with every service registered. The interceptor order is
// metrics → auth → telemetry → logging → rate limit, so metrics see auth rejections and
// telemetry and logs carry the resolved caller.
func NewGRPCServer(reg *action.Registry, health *healthhandler.Server, opts Options) *grpc.Server {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	names := interceptors.ActionNamer(func(fullMethod string) string {
		if ep, ok := reg.LookupMethod(fullMethod); ok {
			return ep.Name()
		}
		return ""
	})
	onReject := func(fullMethod string) { opts.Metrics.Throttled(names(fullMethod)) }

	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			interceptors.MetricsUnary(opts.Metrics, names),
			interceptors.AuthUnary(opts.Verifier, PublicMethods(reg), log),
			interceptors.TelemetryUnary(opts.Telemetry, names, healthMethods),
			interceptors.LoggingUnary(log, names),
			interceptors.RateLimitUnary(opts.RateLimiter, healthMethods, onReject, log),
		),
	}
	if opts.Tracing {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	s := grpc.NewServer(serverOpts...)
	RegisterServices(s, reg, health)
	return s
}
