// Command xray-sampler runs an HTTP service whose spans are sampled by X-Ray
// centralized sampling rules, fetched from the X-Ray proxy or from Consul.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/server/systemsignal"
	"github.com/donetkit/contrib-xray/server/webserve"
	"github.com/donetkit/contrib-xray/tracer"
	"github.com/donetkit/contrib-xray/tracer/consul"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "xray-sampler",
		Short:        "Serve HTTP traffic sampled by X-Ray centralized sampling rules",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := systemsignal.HookSignals(cmd.Context())
			defer stop()
			return run(ctx, cfg, glog.New())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	return cmd
}

func run(ctx context.Context, cfg *Config, logger glog.ILogger) error {
	log := logger.WithField("XraySampler", "XraySampler")

	// Released when setup fails before the server takes them over.
	var cleanup cleanupStack
	served := false
	defer func() {
		if served {
			return
		}
		if err := cleanup.release(context.Background()); err != nil {
			log.Error(err, "release error")
		}
	}()

	res, err := tracer.DetectResource(ctx, cfg.ServiceName)
	if err != nil {
		return errors.Wrap(err, "detect resource error")
	}

	metricExporter, err := prometheus.New()
	if err != nil {
		return errors.Wrap(err, "create prometheus exporter error")
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricExporter), sdkmetric.WithResource(res))
	cleanup.push(mp.Shutdown)

	opts := []tracer.RemoteSamplerOption{
		tracer.WithLogger(logger),
		tracer.WithResource(res),
		tracer.WithMeterProvider(mp),
		tracer.WithSamplingRulesPollingInterval(cfg.RulesPollingInterval),
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	if client != nil {
		opts = append(opts, tracer.WithClient(client))
	} else {
		endpoint, err := cfg.endpointURL()
		if err != nil {
			return err
		}
		opts = append(opts, tracer.WithEndpoint(*endpoint))
	}

	sampler, err := tracer.NewRemoteSampler(ctx, opts...)
	if err != nil {
		return errors.Wrap(err, "create remote sampler error")
	}
	cleanup.push(sampler.Shutdown)

	spanExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return errors.Wrap(err, "create span exporter error")
	}
	traceServer := tracer.New(
		tracer.WithName(cfg.ServiceName),
		tracer.WithSampler(sampler),
		tracer.WithExporter(spanExporter),
		tracer.WithProviderResource(res),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", traceHandler(traceServer))

	log.Infof("sampler %s, client id %s", sampler.Description(), sampler.ClientID())
	served = true
	return webserve.New(
		webserve.WithServiceName(cfg.ServiceName),
		webserve.WithAddr(cfg.ListenAddress),
		webserve.WithHandler(mux),
		webserve.WithTracer(traceServer),
		webserve.WithShutdown(mp.Shutdown),
		webserve.WithLogger(logger),
	).Run(ctx)
}

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack []func(context.Context) error

func (s *cleanupStack) push(fn func(context.Context) error) {
	*s = append(*s, fn)
}

// release calls every function, newest first, and joins their errors.
func (s cleanupStack) release(ctx context.Context) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// newClient returns the Consul client when configured, nil otherwise.
func newClient(cfg *Config, logger glog.ILogger) (tracer.Client, error) {
	if cfg.Consul == nil {
		return nil, nil
	}
	opts := []consul.Option{consul.WithLogger(logger)}
	if cfg.Consul.Address != "" {
		opts = append(opts, consul.WithAddress(cfg.Consul.Address))
	}
	if cfg.Consul.Key != "" {
		opts = append(opts, consul.WithKey(cfg.Consul.Key))
	}
	if cfg.Consul.StatisticsPrefix != "" {
		opts = append(opts, consul.WithStatisticsPrefix(cfg.Consul.StatisticsPrefix))
	}
	client, err := consul.New(opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// traceHandler starts a server span per request, carrying the attributes
// sampling rules match on.
func traceHandler(s *tracer.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := s.Propagators.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		host := r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = h
		}
		ctx, span := s.Tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPathKey.String(r.URL.Path),
				semconv.ServerAddressKey.String(host),
			))
		defer span.End()

		s.Propagators.Inject(ctx, propagation.HeaderCarrier(w.Header()))
		_, _ = fmt.Fprintf(w, "sampled=%t\n", span.SpanContext().IsSampled())
	})
}
