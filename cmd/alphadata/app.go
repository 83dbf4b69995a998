package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/alphadata/pkg/config"
	"github.com/ajitpratap0/alphadata/pkg/loader"
	"github.com/ajitpratap0/alphadata/pkg/logger"
	"github.com/ajitpratap0/alphadata/pkg/metrics"
	"github.com/ajitpratap0/alphadata/pkg/observability"
	"github.com/ajitpratap0/alphadata/pkg/registry"
)

// app holds everything a dataset command needs. It is built before the
// command runs and torn down after it.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	loader loader.Loader
	reg    *registry.Registry
	log    *zap.Logger

	closers []func(context.Context) error
}

// overrides maps viper keys to the config fields they replace when set by a
// flag or an ALPHADATA_* environment variable.
var overrides = []struct {
	key   string
	apply func(c *config.Config, v *viper.Viper, key string)
}{
	{"datasets.source", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.Source = v.GetString(k) }},
	{"datasets.root", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.Root = v.GetString(k) }},
	{"datasets.bucket", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.Bucket = v.GetString(k) }},
	{"datasets.prefix", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.Prefix = v.GetString(k) }},
	{"datasets.region", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.Region = v.GetString(k) }},
	{"datasets.index_column", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.IndexColumn = v.GetString(k) }},
	{"datasets.use_mmap", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.UseMmap = v.GetBool(k) }},
	{"datasets.preload", func(c *config.Config, v *viper.Viper, k string) { c.Datasets.Preload = v.GetStringSlice(k) }},
	{"logging.level", func(c *config.Config, v *viper.Viper, k string) { c.Logging.Level = v.GetString(k) }},
	{"logging.encoding", func(c *config.Config, v *viper.Viper, k string) { c.Logging.Encoding = v.GetString(k) }},
	{"observability.enable_metrics", func(c *config.Config, v *viper.Viper, k string) {
		c.Observability.EnableMetrics = v.GetBool(k)
	}},
	{"observability.metrics_addr", func(c *config.Config, v *viper.Viper, k string) {
		c.Observability.MetricsAddr = v.GetString(k)
	}},
	{"observability.enable_tracing", func(c *config.Config, v *viper.Viper, k string) {
		c.Observability.EnableTracing = v.GetBool(k)
	}},
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ALPHADATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("source", "", "Dataset source (file, s3, gcs)")
	flags.String("root", "", "Local directory holding dataset files")
	flags.String("bucket", "", "Object storage bucket")
	flags.String("prefix", "", "Key prefix of datasets inside the bucket")
	flags.String("region", "", "AWS region for the s3 source")
	flags.String("index-column", "", "Row-index column: auto, none or a field name")
	flags.Bool("mmap", true, "Memory-map uncompressed local parquet files")
	flags.StringSlice("preload", nil, "Datasets to materialize before the command runs")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "", "Log encoding (json, console)")
	flags.Bool("metrics", true, "Collect registry metrics")
	flags.String("metrics-addr", "", "Serve /metrics on this address while the command runs")
	flags.Bool("tracing", false, "Export registry spans to stderr")

	bindings := map[string]string{
		"config":                       "config",
		"datasets.source":              "source",
		"datasets.root":                "root",
		"datasets.bucket":              "bucket",
		"datasets.prefix":              "prefix",
		"datasets.region":              "region",
		"datasets.index_column":        "index-column",
		"datasets.use_mmap":            "mmap",
		"datasets.preload":             "preload",
		"logging.level":                "log-level",
		"logging.encoding":             "log-encoding",
		"observability.enable_metrics": "metrics",
		"observability.metrics_addr":   "metrics-addr",
		"observability.enable_tracing": "tracing",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig reads the optional config file and layers flags and environment
// variables on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	for _, o := range overrides {
		if v.IsSet(o.key) {
			o.apply(cfg, v, o.key)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) start(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	a.log = logger.With(zap.String("component", "cli"))

	ctx := cmd.Context()
	regOpts := []registry.Option{
		registry.WithLogger(logger.Get()),
		registry.WithPreloadConcurrency(cfg.Registry.PreloadConcurrency),
	}

	if cfg.Observability.EnableMetrics {
		promReg := prometheus.NewRegistry()
		regOpts = append(regOpts, registry.WithMetrics(metrics.NewRegistryMetrics(promReg)))
		if cfg.Observability.MetricsAddr != "" {
			a.serveMetrics(cfg.Observability.MetricsAddr, promReg)
		}
	}

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig(version)
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		tc.Writer = cmd.ErrOrStderr()
		tp, err := observability.InitTracing(tc)
		if err != nil {
			return err
		}
		regOpts = append(regOpts, registry.WithTracer(tp.Tracer(observability.TracerName)))
		a.closers = append(a.closers, func(ctx context.Context) error {
			return observability.Shutdown(ctx, tp)
		})
	}

	l, closer, err := loader.FromConfig(ctx, cfg.Datasets, loader.WithLogger(logger.Get()))
	if err != nil {
		return err
	}
	a.loader = l
	a.closers = append(a.closers, func(context.Context) error { return closer.Close() })

	a.reg = registry.New(l, regOpts...)
	a.closers = append(a.closers, func(context.Context) error {
		a.reg.Close()
		return nil
	})

	if len(cfg.Datasets.Preload) > 0 {
		if err := a.reg.Initialize(ctx, cfg.Datasets.Preload...); err != nil {
			return err
		}
	}

	a.log.Debug("dataset registry ready",
		zap.String("source", cfg.Datasets.Source),
		zap.Strings("preloaded", a.reg.Names()))
	return nil
}

func (a *app) serveMetrics(addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.closers = append(a.closers, srv.Shutdown)
}

// stop releases resources in reverse order of acquisition. It is safe to
// call when start failed or never ran.
func (a *app) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = logger.Sync()
	return errors.Join(errs...)
}
