package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dukerupert/nudge/internal/config"
	"github.com/dukerupert/nudge/internal/database"
	"github.com/dukerupert/nudge/internal/logging"
	"github.com/dukerupert/nudge/internal/metrics"
	"github.com/dukerupert/nudge/internal/notify"
	"github.com/dukerupert/nudge/internal/registry"
	"github.com/dukerupert/nudge/internal/store"
	"github.com/dukerupert/nudge/internal/sweep"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	loc      *time.Location
	coll     *store.Collection
	registry *registry.Registry
	metrics  *metrics.Metrics
	closers  []func() error
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	a := &app{cfg: cfg, logger: logger, loc: loc}

	backend, err := a.openBackend(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.coll = store.NewCollection(backend)
	a.registry = registry.New(a.coll, logger.With("component", "registry"),
		registry.WithLocation(loc),
		registry.WithRejectPastDue(cfg.Registry.RejectPastDue),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)

	return a, nil
}

func (a *app) openBackend(ctx context.Context) (store.Backend, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.BackendMemory:
		a.logger.Warn("using in-memory store, reminders will not survive a restart")
		return store.NewMemory(), nil

	case config.BackendFile:
		return store.NewFile(sc.File), nil

	case config.BackendSQLite:
		db, err := database.Open(sc.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return store.NewSQLite(db), nil

	case config.BackendNATS:
		nc, err := nats.Connect(sc.NATS.URL, nats.Name("nudge"))
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		return store.NewNATS(ctx, nc, sc.NATS.Bucket)

	case config.BackendS3:
		return store.NewS3(store.S3Config{
			Endpoint:  sc.S3.Endpoint,
			Bucket:    sc.S3.Bucket,
			Region:    sc.S3.Region,
			AccessKey: sc.S3.AccessKey,
			SecretKey: sc.S3.SecretKey,
			Prefix:    sc.S3.Prefix,
		}), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

func (a *app) notifier() (notify.Notifier, error) {
	nc := a.cfg.Notify
	return notify.New(notify.Config{
		Backend: nc.Backend,
		To:      nc.To,
		ToName:  nc.ToName,
		Timeout: nc.Timeout,
		Postmark: notify.PostmarkConfig{
			ServerToken: nc.Postmark.ServerToken,
			From:        nc.Postmark.From,
			APIURL:      nc.Postmark.APIURL,
		},
		EmailJS: notify.EmailJSConfig{
			ServiceID:  nc.EmailJS.ServiceID,
			TemplateID: nc.EmailJS.TemplateID,
			PublicKey:  nc.EmailJS.PublicKey,
			PrivateKey: nc.EmailJS.PrivateKey,
			APIURL:     nc.EmailJS.APIURL,
		},
	}, a.logger.With("component", "notify"))
}

func (a *app) engine(opts ...sweep.Option) (*sweep.Engine, error) {
	n, err := a.notifier()
	if err != nil {
		return nil, err
	}
	opts = append([]sweep.Option{sweep.WithLocation(a.loc), sweep.WithMetrics(a.metrics)}, opts...)
	return sweep.NewEngine(a.coll, n, a.logger.With("component", "sweep"), opts...), nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
