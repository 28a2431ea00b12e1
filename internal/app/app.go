// Package app composes the detector client, refresh loop, page and
// dashboard server into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/mdpanel/internal/alarm"
	"github.com/HerbHall/mdpanel/internal/config"
	"github.com/HerbHall/mdpanel/internal/detector"
	"github.com/HerbHall/mdpanel/internal/discovery"
	"github.com/HerbHall/mdpanel/internal/dispatch"
	"github.com/HerbHall/mdpanel/internal/metrics"
	"github.com/HerbHall/mdpanel/internal/page"
	"github.com/HerbHall/mdpanel/internal/reconcile"
	"github.com/HerbHall/mdpanel/internal/refresh"
	"github.com/HerbHall/mdpanel/internal/scheduler"
	"github.com/HerbHall/mdpanel/internal/server"
)

const shutdownTimeout = 10 * time.Second

// Option customizes an App.
type Option func(*options)

type options struct {
	publisher alarm.Publisher
}

// WithPublisher relays outcomes through pub instead of dialing the
// configured MQTT broker.
func WithPublisher(pub alarm.Publisher) Option {
	return func(o *options) { o.publisher = pub }
}

// App is a fully wired dashboard.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	client     *detector.Client
	aggregator *refresh.Aggregator
	page       *page.Model
	reconciler *reconcile.Reconciler
	scheduler  *scheduler.Scheduler
	dispatcher *dispatch.Dispatcher
	relay      *alarm.Relay
	server     *server.Server
}

// New wires an App for the detector at cfg.Detector.URL.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	client, err := detector.New(detector.Config{
		BaseURL:         cfg.Detector.URL,
		Timeout:         cfg.Detector.Timeout,
		IdentifierField: cfg.Detector.IdentifierField,
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		client:   client,
		page:     page.NewModel(),
	}
	a.aggregator = refresh.New(client, logger.Named("refresh"), m)
	a.reconciler = reconcile.New(a.page, logger.Named("reconcile"))
	a.scheduler = scheduler.New(cfg.Refresh.Interval, a.cycle, logger.Named("scheduler"), m)
	a.dispatcher = dispatch.New(client, a.scheduler, logger.Named("dispatch"), m)

	pub := o.publisher
	if pub == nil && cfg.MQTT.Enabled {
		pub, err = alarm.DialMQTT(alarm.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Timeout:  cfg.Detector.Timeout,
		}, logger.Named("mqtt"))
		if err != nil {
			return nil, err
		}
	}
	if pub != nil {
		a.relay = alarm.NewRelay(pub, cfg.MQTT.Topic, logger.Named("alarm"))
	}

	a.server = server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ActionRate:      cfg.Server.ActionRate,
		ActionBurst:     cfg.Server.ActionBurst,
		RefreshInterval: cfg.Refresh.Interval,
		DetectorURL:     client.BaseURL(),
	}, a.page, a.dispatcher, a.scheduler, reg, logger.Named("http"))

	return a, nil
}

// Page returns the live page model.
func (a *App) Page() *page.Model { return a.page }

// Handler returns the dashboard's HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Run serves the dashboard and runs the refresh loop until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	a.logger.Info("mdpanel ready",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("detector", a.client.BaseURL()),
	)
	err := g.Wait()

	a.dispatcher.Wait()
	if a.relay != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Detector.Timeout)
		defer cancel()
		if cerr := a.relay.Close(closeCtx); cerr != nil {
			a.logger.Warn("alarm relay close", zap.Error(cerr))
		}
	}
	a.logger.Info("mdpanel stopped")
	return err
}

// cycle is one scheduler cycle: fetch, reconcile, then notify observers.
func (a *App) cycle(ctx context.Context) {
	o := a.aggregator.Refresh(ctx)
	a.reconciler.Apply(o)

	if o.Status.OK() {
		a.metrics.SetAlarm(o.Status.Value.Alarm)
	}
	if a.relay != nil {
		a.relay.Observe(ctx, o)
	}
}

// ResolveDetectorURL returns cfg.Detector.URL, or the first detector found
// through mDNS when it is empty.
func ResolveDetectorURL(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, error) {
	if cfg.Detector.URL != "" {
		return cfg.Detector.URL, nil
	}
	logger.Info("detector.url not set, searching with mDNS",
		zap.String("service", cfg.Discovery.Service),
		zap.String("prefix", cfg.Discovery.InstancePrefix),
	)
	found, err := discovery.Discover(ctx, discovery.Config{
		Service:        cfg.Discovery.Service,
		InstancePrefix: cfg.Discovery.InstancePrefix,
		Timeout:        cfg.Discovery.Timeout,
	}, logger.Named("discovery"))
	if err != nil {
		return "", fmt.Errorf("discover detector: %w", err)
	}
	if len(found) == 0 {
		return "", errors.New("no detector found; set detector.url")
	}
	if len(found) > 1 {
		logger.Warn("several detectors found, using the first",
			zap.Int("count", len(found)),
			zap.String("base_url", found[0].BaseURL),
		)
	}
	return found[0].BaseURL, nil
}
