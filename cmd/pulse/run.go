package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vshulcz/Clashpulse/internal/adapters/collector/host"
	promexp "github.com/vshulcz/Clashpulse/internal/adapters/exporter/prometheus"
	"github.com/vshulcz/Clashpulse/internal/adapters/http/ginserver"
	"github.com/vshulcz/Clashpulse/internal/adapters/http/ginserver/middlewares"
	journal "github.com/vshulcz/Clashpulse/internal/adapters/journal/file"
	"github.com/vshulcz/Clashpulse/internal/adapters/notify/webhook"
	"github.com/vshulcz/Clashpulse/internal/adapters/poller"
	"github.com/vshulcz/Clashpulse/internal/adapters/restapi"
	"github.com/vshulcz/Clashpulse/internal/adapters/transport/ws"
	"github.com/vshulcz/Clashpulse/internal/config"
	"github.com/vshulcz/Clashpulse/internal/domain"
	"github.com/vshulcz/Clashpulse/internal/ports"
	"github.com/vshulcz/Clashpulse/internal/services/backend"
	"github.com/vshulcz/Clashpulse/internal/services/events"
	"github.com/vshulcz/Clashpulse/internal/services/logbook"
	"github.com/vshulcz/Clashpulse/internal/services/rates"
	"github.com/vshulcz/Clashpulse/internal/services/stream"
)

const (
	shutdownTimeout  = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	mailboxCapacity  = 256
)

type app struct {
	cfg       config.PulseConfig
	logger    *zap.Logger
	bus       *events.Bus
	registry  *stream.Registry
	engine    *rates.Engine
	conns     *rates.ConnTracker
	book      *logbook.Book
	client    *restapi.Client
	backends  *backend.Service
	poller    *poller.Poller
	host      *host.Collector
	mailboxes []*events.Mailbox
	server    *http.Server
	closeRepo func()
}

// newApp wires every component. dialer may be nil for the websocket transport.
func newApp(ctx context.Context, cfg config.PulseConfig, logger *zap.Logger, dialer ports.StreamDialer) (*app, error) {
	if dialer == nil {
		dialer = ws.NewDialer(handshakeTimeout)
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		bus:    events.New(logger),
		engine: rates.NewEngine(cfg.HistorySize, logger),
		conns:  rates.NewConnTracker(),
		book:   logbook.New(cfg.LogBuffer),
		client: restapi.New(cfg.Backend, restapi.WithLogger(logger)),
	}
	a.registry = stream.NewRegistry(dialer, a.bus, logger, stream.WithHeartbeat(cfg.HeartbeatInterval))
	a.bus.Attach(a.engine, a.conns, a.book)
	a.bus.OnEvent(func(evt domain.Event) {
		if ex, ok := evt.(domain.SubscriptionExhausted); ok {
			logger.Error("subscription gave up",
				zap.Stringer("topic", ex.Source), zap.Int("attempts", ex.Attempts))
		}
	})

	if cfg.JournalFile != "" {
		a.attachMailbox(journal.New(cfg.JournalFile))
	}
	if cfg.WebhookURL != "" {
		hook, err := webhook.New(cfg.WebhookURL, nil)
		if err != nil {
			return nil, err
		}
		a.attachMailbox(hook)
	}

	repo, persister, closeRepo := buildRepo(ctx, cfg, logger)
	a.closeRepo = closeRepo
	opts := []backend.Option{
		backend.WithLogger(logger),
		backend.WithVersionChecker(a.client),
		backend.OnSwitch(a.client.Retarget),
		backend.OnSwitch(func(domain.Target) {
			a.engine.ResetAll()
			a.conns.Reset()
			a.book.Clear()
		}),
	}
	if persister != nil {
		opts = append(opts, backend.WithPersister(persister))
	}
	a.backends = backend.New(repo, a.registry, cfg.Topics, opts...)
	logger.Info("profile store ready", zap.String("kind", describeRepo(repo)))

	a.poller = poller.New(a.client, a.bus, logger)
	a.host = host.New(nil, a.engine, logger)

	exporter := promexp.NewRegistry(promexp.NewCollector(a.engine, a.registry))
	h := ginserver.NewHandler(ginserver.Deps{
		Streams:     a.registry,
		Rates:       a.engine,
		Connections: a.conns,
		Closer:      a.client,
		Logs:        a.book,
		Backends:    a.backends,
	})
	router := ginserver.NewRouter(h, promhttp.HandlerFor(exporter, promhttp.HandlerOpts{}), logger,
		middlewares.ZapLogger(logger),
		middlewares.BearerAuth(cfg.APIToken, "/ping"),
		middlewares.GzipRequest(),
		middlewares.GzipResponse(),
	)
	a.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

func (a *app) attachMailbox(next events.Observer) {
	mb := events.NewMailbox(next, mailboxCapacity, a.logger, events.WithFilter(events.Connectivity))
	a.mailboxes = append(a.mailboxes, mb)
	a.bus.Attach(mb)
}

// run serves the API and streams until ctx ends, then shuts everything down.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("local API listening", zap.String("addr", a.cfg.Address))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := a.backends.Start(gctx, a.cfg.Backend); err != nil {
		a.logger.Warn("initial subscribe incomplete", zap.Error(err))
	}
	if a.cfg.PollInterval > 0 && !slices.Contains(a.cfg.Topics, domain.ConnectionsTopic()) {
		a.poller.Start(gctx, a.cfg.PollInterval)
	}
	if a.cfg.HostInterval > 0 {
		a.host.Start(gctx, a.cfg.HostInterval)
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.poller.Stop()
	a.host.Stop()
	if err := a.registry.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, mb := range a.mailboxes {
		if err := mb.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeRepo()
	a.logger.Info("pulse stopped")
	return errors.Join(errs...)
}
