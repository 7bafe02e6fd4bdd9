// Package app is the composition root: it builds every component
// from config.Config exactly once at startup and wires them together
// with no back-edges — the monitor holds the executor and notifier it
// needs, nothing holds a reference back to the monitor except the
// thin api.Monitor interface api.Server was given.
//
// This replaces the cyclic global-variable wiring of
// original_source/main.py (trading_executor/price_monitor module
// globals referencing each other) with a single constructed object
// graph, following the composition pattern the teacher's main.go uses
// for its own services.
package app

import (
	"context"
	"fmt"

	"arbigate/api"
	"arbigate/audit"
	"arbigate/config"
	"arbigate/executor"
	"arbigate/logger"
	"arbigate/monitor"
	"arbigate/notifier"
	"arbigate/venue"
)

// Application owns every long-lived component of the process.
type Application struct {
	Router   *venue.Router
	Monitor  *monitor.Monitor
	Executor *executor.Executor
	Notifier *notifier.Notifier
	Audit    audit.Sink
	Server   *api.Server
}

var allPairs = []monitor.Pair{
	{A: venue.M, B: venue.B},
	{A: venue.G, B: venue.B},
}

// New constructs the full object graph from cfg. It never starts the
// monitor or HTTP server; call Run to start the HTTP server once
// construction is complete, so a caller can inspect the graph (e.g. in
// tests) before anything begins polling venues.
func New(cfg *config.Config) (*Application, error) {
	router := buildRouter(cfg)
	if len(router.Registered()) == 0 {
		return nil, fmt.Errorf("app: no venue credentials configured")
	}

	var sink audit.Sink = audit.NoopSink{}
	if cfg.AuditDir != "" {
		csvSink, err := audit.NewCSVSink(cfg.AuditDir)
		if err != nil {
			return nil, fmt.Errorf("app: audit sink: %w", err)
		}
		sink = csvSink
	}

	notif := notifier.New(cfg.NotifierToken, cfg.NotifierChatID)
	exec := executor.New(router, notif, sink)

	pairs := activePairs(router)

	mon := monitor.New(monitor.Config{
		Router:       router,
		Executor:     exec,
		Notifier:     notif,
		Audit:        sink,
		Symbols:      venue.Whitelist,
		Pairs:        pairs,
		Thresholds:   monitor.DefaultThresholds(),
		TickInterval: cfg.MonitorTickInterval,
	})

	// Progress lines mirror main.py::initialize_components's
	// initialization_details appends, surfaced through /api/status and
	// echoed in the 503 body any read endpoint returns until SetReady.
	server := api.New(router, mon, venue.Whitelist, cfg.APIServerPort)
	server.AddDetail("거래소 연결 중...")
	server.AddDetail("✅ 거래소 연결 완료")
	server.AddDetail("가격 모니터링 시스템 초기화 중...")
	server.AddDetail("✅ 가격 모니터링 시스템 초기화 완료")

	return &Application{
		Router:   router,
		Monitor:  mon,
		Executor: exec,
		Notifier: notif,
		Audit:    sink,
		Server:   server,
	}, nil
}

func buildRouter(cfg *config.Config) *venue.Router {
	var adapters []venue.Adapter
	if vc, ok := cfg.Venues[venue.M]; ok {
		adapters = append(adapters, venue.NewMEXC(vc))
	}
	if vc, ok := cfg.Venues[venue.G]; ok {
		adapters = append(adapters, venue.NewGate(vc))
	}
	if vc, ok := cfg.Venues[venue.B]; ok {
		adapters = append(adapters, venue.NewBitget(vc))
	}
	return venue.NewRouter(adapters...)
}

// activePairs keeps only the pairs whose both venues actually have
// adapters registered, so a deployment with only M and B configured
// doesn't poll a G leg that will only ever error.
func activePairs(router *venue.Router) []monitor.Pair {
	out := make([]monitor.Pair, 0, len(allPairs))
	for _, p := range allPairs {
		if router.Has(p.A) && router.Has(p.B) {
			out = append(out, p)
		}
	}
	return out
}

// Run starts the HTTP server and marks the application ready. The
// monitor is not started automatically; trading begins only once an
// operator calls POST /api/trading/start, matching the original
// system's explicit start/stop control.
func (a *Application) Run(ctx context.Context) {
	a.Server.Start()
	a.Server.SetReady()
	logger.Log.Info("app: ready")
}

// Shutdown stops the monitor and the HTTP server.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Monitor.Stop()
	return a.Server.Shutdown(ctx)
}
