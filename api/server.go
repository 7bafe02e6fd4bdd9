// Package api implements the read-only HTTP control surface: gap and
// balance snapshots plus start/stop/status control of the monitor
// loop. Grounded on the teacher's api/server.go (gin.Engine, CORS
// middleware, graceful http.Server shutdown) and on
// original_source/main.py's Flask routes, which this package
// reproduces endpoint-for-endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"arbigate/logger"
	"arbigate/monitor"
	"arbigate/venue"
)

// usdtToKRW mirrors main.py::format_orderbook_data's display
// conversion; not a live FX rate.
const usdtToKRW = 1300

var kst = mustLoadKST()

func mustLoadKST() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Monitor is the subset of monitor.Monitor the HTTP surface drives.
type Monitor interface {
	Start(ctx context.Context) error
	Stop()
	Status() string
}

// refVenue is the venue every orderbook gap is computed against,
// matching main.py::api_get_orderbook's reference to Bitget.
const refVenue = venue.B

// displayVenues lists the venues an orderbook snapshot reports, in the
// order main.py::api_get_orderbook appends them: MEXC, Gate.io,
// Bitget.
var displayVenues = []venue.ID{venue.M, venue.G, venue.B}

// Server is the HTTP control surface (C7).
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	port       int

	venueRouter *venue.Router
	mon         Monitor

	symbols []venue.Symbol
	depth   int

	mu      sync.Mutex
	status  string
	details []string
	ready   bool
}

// New builds the gin server. The server starts in a not-ready state;
// call AddDetail as components come up and SetReady once every
// configured venue adapter has been constructed, so /api/orderbook
// and /api/balance stop returning 503.
func New(venueRouter *venue.Router, mon Monitor, symbols []venue.Symbol, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(corsMiddleware())

	s := &Server{
		router:      router,
		port:        port,
		venueRouter: venueRouter,
		mon:         mon,
		symbols:     symbols,
		depth:       3,
		status:      "Starting...",
	}
	s.setupRoutes()
	return s
}

// AddDetail appends one line to the initialization progress log,
// mirroring main.py::initialize_components's initialization_details
// appends. Safe to call concurrently.
func (s *Server) AddDetail(detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = append(s.details, detail)
	s.status = detail
}

// SetReady marks the server as having finished startup; orderbook and
// balance endpoints serve data from this point on.
func (s *Server) SetReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = "Ready"
	s.ready = true
}

func (s *Server) snapshot() (ready bool, status string, details []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready, s.status, append([]string(nil), s.details...)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	group := s.router.Group("/api")
	{
		group.GET("/status", s.handleStatus)
		group.GET("/current_time", s.handleCurrentTime)
		group.GET("/orderbook", s.handleOrderbook)
		group.GET("/balance", s.handleBalance)
		group.POST("/trading/start", s.handleTradingStart)
		group.POST("/trading/stop", s.handleTradingStop)
		group.GET("/trading/status", s.handleTradingStatus)
	}
}

// handleStatus mirrors main.py::get_status.
func (s *Server) handleStatus(c *gin.Context) {
	ready, status, details := s.snapshot()
	c.JSON(http.StatusOK, gin.H{
		"initialized": ready,
		"status":      status,
		"details":     details,
	})
}

// serviceUnavailable mirrors the 503 body every main.py route returns
// while is_initialized is false: the error plus the same status and
// details an /api/status poll would show.
func (s *Server) serviceUnavailable(c *gin.Context) {
	_, status, details := s.snapshot()
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":   "system initializing, please wait...",
		"status":  status,
		"details": details,
	})
}

// handleCurrentTime mirrors main.py::get_current_time_api.
func (s *Server) handleCurrentTime(c *gin.Context) {
	now := time.Now().In(kst)
	c.JSON(http.StatusOK, gin.H{
		"timestamp":      now.UnixMilli(),
		"timezone":       "Asia/Seoul",
		"formatted_time": now.Format("15:04:05"),
	})
}

type orderbookLevel = [3]float64 // price, qty, notional

type orderbookEntry struct {
	Exchange     string         `json:"exchange"`
	Symbol       string         `json:"symbol"`
	Asks         []orderbookLevel `json:"asks"`
	Bids         []orderbookLevel `json:"bids"`
	LastPrice    string         `json:"last_price"`
	LastPriceKRW string         `json:"last_price_krw"`
	PriceGap     string         `json:"price_gap"`
	PriceGapUSDT string         `json:"price_gap_usdt"`
	Timestamp    int64          `json:"timestamp"`
}

// handleOrderbook mirrors main.py::api_get_orderbook: for every
// symbol it fetches MEXC, Gate.io, and Bitget directly from their
// venue adapters and composes the snapshot inline. This path is
// independent of the monitor loop — it serves live data regardless of
// whether the monitor has ever ticked, and never reads or writes
// monitor state.
func (s *Server) handleOrderbook(c *gin.Context) {
	ready, _, _ := s.snapshot()
	if !ready {
		s.serviceUnavailable(c)
		return
	}

	ctx := c.Request.Context()
	var out []orderbookEntry
	for _, symbol := range s.symbols {
		refQuote, err := s.venueRouter.FetchQuote(ctx, refVenue, symbol, s.depth)
		if err != nil {
			logger.Errorf("api: fetchQuote %s %s: %v", refVenue, symbol, err)
			continue
		}

		for _, id := range displayVenues {
			if id == refVenue {
				out = append(out, formatOrderbookEntry(string(id), symbol, refQuote, 0, 0))
				continue
			}

			quote, err := s.venueRouter.FetchQuote(ctx, id, symbol, s.depth)
			if err != nil {
				logger.Errorf("api: fetchQuote %s %s: %v", id, symbol, err)
				continue
			}

			gapPct := monitor.GapPercent(quote.Ticker.Last, refQuote.Ticker.Last)
			gapUSDT := quote.Ticker.Last.Sub(refQuote.Ticker.Last)
			out = append(out, formatOrderbookEntry(string(id), symbol, quote, gapPct.InexactFloat64(), gapUSDT.InexactFloat64()))
		}
	}

	if len(out) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch data"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func formatOrderbookEntry(exchange string, symbol venue.Symbol, q venue.Quote, priceGap, priceGapUSDT float64) orderbookEntry {
	asks := toLevels(q.OrderBook.Asks)
	bids := toLevels(q.OrderBook.Bids)
	last, _ := q.Ticker.Last.Float64()

	return orderbookEntry{
		Exchange:     exchange,
		Symbol:       string(symbol),
		Asks:         asks,
		Bids:         bids,
		LastPrice:    q.Ticker.Last.String(),
		LastPriceKRW: fmt.Sprintf("%.2f", last*usdtToKRW),
		PriceGap:     fmt.Sprintf("%.4f", priceGap),
		PriceGapUSDT: fmt.Sprintf("%.4f", priceGapUSDT),
		Timestamp:    time.Now().In(kst).UnixMilli(),
	}
}

func toLevels(levels []venue.Level) []orderbookLevel {
	out := make([]orderbookLevel, 0, len(levels))
	for i, l := range levels {
		if i >= 3 {
			break
		}
		price, _ := l.Price.Float64()
		qty, _ := l.Qty.Float64()
		out = append(out, orderbookLevel{price, qty, price * qty})
	}
	return out
}

// handleBalance mirrors main.py::api_get_balance.
func (s *Server) handleBalance(c *gin.Context) {
	ready, _, _ := s.snapshot()
	if !ready {
		s.serviceUnavailable(c)
		return
	}

	out := gin.H{}
	for _, id := range s.venueRouter.Registered() {
		adapter, err := s.venueRouter.Get(id)
		if err != nil {
			continue
		}
		bal, err := adapter.FetchBalance(c.Request.Context())
		if err != nil {
			logger.Errorf("api: fetchBalance %s: %v", id, err)
			continue
		}
		out[string(id)] = gin.H{
			"USDT":       bal.Total.String(),
			"free":       bal.Free.String(),
			"used":       bal.Used.String(),
			"dailyPnL":   bal.DailyPnL.String(),
			"monthlyPnL": bal.MonthlyPnL.String(),
		}
	}
	c.JSON(http.StatusOK, out)
}

// handleTradingStart mirrors main.py::start_trading.
func (s *Server) handleTradingStart(c *gin.Context) {
	if s.mon == nil {
		SafeInternalError(c, "trading start", fmt.Errorf("monitor not initialized"))
		return
	}
	if err := s.mon.Start(c.Request.Context()); err != nil {
		SafeError(c, http.StatusInternalServerError, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "monitor started"})
}

// handleTradingStop mirrors main.py::stop_trading.
func (s *Server) handleTradingStop(c *gin.Context) {
	if s.mon == nil {
		SafeInternalError(c, "trading stop", fmt.Errorf("monitor not initialized"))
		return
	}
	s.mon.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "monitor stopped"})
}

// handleTradingStatus mirrors main.py::get_trading_status.
func (s *Server) handleTradingStatus(c *gin.Context) {
	if s.mon == nil {
		c.JSON(http.StatusOK, gin.H{"status": "not_initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": s.mon.Status()})
}

// Start runs the HTTP server in the background. It returns
// immediately; call Shutdown to stop it.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("api: server error: %v", err)
		}
	}()
	logger.Log.Infof("api: listening on :%d", s.port)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
