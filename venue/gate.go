package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"arbigate/logger"
)

const (
	gateBaseURL  = "https://api.gateio.ws"
	gateSettle   = "usdt"
	gateAPIPrefix = "/api/v4"
)

// Gate is the Venue G adapter (Gate.io USDT-settled futures).
//
// The teacher's gate_trader.go drives the gateapi-go/v7 SDK, which
// hides signature construction behind the client and can't be
// exercised by a signing fixture test; this adapter speaks the v4
// REST API directly instead, following the pre-hash layout captured
// in original_source/test_order.py::test_gateio_order:
//
//	prehash = "METHOD\nPATH\nQUERY\nBODY\nTIMESTAMP"
//	sign    = hex(HMAC_SHA512(secret, prehash))
//
// The body is the literal JSON payload, not a digest of it — Gate's
// v4 signing scheme hashes everything else but leaves the body raw.
type Gate struct {
	apiKey    string
	apiSecret string
	baseURL   string

	httpClient *http.Client
	limiter    *limiterHandle

	mu sync.Mutex
}

func NewGate(cfg Config) *Gate {
	base := cfg.BaseURL
	if base == "" {
		base = gateBaseURL
	}
	logger.Log.WithFields(logrus.Fields{
		"venue": G,
		"key":   maskSecret(cfg.APIKey),
	}).Info("venue adapter initialized")
	return &Gate{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: newLimiterHandle(cfg.RateLimit),
	}
}

func (a *Gate) ID() ID { return G }

func nativeGateContract(s Symbol) string {
	return strings.ReplaceAll(string(s), "/", "_")
}

// sign computes Gate.io's HMAC-SHA512 request signature. body is the
// raw request payload (empty for GET); query is the literal query
// string without the leading '?'.
func (a *Gate) sign(method, path, query, body, timestamp string) string {
	preHash := strings.Join([]string{method, path, query, body, timestamp}, "\n")

	h := hmac.New(sha512.New, []byte(a.apiSecret))
	h.Write([]byte(preHash))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Gate) do(ctx context.Context, method, path, query string, payload map[string]interface{}) ([]byte, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	var bodyBytes []byte
	var err error
	if payload != nil {
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := a.sign(method, path, query, string(bodyBytes), timestamp)

	url := a.baseURL + path
	if query != "" {
		url += "?" + query
	}

	var reader io.Reader
	if bodyBytes != nil {
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("KEY", a.apiKey)
	req.Header.Set("SIGN", signature)
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &RPCError{Venue: G, Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RPCError{Venue: G, Op: path, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &RPCError{Venue: G, Op: path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)), Auth: true}
	}
	if resp.StatusCode >= 300 {
		return nil, &RPCError{Venue: G, Op: path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))}
	}
	return raw, nil
}

func (a *Gate) FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error) {
	path := gateAPIPrefix + "/futures/" + gateSettle + "/tickers"
	query := "contract=" + nativeGateContract(symbol)
	raw, err := a.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		logger.Log.Warnf("[G] fetchTicker %s: %v", symbol, err)
		return Ticker{}, nil
	}

	var tickers []struct {
		Last decimal.Decimal `json:"last"`
	}
	if err := json.Unmarshal(raw, &tickers); err != nil || len(tickers) == 0 {
		logger.Log.Warnf("[G] parse ticker %s: %v", symbol, err)
		return Ticker{}, nil
	}
	if !tickers[0].Last.IsPositive() {
		return Ticker{}, nil
	}
	return Ticker{Last: tickers[0].Last, TS: time.Now()}, nil
}

func (a *Gate) FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (OrderBook, error) {
	path := gateAPIPrefix + "/futures/" + gateSettle + "/order_book"
	query := fmt.Sprintf("contract=%s&limit=%d", nativeGateContract(symbol), depth)
	raw, err := a.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		logger.Log.Warnf("[G] fetchOrderBook %s: %v", symbol, err)
		return OrderBook{}, nil
	}

	var book struct {
		Asks []struct {
			P decimal.Decimal `json:"p"`
			S decimal.Decimal `json:"s"`
		} `json:"asks"`
		Bids []struct {
			P decimal.Decimal `json:"p"`
			S decimal.Decimal `json:"s"`
		} `json:"bids"`
	}
	if err := json.Unmarshal(raw, &book); err != nil {
		logger.Log.Warnf("[G] parse orderbook %s: %v", symbol, err)
		return OrderBook{}, nil
	}

	asks := make([][2]decimal.Decimal, len(book.Asks))
	for i, l := range book.Asks {
		asks[i] = [2]decimal.Decimal{l.P, l.S}
	}
	bids := make([][2]decimal.Decimal, len(book.Bids))
	for i, l := range book.Bids {
		bids[i] = [2]decimal.Decimal{l.P, l.S}
	}
	return toOrderBook(asks, bids, depth), nil
}

func (a *Gate) FetchBalance(ctx context.Context) (Balance, error) {
	path := gateAPIPrefix + "/futures/" + gateSettle + "/accounts"
	raw, err := a.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return Balance{}, err
	}
	var acc struct {
		Total     decimal.Decimal `json:"total"`
		Available decimal.Decimal `json:"available"`
	}
	if err := json.Unmarshal(raw, &acc); err != nil {
		return Balance{}, &RPCError{Venue: G, Op: "fetchBalance", Err: err}
	}
	return Balance{Total: acc.Total, Free: acc.Available, Used: acc.Total.Sub(acc.Available)}, nil
}

func (a *Gate) FetchPosition(ctx context.Context, symbol Symbol) (Position, error) {
	path := gateAPIPrefix + "/futures/" + gateSettle + "/positions/" + nativeGateContract(symbol)
	raw, err := a.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return Position{}, err
	}
	var pos struct {
		Size          decimal.Decimal `json:"size"`
		UnrealisedPnl decimal.Decimal `json:"unrealised_pnl"`
	}
	if err := json.Unmarshal(raw, &pos); err != nil {
		return Position{}, &RPCError{Venue: G, Op: "fetchPosition", Err: err}
	}
	side := PositionLong
	contracts := pos.Size
	if pos.Size.IsNegative() {
		side = PositionShort
		contracts = pos.Size.Abs()
	}
	return Position{Side: side, Contracts: contracts, UnrealizedPnL: pos.UnrealisedPnl}, nil
}

func (a *Gate) SetMarginMode(ctx context.Context, symbol Symbol, mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dualMode := mode == "isolated"
	payload := map[string]interface{}{"dual_mode": dualMode}
	path := gateAPIPrefix + "/futures/" + gateSettle + "/dual_mode"
	_, err := a.do(ctx, http.MethodPost, path, "", payload)
	if err != nil {
		logger.Log.Warnf("[G] setMarginMode %s: %v (non-fatal)", symbol, err)
		return err
	}
	return nil
}

func (a *Gate) SetLeverage(ctx context.Context, symbol Symbol, leverage int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := gateAPIPrefix + "/futures/" + gateSettle + "/positions/" + nativeGateContract(symbol) + "/leverage"
	query := fmt.Sprintf("leverage=%d", leverage)
	_, err := a.do(ctx, http.MethodPost, path, query, nil)
	if err != nil {
		logger.Log.Warnf("[G] setLeverage %s: %v (non-fatal)", symbol, err)
		return err
	}
	return nil
}

func (a *Gate) PlaceMarketOrder(ctx context.Context, symbol Symbol, side Side, notionalUSDT decimal.Decimal) (OrderOutcome, error) {
	start := time.Now()

	size := notionalUSDT.IntPart()
	if side == Sell {
		size = -size
	}

	payload := map[string]interface{}{
		"contract": nativeGateContract(symbol),
		"size":     size,
		"price":    "0",
		"tif":      "ioc",
		"text":     fmt.Sprintf("t-%d", time.Now().Unix()),
	}

	path := gateAPIPrefix + "/futures/" + gateSettle + "/orders"
	raw, err := a.do(ctx, http.MethodPost, path, "settle="+gateSettle, payload)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logger.Log.Errorf("[G] placeMarketOrder %s %s: %v", symbol, side, err)
		return OrderOutcome{OK: false, LatencyMs: latency, RawResponse: err.Error()}, nil
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(raw, &resp)

	return OrderOutcome{OK: true, OrderID: strconv.FormatInt(resp.ID, 10), LatencyMs: latency, RawResponse: string(raw)}, nil
}

func (a *Gate) CancelOrder(ctx context.Context, orderID string, symbol Symbol) error {
	path := gateAPIPrefix + "/futures/" + gateSettle + "/orders/" + orderID
	_, err := a.do(ctx, http.MethodDelete, path, "", nil)
	if err != nil {
		logger.Log.Warnf("[G] cancelOrder %s: %v", orderID, err)
		return err
	}
	return nil
}
