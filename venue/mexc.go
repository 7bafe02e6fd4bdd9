package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"arbigate/logger"
)

const (
	mexcBaseURL      = "https://contract.mexc.com"
	mexcOrderPath    = "/api/v1/private/order/submit"
	mexcTickerPath   = "/api/v1/contract/ticker"
	mexcDepthPath    = "/api/v1/contract/depth"
	mexcAssetsPath   = "/api/v1/private/account/assets"
	mexcPositionPath = "/api/v1/private/position/open_positions"
	mexcLeveragePath = "/api/v1/private/position/change_leverage"
	mexcCancelPath   = "/api/v1/private/order/cancel"
)

// MEXC is the Venue M adapter.
//
// Signing: timestamp (ms) concatenated with the request's parameters,
// sorted by key, joined as a query string, HMAC-SHA256 over the
// secret, hex-encoded. Headers carry the key, signature and
// timestamp separately. Grounded on the captured fixture in
// original_source/test_order.py::test_mexc_order.
type MEXC struct {
	apiKey    string
	apiSecret string
	baseURL   string

	httpClient *http.Client
	limiter    *limiterHandle

	mu sync.Mutex // serializes setter calls per (venue, symbol) as required by §5
}

// NewMEXC builds a Venue M adapter from its immutable config.
func NewMEXC(cfg Config) *MEXC {
	base := cfg.BaseURL
	if base == "" {
		base = mexcBaseURL
	}
	logger.Log.WithFields(logrus.Fields{
		"venue": M,
		"key":   maskSecret(cfg.APIKey),
	}).Info("venue adapter initialized")
	return &MEXC{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: newLimiterHandle(cfg.RateLimit),
	}
}

func (a *MEXC) ID() ID { return M }

// nativeMEXCContractSymbol converts BASE/USDT -> BASE_USDT, the form the
// contract order endpoint requires.
func nativeMEXCContractSymbol(s Symbol) string {
	return strings.ReplaceAll(string(s), "/", "_")
}

// nativeMEXCTickerSymbol keeps the BASE/USDT form the common ticker path
// accepts.
func nativeMEXCTickerSymbol(s Symbol) string {
	return string(s)
}

// sign reproduces MEXC's private-endpoint signature: HMAC-SHA256 over
// `timestamp + sortedQueryString`, hex-encoded.
func (a *MEXC) sign(timestamp string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	queryString := strings.Join(parts, "&")

	h := hmac.New(sha256.New, []byte(a.apiSecret))
	h.Write([]byte(timestamp + queryString))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *MEXC) doPrivate(ctx context.Context, method, path string, params map[string]string) ([]byte, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := a.sign(timestamp, params)

	bodyMap := make(map[string]string, len(params)+1)
	for k, v := range params {
		bodyMap[k] = v
	}
	bodyBytes, err := json.Marshal(bodyMap)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MEXC-APIKEY", a.apiKey)
	req.Header.Set("X-MEXC-SIGNATURE", signature)
	req.Header.Set("X-MEXC-TIMESTAMP", timestamp)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &RPCError{Venue: M, Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RPCError{Venue: M, Op: path, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &RPCError{Venue: M, Op: path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)), Auth: true}
	}

	var envelope struct {
		Success bool            `json:"success"`
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &RPCError{Venue: M, Op: path, Err: fmt.Errorf("decode response: %w, raw=%s", err, string(raw))}
	}
	if !envelope.Success {
		return nil, &RPCError{Venue: M, Op: path, Err: fmt.Errorf("code=%d msg=%s", envelope.Code, envelope.Message)}
	}
	return envelope.Data, nil
}

func (a *MEXC) doPublic(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	url := a.baseURL + path
	if len(query) > 0 {
		parts := make([]string, 0, len(query))
		for k, v := range query {
			parts = append(parts, k+"="+v)
		}
		url += "?" + strings.Join(parts, "&")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &RPCError{Venue: M, Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RPCError{Venue: M, Op: path, Err: err}
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &RPCError{Venue: M, Op: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !envelope.Success {
		return nil, &RPCError{Venue: M, Op: path, Err: fmt.Errorf("request unsuccessful: %s", string(raw))}
	}
	return envelope.Data, nil
}

func (a *MEXC) FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error) {
	data, err := a.doPublic(ctx, mexcTickerPath, map[string]string{"symbol": nativeMEXCTickerSymbol(symbol)})
	if err != nil {
		logger.Log.Warnf("[M] fetchTicker %s: %v", symbol, err)
		return Ticker{}, nil
	}

	var t struct {
		LastPrice decimal.Decimal `json:"lastPrice"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &t); err != nil {
		logger.Log.Warnf("[M] parse ticker %s: %v", symbol, err)
		return Ticker{}, nil
	}
	if !t.LastPrice.IsPositive() {
		return Ticker{}, nil
	}
	return Ticker{Last: t.LastPrice, TS: time.Now()}, nil
}

func (a *MEXC) FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (OrderBook, error) {
	data, err := a.doPublic(ctx, mexcDepthPath, map[string]string{
		"symbol": nativeMEXCTickerSymbol(symbol),
		"limit":  strconv.Itoa(depth),
	})
	if err != nil {
		logger.Log.Warnf("[M] fetchOrderBook %s: %v", symbol, err)
		return OrderBook{}, nil
	}

	var raw struct {
		Asks [][2]decimal.Decimal `json:"asks"`
		Bids [][2]decimal.Decimal `json:"bids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Log.Warnf("[M] parse orderbook %s: %v", symbol, err)
		return OrderBook{}, nil
	}
	return toOrderBook(raw.Asks, raw.Bids, depth), nil
}

func (a *MEXC) FetchBalance(ctx context.Context) (Balance, error) {
	data, err := a.doPrivate(ctx, http.MethodGet, mexcAssetsPath, nil)
	if err != nil {
		return Balance{}, err
	}
	var assets []struct {
		Currency         string          `json:"currency"`
		Equity           decimal.Decimal `json:"equity"`
		AvailableBalance decimal.Decimal `json:"availableBalance"`
		FrozenBalance    decimal.Decimal `json:"frozenBalance"`
	}
	if err := json.Unmarshal(data, &assets); err != nil {
		return Balance{}, &RPCError{Venue: M, Op: "fetchBalance", Err: err}
	}
	for _, asset := range assets {
		if asset.Currency == "USDT" {
			return Balance{Total: asset.Equity, Free: asset.AvailableBalance, Used: asset.FrozenBalance}, nil
		}
	}
	return Balance{}, nil
}

func (a *MEXC) FetchPosition(ctx context.Context, symbol Symbol) (Position, error) {
	data, err := a.doPrivate(ctx, http.MethodGet, mexcPositionPath, map[string]string{
		"symbol": nativeMEXCContractSymbol(symbol),
	})
	if err != nil {
		return Position{}, err
	}
	var positions []struct {
		HoldVol      decimal.Decimal `json:"holdVol"`
		PositionType int             `json:"positionType"` // 1=long, 2=short
		UnrealizedPnl decimal.Decimal `json:"unrealized"`
	}
	if err := json.Unmarshal(data, &positions); err != nil {
		return Position{}, &RPCError{Venue: M, Op: "fetchPosition", Err: err}
	}
	for _, p := range positions {
		side := PositionLong
		if p.PositionType == 2 {
			side = PositionShort
		}
		return Position{Side: side, Contracts: p.HoldVol, UnrealizedPnL: p.UnrealizedPnl}, nil
	}
	return Position{}, nil
}

func (a *MEXC) SetMarginMode(ctx context.Context, symbol Symbol, mode string) error {
	// MEXC's open-type (isolated/cross) is selected per order, not via
	// a standalone endpoint; nothing to do here beyond recording intent.
	a.mu.Lock()
	defer a.mu.Unlock()
	logger.Log.Debugf("[M] margin mode for %s treated as %s at order time", symbol, mode)
	return nil
}

func (a *MEXC) SetLeverage(ctx context.Context, symbol Symbol, leverage int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.doPrivate(ctx, http.MethodPost, mexcLeveragePath, map[string]string{
		"symbol":   nativeMEXCContractSymbol(symbol),
		"leverage": strconv.Itoa(leverage),
	})
	if err != nil {
		logger.Log.Warnf("[M] setLeverage %s: %v (non-fatal)", symbol, err)
		return err
	}
	return nil
}

func (a *MEXC) PlaceMarketOrder(ctx context.Context, symbol Symbol, side Side, notionalUSDT decimal.Decimal) (OrderOutcome, error) {
	start := time.Now()

	sideCode := "1" // 1 = open long / buy
	if side == Sell {
		sideCode = "2" // 2 = open short / sell
	}

	params := map[string]string{
		"symbol":       nativeMEXCContractSymbol(symbol),
		"vol":          notionalUSDT.String(),
		"side":         sideCode,
		"type":         "5", // market order
		"openType":     "2", // cross margin
		"leverage":     "1",
		"positionType": sideCode,
	}

	data, err := a.doPrivate(ctx, http.MethodPost, mexcOrderPath, params)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logger.Log.Errorf("[M] placeMarketOrder %s %s: %v", symbol, side, err)
		return OrderOutcome{OK: false, LatencyMs: latency, RawResponse: err.Error()}, nil
	}

	var resp struct {
		OrderID string `json:"orderId"`
	}
	_ = json.Unmarshal(data, &resp)

	return OrderOutcome{OK: true, OrderID: resp.OrderID, LatencyMs: latency, RawResponse: string(data)}, nil
}

func (a *MEXC) CancelOrder(ctx context.Context, orderID string, symbol Symbol) error {
	_, err := a.doPrivate(ctx, http.MethodPost, mexcCancelPath, map[string]string{
		"orderId": orderID,
		"symbol":  nativeMEXCContractSymbol(symbol),
	})
	if err != nil {
		logger.Log.Warnf("[M] cancelOrder %s: %v", orderID, err)
		return err
	}
	return nil
}
