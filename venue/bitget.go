package venue

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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

// Bitget API endpoints (V2). Grounded on trader/bitget_trader.go.
const (
	bitgetBaseURL          = "https://api.bitget.com"
	bitgetAccountPath      = "/api/v2/mix/account/accounts"
	bitgetPositionPath     = "/api/v2/mix/position/all-position"
	bitgetOrderPath        = "/api/v2/mix/order/place-order"
	bitgetLeveragePath     = "/api/v2/mix/account/set-leverage"
	bitgetTickerPath       = "/api/v2/mix/market/ticker"
	bitgetBookPath         = "/api/v2/mix/market/merge-depth"
	bitgetCancelOrderPath  = "/api/v2/mix/order/cancel-order"
	bitgetMarginModePath   = "/api/v2/mix/account/set-margin-mode"
	bitgetPositionModePath = "/api/v2/mix/account/set-position-mode"

	bitgetProductType = "USDT-FUTURES"
)

// BitgetResponse is the common V2 API envelope.
type BitgetResponse struct {
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	Data        json.RawMessage `json:"data"`
	RequestTime int64           `json:"requestTime"`
}

// Bitget is the Venue B adapter.
//
// Signature = BASE64(HMAC_SHA256(timestamp+method+requestPath+body, secretKey)),
// carried in ACCESS-KEY/ACCESS-SIGN/ACCESS-TIMESTAMP/ACCESS-PASSPHRASE
// headers. This is the production V2 scheme the teacher's trader
// actually implements; original_source/test_order.py::test_bitget_order
// hex-encodes instead of base64-encoding the digest against an older
// v1 path and is superseded here (see DESIGN.md).
type Bitget struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string

	httpClient *http.Client
	limiter    *limiterHandle

	mu sync.Mutex

	positionModeOnce sync.Once
}

func NewBitget(cfg Config) *Bitget {
	base := cfg.BaseURL
	if base == "" {
		base = bitgetBaseURL
	}
	b := &Bitget{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.APISecret,
		passphrase: cfg.Passphrase,
		baseURL:    base,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: newLimiterHandle(cfg.RateLimit),
	}
	logger.Log.WithFields(logrus.Fields{
		"venue": B,
		"key":   maskSecret(cfg.APIKey),
	}).Info("venue adapter initialized")
	return b
}

func (a *Bitget) ID() ID { return B }

func nativeBitgetSymbol(s Symbol) string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "/", ""))
}

// ensurePositionMode switches the account to one-way position mode on
// first use; the failure path is logged, never fatal, since the
// account may already be in that mode.
func (a *Bitget) ensurePositionMode(ctx context.Context) {
	a.positionModeOnce.Do(func() {
		body := map[string]interface{}{
			"productType": bitgetProductType,
			"posMode":     "one_way_mode",
		}
		if _, err := a.doRequest(ctx, http.MethodPost, bitgetPositionModePath, body); err != nil {
			logger.Log.Debugf("[B] setPositionMode: %v (ignore if already set)", err)
		}
	})
}

func (a *Bitget) sign(timestamp, method, requestPath, body string) string {
	preHash := timestamp + method + requestPath + body
	h := hmac.New(sha256.New, []byte(a.secretKey))
	h.Write([]byte(preHash))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (a *Bitget) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, err
	}

	var bodyBytes []byte
	var err error

	if body != nil {
		if method == http.MethodGet {
			if params, ok := body.(map[string]interface{}); ok {
				parts := make([]string, 0, len(params))
				for k, v := range params {
					parts = append(parts, fmt.Sprintf("%s=%v", k, v))
				}
				if len(parts) > 0 {
					path = path + "?" + strings.Join(parts, "&")
				}
			}
		} else {
			bodyBytes, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
		}
	}

	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	signBody := ""
	if method != http.MethodGet && bodyBytes != nil {
		signBody = string(bodyBytes)
	}
	signature := a.sign(timestamp, method, path, signBody)

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("ACCESS-KEY", a.apiKey)
	req.Header.Set("ACCESS-SIGN", signature)
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("ACCESS-PASSPHRASE", a.passphrase)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &RPCError{Venue: B, Op: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RPCError{Venue: B, Op: path, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &RPCError{Venue: B, Op: path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)), Auth: true}
	}

	var bg BitgetResponse
	if err := json.Unmarshal(respBody, &bg); err != nil {
		return nil, &RPCError{Venue: B, Op: path, Err: fmt.Errorf("decode response: %w, raw=%s", err, string(respBody))}
	}
	if bg.Code != "00000" {
		auth := bg.Code == "40037" || bg.Code == "40012" || strings.Contains(bg.Msg, "sign")
		return nil, &RPCError{Venue: B, Op: path, Err: fmt.Errorf("code=%s msg=%s", bg.Code, bg.Msg), Auth: auth}
	}
	return bg.Data, nil
}

func (a *Bitget) FetchTicker(ctx context.Context, symbol Symbol) (Ticker, error) {
	data, err := a.doRequest(ctx, http.MethodGet, bitgetTickerPath, map[string]interface{}{
		"symbol":      nativeBitgetSymbol(symbol),
		"productType": bitgetProductType,
	})
	if err != nil {
		logger.Log.Warnf("[B] fetchTicker %s: %v", symbol, err)
		return Ticker{}, nil
	}

	var tickers []struct {
		LastPr decimal.Decimal `json:"lastPr"`
	}
	if err := json.Unmarshal(data, &tickers); err != nil || len(tickers) == 0 {
		logger.Log.Warnf("[B] parse ticker %s: %v", symbol, err)
		return Ticker{}, nil
	}
	if !tickers[0].LastPr.IsPositive() {
		return Ticker{}, nil
	}
	return Ticker{Last: tickers[0].LastPr, TS: time.Now()}, nil
}

func (a *Bitget) FetchOrderBook(ctx context.Context, symbol Symbol, depth int) (OrderBook, error) {
	data, err := a.doRequest(ctx, http.MethodGet, bitgetBookPath, map[string]interface{}{
		"symbol":      nativeBitgetSymbol(symbol),
		"productType": bitgetProductType,
		"limit":       strconv.Itoa(depth),
	})
	if err != nil {
		logger.Log.Warnf("[B] fetchOrderBook %s: %v", symbol, err)
		return OrderBook{}, nil
	}

	var raw struct {
		Asks [][2]decimal.Decimal `json:"asks"`
		Bids [][2]decimal.Decimal `json:"bids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Log.Warnf("[B] parse orderbook %s: %v", symbol, err)
		return OrderBook{}, nil
	}
	return toOrderBook(raw.Asks, raw.Bids, depth), nil
}

func (a *Bitget) FetchBalance(ctx context.Context) (Balance, error) {
	data, err := a.doRequest(ctx, http.MethodGet, bitgetAccountPath, map[string]interface{}{
		"productType": bitgetProductType,
	})
	if err != nil {
		return Balance{}, err
	}

	var accounts []struct {
		MarginCoin    string          `json:"marginCoin"`
		Available     decimal.Decimal `json:"available"`
		AccountEquity decimal.Decimal `json:"accountEquity"`
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return Balance{}, &RPCError{Venue: B, Op: "fetchBalance", Err: err}
	}
	for _, acc := range accounts {
		if acc.MarginCoin == "USDT" {
			return Balance{
				Total: acc.AccountEquity,
				Free:  acc.Available,
				Used:  acc.AccountEquity.Sub(acc.Available),
			}, nil
		}
	}
	return Balance{}, nil
}

func (a *Bitget) FetchPosition(ctx context.Context, symbol Symbol) (Position, error) {
	data, err := a.doRequest(ctx, http.MethodGet, bitgetPositionPath, map[string]interface{}{
		"productType": bitgetProductType,
	})
	if err != nil {
		return Position{}, err
	}

	var positions []struct {
		Symbol        string          `json:"symbol"`
		HoldSide      string          `json:"holdSide"` // "long" | "short"
		Total         decimal.Decimal `json:"total"`
		UnrealizedPL  decimal.Decimal `json:"unrealizedPL"`
	}
	if err := json.Unmarshal(data, &positions); err != nil {
		return Position{}, &RPCError{Venue: B, Op: "fetchPosition", Err: err}
	}

	native := nativeBitgetSymbol(symbol)
	for _, p := range positions {
		if p.Symbol != native {
			continue
		}
		side := PositionLong
		if p.HoldSide == "short" {
			side = PositionShort
		}
		return Position{Side: side, Contracts: p.Total, UnrealizedPnL: p.UnrealizedPL}, nil
	}
	return Position{}, nil
}

func (a *Bitget) SetMarginMode(ctx context.Context, symbol Symbol, mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensurePositionMode(ctx)

	body := map[string]interface{}{
		"symbol":      nativeBitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginCoin":  "USDT",
		"marginMode":  mode,
	}
	_, err := a.doRequest(ctx, http.MethodPost, bitgetMarginModePath, body)
	if err != nil {
		logger.Log.Warnf("[B] setMarginMode %s: %v (non-fatal)", symbol, err)
		return err
	}
	return nil
}

func (a *Bitget) SetLeverage(ctx context.Context, symbol Symbol, leverage int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	body := map[string]interface{}{
		"symbol":      nativeBitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginCoin":  "USDT",
		"leverage":    strconv.Itoa(leverage),
	}
	_, err := a.doRequest(ctx, http.MethodPost, bitgetLeveragePath, body)
	if err != nil {
		logger.Log.Warnf("[B] setLeverage %s: %v (non-fatal)", symbol, err)
		return err
	}
	return nil
}

func (a *Bitget) PlaceMarketOrder(ctx context.Context, symbol Symbol, side Side, notionalUSDT decimal.Decimal) (OrderOutcome, error) {
	a.ensurePositionMode(ctx)
	start := time.Now()

	body := map[string]interface{}{
		"symbol":      nativeBitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginCoin":  "USDT",
		"size":        notionalUSDT.String(),
		"side":        string(side),
		"orderType":   "market",
	}

	data, err := a.doRequest(ctx, http.MethodPost, bitgetOrderPath, body)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logger.Log.Errorf("[B] placeMarketOrder %s %s: %v", symbol, side, err)
		return OrderOutcome{OK: false, LatencyMs: latency, RawResponse: err.Error()}, nil
	}

	var resp struct {
		OrderID string `json:"orderId"`
	}
	_ = json.Unmarshal(data, &resp)

	return OrderOutcome{OK: true, OrderID: resp.OrderID, LatencyMs: latency, RawResponse: string(data)}, nil
}

func (a *Bitget) CancelOrder(ctx context.Context, orderID string, symbol Symbol) error {
	body := map[string]interface{}{
		"symbol":      nativeBitgetSymbol(symbol),
		"productType": bitgetProductType,
		"marginCoin":  "USDT",
		"orderId":     orderID,
	}
	_, err := a.doRequest(ctx, http.MethodPost, bitgetCancelOrderPath, body)
	if err != nil {
		logger.Log.Warnf("[B] cancelOrder %s: %v", orderID, err)
		return err
	}
	return nil
}
