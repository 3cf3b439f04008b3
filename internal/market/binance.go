package market

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BinanceClient is a spot REST client implementing Gateway.
type BinanceClient struct {
	apiKey         string
	secretKey      string
	baseURL        string
	minQuoteVolume float64
	httpClient     *http.Client
}

// NewBinanceClient creates a client for the given endpoint. minQuoteVolume is
// the 24h quote-volume floor applied when selecting scan symbols.
func NewBinanceClient(apiKey, secretKey, baseURL string, minQuoteVolume float64) *BinanceClient {
	return &BinanceClient{
		apiKey:         apiKey,
		secretKey:      secretKey,
		baseURL:        baseURL,
		minQuoteVolume: minQuoteVolume,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

var _ Gateway = (*BinanceClient)(nil)

// ticker24hr mirrors the fields of /api/v3/ticker/24hr we consume.
type ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	BidPrice           float64 `json:"bidPrice,string"`
	AskPrice           float64 `json:"askPrice,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
}

type orderResponse struct {
	Symbol              string  `json:"symbol"`
	OrderID             int64   `json:"orderId"`
	ClientOrderID       string  `json:"clientOrderId"`
	Price               float64 `json:"price,string"`
	ExecutedQty         float64 `json:"executedQty,string"`
	CummulativeQuoteQty float64 `json:"cummulativeQuoteQty,string"`
	Status              string  `json:"status"`
	Side                string  `json:"side"`
}

// GetCandles fetches candlestick data.
func (c *BinanceClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	candles := make([]Candle, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 7 {
			return nil, fmt.Errorf("error parsing klines: short row at %d", i)
		}
		candles[i] = Candle{
			OpenTime:  int64(asFloat(raw[0])),
			Open:      asFloat(raw[1]),
			High:      asFloat(raw[2]),
			Low:       asFloat(raw[3]),
			Close:     asFloat(raw[4]),
			Volume:    asFloat(raw[5]),
			CloseTime: int64(asFloat(raw[6])),
		}
	}

	return candles, nil
}

// GetCurrentPrice fetches the last traded price for a symbol.
func (c *BinanceClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// GetBalance fetches the USDT balance of the spot account.
func (c *BinanceClient) GetBalance(ctx context.Context) (Balance, error) {
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params))

	body, err := c.getSigned(ctx, "/api/v3/account", params)
	if err != nil {
		return Balance{}, fmt.Errorf("error fetching account: %w", err)
	}

	var account struct {
		Balances []struct {
			Asset  string  `json:"asset"`
			Free   float64 `json:"free,string"`
			Locked float64 `json:"locked,string"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return Balance{}, fmt.Errorf("error parsing account: %w", err)
	}

	for _, b := range account.Balances {
		if b.Asset == "USDT" {
			return Balance{Free: b.Free, Total: b.Free + b.Locked}, nil
		}
	}
	return Balance{}, nil
}

// ExecuteOrder places a market order, after a liquidity check against the
// symbol's 24h ticker: the order notional must be at most a tenth of the 24h
// quote volume and the spread at most 1%.
func (c *BinanceClient) ExecuteOrder(ctx context.Context, intent *OrderIntent) (*ExecutionResult, error) {
	if err := c.checkLiquidity(ctx, intent.Symbol, intent.QuoteAmount); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", intent.Symbol)
	params.Set("side", intent.Side)
	params.Set("type", "MARKET")
	// Entry orders are denominated in quote currency, exit orders in base
	// quantity. Binance market orders accept exactly one of the two.
	if intent.QuoteAmount > 0 {
		params.Set("quoteOrderQty", strconv.FormatFloat(intent.QuoteAmount, 'f', 8, 64))
	} else {
		params.Set("quantity", strconv.FormatFloat(intent.Quantity, 'f', 8, 64))
	}
	if intent.ClientOrderID != "" {
		params.Set("newClientOrderId", intent.ClientOrderID)
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params))

	endpoint := fmt.Sprintf("%s/api/v3/order", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrOrderRejected, string(body))
	}

	var orderResp orderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	price := orderResp.Price
	if price == 0 && orderResp.ExecutedQty > 0 {
		price = orderResp.CummulativeQuoteQty / orderResp.ExecutedQty
	}

	return &ExecutionResult{
		OrderID:     orderResp.OrderID,
		Symbol:      orderResp.Symbol,
		Side:        orderResp.Side,
		Price:       price,
		ExecutedQty: orderResp.ExecutedQty,
		QuoteQty:    orderResp.CummulativeQuoteQty,
	}, nil
}

// HighVolumeSymbols returns up to max USDT pairs ordered by 24h quote volume,
// excluding leveraged UP/DOWN tokens and anything under the volume floor.
func (c *BinanceClient) HighVolumeSymbols(ctx context.Context, max int) ([]string, error) {
	body, err := c.get(ctx, "/api/v3/ticker/24hr", nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching tickers: %w", err)
	}

	var tickers []ticker24hr
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("error parsing tickers: %w", err)
	}

	candidates := make([]ticker24hr, 0, len(tickers))
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		if strings.Contains(t.Symbol, "UPUSDT") || strings.Contains(t.Symbol, "DOWNUSDT") {
			continue
		}
		if t.QuoteVolume < c.minQuoteVolume {
			continue
		}
		candidates = append(candidates, t)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].QuoteVolume > candidates[j].QuoteVolume
	})

	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	symbols := make([]string, len(candidates))
	for i, t := range candidates {
		symbols[i] = t.Symbol
	}
	return symbols, nil
}

// checkLiquidity rejects orders the symbol cannot absorb: 24h quote volume
// must be at least 10x the order notional and the spread at most 1%.
func (c *BinanceClient) checkLiquidity(ctx context.Context, symbol string, quoteAmount float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/24hr", params)
	if err != nil {
		return fmt.Errorf("error fetching ticker: %w", err)
	}

	var ticker ticker24hr
	if err := json.Unmarshal(body, &ticker); err != nil {
		return fmt.Errorf("error parsing ticker: %w", err)
	}

	if ticker.QuoteVolume < quoteAmount*10 {
		return fmt.Errorf("%w: 24h volume %.0f below 10x notional", ErrInsufficientLiquidity, ticker.QuoteVolume)
	}
	if ticker.BidPrice > 0 {
		spread := (ticker.AskPrice - ticker.BidPrice) / ticker.BidPrice * 100
		if spread > 1 {
			return fmt.Errorf("%w: spread %.2f%% above 1%%", ErrInsufficientLiquidity, spread)
		}
	}
	return nil
}

func (c *BinanceClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

func (c *BinanceClient) getSigned(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

func (c *BinanceClient) sign(params url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func asFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
