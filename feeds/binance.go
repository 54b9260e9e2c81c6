package feeds

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET FEED - Binance kline and book-ticker streaming
// ═══════════════════════════════════════════════════════════════════════════════
//
// One combined WebSocket carries every tracked symbol: kline_1m for the
// candle windows that feed the indicators, bookTicker for live bid/ask.
// Candle history is backfilled over REST on start so snapshots are
// available immediately.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	wsBaseURL   = "wss://stream.binance.com:9443/stream"
	restBaseURL = "https://api.binance.com"

	// Candles kept per symbol. Enough for the 4h momentum leg plus the
	// 200-period EMA warm-up.
	candleWindow = 500
)

// Feed streams market data for a set of symbols.
type Feed struct {
	symbols []string
	wsURL   string
	restURL string
	conn    *websocket.Conn

	mu      sync.RWMutex
	candles map[string][]Candle
	tickers map[string]types.Ticker

	running bool
	stopCh  chan struct{}
}

// NewFeed creates a feed for the given symbols (e.g. BTCUSDT).
func NewFeed(symbols []string) *Feed {
	return &Feed{
		symbols: symbols,
		wsURL:   wsBaseURL,
		restURL: restBaseURL,
		candles: make(map[string][]Candle),
		tickers: make(map[string]types.Ticker),
		stopCh:  make(chan struct{}),
	}
}

// Start backfills candle history and begins streaming.
func (f *Feed) Start() error {
	f.running = true

	for _, sym := range f.symbols {
		candles, err := f.fetchKlines(sym, "1m", candleWindow)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("Failed to backfill klines, continuing anyway")
			continue
		}
		f.mu.Lock()
		f.candles[sym] = candles
		f.mu.Unlock()
	}

	go f.runWebSocket()

	log.Info().Int("symbols", len(f.symbols)).Msg("📈 Market feed started")
	return nil
}

// Stop closes the stream.
func (f *Feed) Stop() {
	f.running = false
	close(f.stopCh)
	if f.conn != nil {
		f.conn.Close()
	}
}

// Ticker returns the latest bid/ask for the symbol.
func (f *Feed) Ticker(symbol string) (types.Ticker, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tickers[symbol]
	return t, ok
}

// Price returns the latest close (or mid when candles are missing).
func (f *Feed) Price(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if cs := f.candles[symbol]; len(cs) > 0 {
		return cs[len(cs)-1].Close, true
	}
	if t, ok := f.tickers[symbol]; ok && !t.Bid.IsZero() {
		return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2)), true
	}
	return decimal.Zero, false
}

// Snapshot computes the indicator snapshot from the symbol's candle
// window. Returns false until enough history has accumulated.
func (f *Feed) Snapshot(symbol string) (types.IndicatorSnapshot, bool) {
	f.mu.RLock()
	candles := f.candles[symbol]
	window := make([]Candle, len(candles))
	copy(window, candles)
	f.mu.RUnlock()

	return buildSnapshot(window)
}

// Ready reports whether the symbol has enough history for a snapshot.
func (f *Feed) Ready(symbol string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.candles[symbol]) >= minCandles
}

func (f *Feed) runWebSocket() {
	for f.running {
		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("WebSocket connection failed")
			time.Sleep(5 * time.Second)
			continue
		}

		f.readMessages()

		if f.running {
			log.Warn().Msg("WebSocket disconnected, reconnecting...")
			time.Sleep(1 * time.Second)
		}
	}
}

func (f *Feed) connect() error {
	streams := make([]string, 0, len(f.symbols)*2)
	for _, sym := range f.symbols {
		lower := strings.ToLower(sym)
		streams = append(streams, lower+"@kline_1m", lower+"@bookTicker")
	}
	url := fmt.Sprintf("%s?streams=%s", f.wsURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	f.conn = conn
	log.Info().Int("streams", len(streams)).Msg("🔌 WebSocket connected to Binance")
	return nil
}

func (f *Feed) readMessages() {
	for f.running {
		_, message, err := f.conn.ReadMessage()
		if err != nil {
			if f.running {
				log.Error().Err(err).Msg("WebSocket read error")
			}
			return
		}

		f.handleMessage(message)
	}
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type klineEvent struct {
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Final    bool   `json:"x"`
	} `json:"k"`
}

type bookTickerEvent struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
}

func (f *Feed) handleMessage(data []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}

	switch {
	case strings.Contains(env.Stream, "@kline"):
		var ev klineEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return
		}
		f.applyKline(ev)
	case strings.Contains(env.Stream, "@bookTicker"):
		var ev bookTickerEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return
		}
		f.applyBookTicker(ev)
	}
}

func (f *Feed) applyKline(ev klineEvent) {
	candle := Candle{
		OpenTime: time.UnixMilli(ev.Kline.OpenTime),
		Open:     parseDecimal(ev.Kline.Open),
		High:     parseDecimal(ev.Kline.High),
		Low:      parseDecimal(ev.Kline.Low),
		Close:    parseDecimal(ev.Kline.Close),
		Volume:   parseDecimal(ev.Kline.Volume),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cs := f.candles[ev.Symbol]
	if n := len(cs); n > 0 && cs[n-1].OpenTime.Equal(candle.OpenTime) {
		// In-progress bar: overwrite in place.
		cs[n-1] = candle
	} else {
		cs = append(cs, candle)
		if len(cs) > candleWindow {
			cs = cs[len(cs)-candleWindow:]
		}
	}
	f.candles[ev.Symbol] = cs
}

func (f *Feed) applyBookTicker(ev bookTickerEvent) {
	bid := parseDecimal(ev.Bid)
	ask := parseDecimal(ev.Ask)

	f.mu.Lock()
	f.tickers[ev.Symbol] = types.Ticker{
		Bid:    bid,
		Ask:    ask,
		Price:  bid.Add(ask).Div(decimal.NewFromInt(2)),
		Spread: ask.Sub(bid),
	}
	f.mu.Unlock()
}

// fetchKlines pulls historical 1m candles via REST.
func (f *Feed) fetchKlines(symbol, interval string, limit int) ([]Candle, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		f.restURL, symbol, interval, limit)

	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, _ := k[0].(float64)
		open, _ := k[1].(string)
		high, _ := k[2].(string)
		low, _ := k[3].(string)
		closePrice, _ := k[4].(string)
		volume, _ := k[5].(string)

		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(int64(openTime)),
			Open:     parseDecimal(open),
			High:     parseDecimal(high),
			Low:      parseDecimal(low),
			Close:    parseDecimal(closePrice),
			Volume:   parseDecimal(volume),
		})
	}

	log.Info().Str("symbol", symbol).Int("candles", len(candles)).Msg("Backfilled kline history")
	return candles, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
