package huobi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/pkg/domain"
)

// WSClient is the market-data stream for venue B: plain JSON frames,
// app-level {"ping":ts}/{"pong":ts} keepalive, one subscription per
// channel. Candle frames are deduped on open-time so a republished
// incomplete candle never regresses a subscriber's view.
type WSClient struct {
	conn    *gws.Conn
	connMu  sync.Mutex
	emit    func(symbol, eventKey string, data any)

	lastCandleOpen map[string]int64 // symbol|interval -> last emitted open time
	lastCandleMu   sync.Mutex
}

func NewWSClient(emit func(symbol, eventKey string, data any)) *WSClient {
	return &WSClient{
		emit:           emit,
		lastCandleOpen: make(map[string]int64),
	}
}

func (c *WSClient) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := gws.NewClient(c, &gws.ClientOption{
		Addr:      BaseWSURL,
		TlsConfig: &tls.Config{InsecureSkipVerify: false},
	})
	if err != nil {
		return err
	}
	c.conn = conn
	go conn.ReadLoop()
	return nil
}

func (c *WSClient) Subscribe(channel string) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("huobi: websocket not connected")
	}
	msg, _ := json.Marshal(map[string]string{"sub": channel, "id": channel})
	return conn.WriteString(string(msg))
}

func (c *WSClient) Unsubscribe(channel string) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	msg, _ := json.Marshal(map[string]string{"unsub": channel, "id": channel})
	return conn.WriteString(string(msg))
}

func (c *WSClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.WriteClose(1000, nil)
		c.conn = nil
	}
	return nil
}

func (c *WSClient) OnOpen(socket *gws.Conn) {
	socket.SetDeadline(time.Now().Add(30 * time.Second))
}

func (c *WSClient) OnClose(socket *gws.Conn, err error) {
	log.Warn().Err(err).Msg("huobi: market stream closed")
}

func (c *WSClient) OnPing(socket *gws.Conn, payload []byte) {
	socket.SetDeadline(time.Now().Add(30 * time.Second))
	socket.WritePong(payload)
}

func (c *WSClient) OnPong(socket *gws.Conn, payload []byte) {}

func (c *WSClient) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	socket.SetDeadline(time.Now().Add(30 * time.Second))

	var ping struct {
		Ping int64 `json:"ping"`
	}
	data := message.Bytes()
	if err := json.Unmarshal(data, &ping); err == nil && ping.Ping != 0 {
		pong, _ := json.Marshal(map[string]int64{"pong": ping.Ping})
		socket.WriteString(string(pong))
		return
	}

	var frame struct {
		Channel string          `json:"ch"`
		Tick    json.RawMessage `json:"tick"`
	}
	if err := json.Unmarshal(data, &frame); err != nil || frame.Channel == "" {
		return
	}
	c.routeChannel(frame.Channel, frame.Tick)
}

// routeChannel dispatches market.<symbol>.<stream>[.<interval>] frames.
func (c *WSClient) routeChannel(channel string, tick json.RawMessage) {
	parts := strings.Split(channel, ".")
	if len(parts) < 3 || parts[0] != "market" {
		return
	}
	symbol := strings.ToUpper(parts[1])
	stream := parts[2]

	switch stream {
	case "kline":
		if len(parts) < 4 {
			return
		}
		c.handleKline(symbol, parts[3], tick)
	case "depth":
		c.handleDepth(symbol, tick)
	case "trade":
		c.handleTrade(symbol, tick)
	case "detail":
		c.handleTicker(symbol, tick)
	}
}

type klineTick struct {
	ID     int64   `json:"id"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Amount float64 `json:"amount"`
	Vol    float64 `json:"vol"`
	Count  int64   `json:"count"`
}

func (c *WSClient) handleKline(symbol, interval string, raw json.RawMessage) {
	var k klineTick
	if err := json.Unmarshal(raw, &k); err != nil {
		return
	}
	key := symbol + "|" + interval
	c.lastCandleMu.Lock()
	last := c.lastCandleOpen[key]
	if k.ID < last {
		c.lastCandleMu.Unlock()
		return // stale/out-of-order candle, drop
	}
	c.lastCandleOpen[key] = k.ID
	c.lastCandleMu.Unlock()

	candle := domain.Candle{Kline: domain.Kline{
		Exchange: "huobi",
		Symbol:   domain.FormatSymbol(symbol[:len(symbol)-4], symbol[len(symbol)-4:]),
		Interval: interval,
		OpenTime: time.Unix(k.ID, 0),
		Open:     domain.NewDecimalFromFloat64(k.Open),
		High:     domain.NewDecimalFromFloat64(k.High),
		Low:      domain.NewDecimalFromFloat64(k.Low),
		Close:    domain.NewDecimalFromFloat64(k.Close),
		Volume:   domain.NewDecimalFromFloat64(k.Amount),
		TradeCount: k.Count,
	}}
	c.emit(symbol, "kline", &candle)
}

func (c *WSClient) handleDepth(symbol string, raw json.RawMessage) {
	var d struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
		Ts   int64        `json:"ts"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return
	}
	ob := &domain.OrderBook{
		Exchange:     "huobi",
		Symbol:       symbol,
		Bids:         levelsFromPairs(d.Bids),
		Asks:         levelsFromPairs(d.Asks),
		LastUpdateID: d.Ts,
		Timestamp:    time.UnixMilli(d.Ts),
	}
	c.emit(symbol, "depth", ob)
}

func levelsFromPairs(pairs [][2]float64) []domain.OrderBookLevel {
	out := make([]domain.OrderBookLevel, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.OrderBookLevel{
			Price:    domain.NewDecimalFromFloat64(p[0]),
			Quantity: domain.NewDecimalFromFloat64(p[1]),
		})
	}
	return out
}

func (c *WSClient) handleTrade(symbol string, raw json.RawMessage) {
	var t struct {
		Data []struct {
			Price     float64 `json:"price"`
			Amount    float64 `json:"amount"`
			Direction string  `json:"direction"`
			TS        int64   `json:"ts"`
			ID        int64   `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &t); err != nil || len(t.Data) == 0 {
		return
	}
	for _, d := range t.Data {
		side := domain.OrderSideSell
		if d.Direction == "buy" {
			side = domain.OrderSideBuy
		}
		trade := &domain.Trade{
			Exchange:  "huobi",
			Symbol:    symbol,
			ID:        d.ID,
			Price:     domain.NewDecimalFromFloat64(d.Price),
			Quantity:  domain.NewDecimalFromFloat64(d.Amount),
			Side:      side,
			Timestamp: time.UnixMilli(d.TS),
		}
		c.emit(symbol, "trade", trade)
	}
}

func (c *WSClient) handleTicker(symbol string, raw json.RawMessage) {
	var t tickerDetail
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	ticker := &domain.Ticker{
		Exchange:    "huobi",
		Symbol:      symbol,
		LastPrice:   domain.NewDecimalFromFloat64(t.Close),
		HighPrice:   domain.NewDecimalFromFloat64(t.High),
		LowPrice:    domain.NewDecimalFromFloat64(t.Low),
		OpenPrice:   domain.NewDecimalFromFloat64(t.Open),
		Volume:      domain.NewDecimalFromFloat64(t.Amount),
		BidPrice:    domain.NewDecimalFromFloat64(t.Bid[0]),
		BidQuantity: domain.NewDecimalFromFloat64(t.Bid[1]),
		AskPrice:    domain.NewDecimalFromFloat64(t.Ask[0]),
		AskQuantity: domain.NewDecimalFromFloat64(t.Ask[1]),
		Timestamp:   time.UnixMilli(t.Ts),
	}
	c.emit(symbol, "ticker", ticker)
}

// userWSClient is venue B's private stream: executionReport-equivalent
// "order update" frames over the v2 authenticated socket. The auth
// request carries accessKey, signatureMethod and signatureVersion only;
// no signature is computed for the handshake.
type userWSClient struct {
	conn   *gws.Conn
	connMu sync.Mutex
	onOrder func(raw json.RawMessage)
}

func newUserWSClient(onOrder func(raw json.RawMessage)) *userWSClient {
	return &userWSClient{onOrder: onOrder}
}

func (c *userWSClient) Connect(ctx context.Context, authParams map[string]string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	conn, _, err := gws.NewClient(c, &gws.ClientOption{
		Addr:      BaseWSAuthURL,
		TlsConfig: &tls.Config{InsecureSkipVerify: false},
	})
	if err != nil {
		return err
	}
	c.conn = conn
	go conn.ReadLoop()

	authMsg := map[string]any{
		"action": "req",
		"ch":     "auth",
		"params": authParams,
	}
	b, _ := json.Marshal(authMsg)
	return conn.WriteString(string(b))
}

func (c *userWSClient) Subscribe(accountID int64) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("huobi: user stream not connected")
	}
	msg := map[string]any{
		"action": "sub",
		"ch":     "orders#" + strconv.FormatInt(accountID, 10) + "#*",
	}
	b, _ := json.Marshal(msg)
	return conn.WriteString(string(b))
}

func (c *userWSClient) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.WriteClose(1000, nil)
		c.conn = nil
	}
	return nil
}

func (c *userWSClient) OnOpen(socket *gws.Conn)                 {}
func (c *userWSClient) OnClose(socket *gws.Conn, err error)     {}
func (c *userWSClient) OnPing(socket *gws.Conn, payload []byte) { socket.WritePong(payload) }
func (c *userWSClient) OnPong(socket *gws.Conn, payload []byte) {}
func (c *userWSClient) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	var frame struct {
		Action string          `json:"action"`
		Ch     string          `json:"ch"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message.Bytes(), &frame); err != nil {
		return
	}
	if frame.Action == "push" && strings.HasPrefix(frame.Ch, "orders#") {
		c.onOrder(frame.Data)
	}
}
