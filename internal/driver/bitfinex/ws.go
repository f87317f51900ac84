package bitfinex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/internal/signer"
	"github.com/lilwiggy/ex-act/pkg/domain"
	"github.com/lilwiggy/ex-act/pkg/venue"
)

// signerSHA384 signs the WSS auth challenge through the shared signer
// dispatcher rather than hand-rolling HMAC here.
func signerSHA384(secret, payload string) string {
	return signer.Sign(venue.C, []byte(secret), []byte(payload))
}

// WSClient is venue C's market/private stream: frames arrive
// gzip-compressed (plain-text frames are parsed as-is), and the first decoded token routes to one of a small
// set of control codes before data frames are handed to channel state.
type WSClient struct {
	conn   *gws.Conn
	connMu sync.Mutex
	emit   func(symbol, eventKey string, data any)

	chanMu sync.Mutex
	chans  map[int64]chanBinding // channel id -> binding
}

type chanBinding struct {
	symbol string
	kind   string // "book", "trades", "candles", "ticker"
}

func NewWSClient(emit func(symbol, eventKey string, data any)) *WSClient {
	return &WSClient{emit: emit, chans: make(map[int64]chanBinding)}
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

func (c *WSClient) Subscribe(kind, symbol string, extra map[string]any) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("bitfinex: websocket not connected")
	}
	msg := map[string]any{"event": "subscribe", "channel": kind, "symbol": symbol}
	for k, v := range extra {
		msg[k] = v
	}
	b, _ := json.Marshal(msg)
	return c.writeGzip(conn, b)
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

func (c *WSClient) writeGzip(conn *gws.Conn, payload []byte) error {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return conn.WriteMessage(gws.OpcodeBinary, buf.Bytes())
}

func (c *WSClient) OnOpen(socket *gws.Conn) {
	socket.SetDeadline(time.Now().Add(30 * time.Second))
}

func (c *WSClient) OnClose(socket *gws.Conn, err error) {
	log.Warn().Err(err).Msg("bitfinex: stream closed")
}

func (c *WSClient) OnPing(socket *gws.Conn, payload []byte) {
	socket.SetDeadline(time.Now().Add(30 * time.Second))
	socket.WritePong(payload)
}

func (c *WSClient) OnPong(socket *gws.Conn, payload []byte) {}

func (c *WSClient) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	socket.SetDeadline(time.Now().Add(30 * time.Second))

	raw := message.Bytes()
	decoded, err := gunzip(raw)
	if err != nil {
		// not every frame is compressed (event acks arrive as plain text)
		decoded = raw
	}
	code, payload := classify(decoded)
	switch code {
	case controlHeartbeat:
		return
	case controlSubscribed:
		c.handleSubscribed(payload)
	case controlAuth:
		c.handleAuth(payload)
	case controlError:
		log.Warn().Str("frame", string(decoded)).Msg("bitfinex: error frame")
	case controlData:
		c.handleData(decoded)
	}
}

func gunzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// classify inspects a decoded frame's shape. Object frames ({"event":...})
// are control frames; array frames ([chanID, ...]) are data, except the
// heartbeat array [chanID, "hb"].
func classify(decoded []byte) (controlCode, json.RawMessage) {
	trimmed := bytes.TrimSpace(decoded)
	if len(trimmed) == 0 {
		return controlHeartbeat, nil
	}
	if trimmed[0] == '{' {
		var evt struct {
			Event  string `json:"event"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(trimmed, &evt); err != nil {
			return controlError, trimmed
		}
		switch evt.Event {
		case "subscribed":
			return controlSubscribed, trimmed
		case "unsubscribed":
			return controlUnsubscribed, trimmed
		case "auth":
			return controlAuth, trimmed
		case "error":
			return controlError, trimmed
		default:
			return controlHeartbeat, trimmed
		}
	}
	if bytes.Contains(trimmed, []byte(`"hb"`)) {
		return controlHeartbeat, trimmed
	}
	return controlData, trimmed
}

func (c *WSClient) handleSubscribed(payload json.RawMessage) {
	var sub struct {
		ChanID  int64  `json:"chanId"`
		Channel string `json:"channel"`
		Symbol  string `json:"symbol"`
		Key     string `json:"key"`
	}
	if err := json.Unmarshal(payload, &sub); err != nil {
		return
	}
	symbol := sub.Symbol
	if symbol == "" {
		symbol = sub.Key
	}
	c.chanMu.Lock()
	c.chans[sub.ChanID] = chanBinding{symbol: symbol, kind: sub.Channel}
	c.chanMu.Unlock()
}

func (c *WSClient) handleAuth(payload json.RawMessage) {
	log.Info().Msg("bitfinex: private channel authenticated")
}

func (c *WSClient) handleData(decoded []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(decoded, &frame); err != nil || len(frame) < 2 {
		return
	}
	var chanID int64
	if err := json.Unmarshal(frame[0], &chanID); err != nil {
		return
	}
	c.chanMu.Lock()
	binding, ok := c.chans[chanID]
	c.chanMu.Unlock()
	if !ok {
		return
	}

	switch binding.kind {
	case "book":
		c.handleBook(binding.symbol, frame[1])
	case "trades":
		if len(frame) >= 3 {
			c.handleTrade(binding.symbol, frame[2])
		}
	case "candles":
		c.handleCandle(binding.symbol, frame[1])
	case "ticker":
		c.handleTicker(binding.symbol, frame[1])
	}
}

func (c *WSClient) handleBook(symbol string, raw json.RawMessage) {
	var levels [][3]float64
	if err := json.Unmarshal(raw, &levels); err != nil {
		return
	}
	ob := &domain.OrderBook{Exchange: "bitfinex", Symbol: symbol, Timestamp: time.Now()}
	for _, l := range levels {
		price, count, amount := l[0], int64(l[1]), l[2]
		lvl := domain.OrderBookLevel{Price: domain.NewDecimalFromFloat64(price), Quantity: domain.NewDecimalFromFloat64(amount)}
		if count == 0 {
			continue
		}
		if amount > 0 {
			ob.Bids = append(ob.Bids, lvl)
		} else {
			lvl.Quantity = domain.Abs(lvl.Quantity)
			ob.Asks = append(ob.Asks, lvl)
		}
	}
	c.emit(symbol, "depth", ob)
}

func (c *WSClient) handleTrade(symbol string, raw json.RawMessage) {
	var t [4]float64 // [ID, MTS, AMOUNT, PRICE]
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	side := domain.OrderSideBuy
	amount := t[2]
	if amount < 0 {
		side = domain.OrderSideSell
		amount = -amount
	}
	trade := &domain.Trade{
		Exchange:  "bitfinex",
		Symbol:    symbol,
		ID:        int64(t[0]),
		Price:     domain.NewDecimalFromFloat64(t[3]),
		Quantity:  domain.NewDecimalFromFloat64(amount),
		Side:      side,
		Timestamp: time.UnixMilli(int64(t[1])),
	}
	c.emit(symbol, "trade", trade)
}

func (c *WSClient) handleCandle(symbol string, raw json.RawMessage) {
	var k [6]float64 // [MTS, OPEN, CLOSE, HIGH, LOW, VOLUME]
	if err := json.Unmarshal(raw, &k); err != nil {
		return
	}
	candle := &domain.Candle{Kline: domain.Kline{
		Exchange: "bitfinex",
		Symbol:   symbol,
		OpenTime: time.UnixMilli(int64(k[0])),
		Open:     domain.NewDecimalFromFloat64(k[1]),
		Close:    domain.NewDecimalFromFloat64(k[2]),
		High:     domain.NewDecimalFromFloat64(k[3]),
		Low:      domain.NewDecimalFromFloat64(k[4]),
		Volume:   domain.NewDecimalFromFloat64(k[5]),
		IsClosed: true,
	}}
	c.emit(symbol, "kline", candle)
}

func (c *WSClient) handleTicker(symbol string, raw json.RawMessage) {
	var t tickerRow
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	ticker := &domain.Ticker{
		Exchange:    "bitfinex",
		Symbol:      symbol,
		BidPrice:    domain.NewDecimalFromFloat64(t[0]),
		BidQuantity: domain.NewDecimalFromFloat64(t[1]),
		AskPrice:    domain.NewDecimalFromFloat64(t[2]),
		AskQuantity: domain.NewDecimalFromFloat64(t[3]),
		LastPrice:   domain.NewDecimalFromFloat64(t[6]),
		Volume:      domain.NewDecimalFromFloat64(t[7]),
		HighPrice:   domain.NewDecimalFromFloat64(t[8]),
		LowPrice:    domain.NewDecimalFromFloat64(t[9]),
		Timestamp:   time.Now(),
	}
	c.emit(symbol, "ticker", ticker)
}

// userStream is the authenticated order channel. It shares the gzip
// envelope with market channels but dispatches on the "on"/"ou"/"oc"
// token in position 1 instead of a subscribed channel id.
type userStream struct {
	conn    *gws.Conn
	connMu  sync.Mutex
	onOrder func(eventType string, row []any)
}

func newUserStream(onOrder func(eventType string, row []any)) *userStream {
	return &userStream{onOrder: onOrder}
}

func (u *userStream) Authenticate(ctx context.Context, apiKey, apiSecret string, nonce func() string) error {
	u.connMu.Lock()
	if u.conn != nil {
		u.connMu.Unlock()
		return nil
	}
	conn, _, err := gws.NewClient(u, &gws.ClientOption{
		Addr:      BaseWSURL,
		TlsConfig: &tls.Config{InsecureSkipVerify: false},
	})
	if err != nil {
		u.connMu.Unlock()
		return err
	}
	u.conn = conn
	u.connMu.Unlock()
	go conn.ReadLoop()

	n := nonce()
	payload := "AUTH" + n
	sig := signerSHA384(apiSecret, payload)
	msg := map[string]any{
		"event":       "auth",
		"apiKey":      apiKey,
		"authSig":     sig,
		"authPayload": payload,
		"authNonce":   n,
	}
	b, _ := json.Marshal(msg)
	return conn.WriteString(string(b))
}

func (u *userStream) Close() error {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	if u.conn != nil {
		u.conn.WriteClose(1000, nil)
		u.conn = nil
	}
	return nil
}

func (u *userStream) OnOpen(socket *gws.Conn)                 {}
func (u *userStream) OnClose(socket *gws.Conn, err error)     {}
func (u *userStream) OnPing(socket *gws.Conn, payload []byte) { socket.WritePong(payload) }
func (u *userStream) OnPong(socket *gws.Conn, payload []byte) {}

func (u *userStream) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	raw := message.Bytes()
	decoded, err := gunzip(raw)
	if err != nil {
		decoded = raw
	}
	var frame []json.RawMessage
	if err := json.Unmarshal(decoded, &frame); err != nil || len(frame) < 3 {
		return
	}
	var token string
	if err := json.Unmarshal(frame[1], &token); err != nil {
		return
	}
	switch token {
	case "on", "ou", "oc":
		var row []any
		if err := json.Unmarshal(frame[2], &row); err != nil {
			return
		}
		u.onOrder(orderRowEventType(token), row)
	}
}

// orderRowEventType maps venue C's "on"/"ou"/"oc" order-channel tokens
// to a canonical execution event name.
func orderRowEventType(token string) string {
	switch token {
	case "on":
		return "NEW"
	case "ou":
		return "UPDATE"
	case "oc":
		return "CLOSED"
	default:
		return strings.ToUpper(token)
	}
}
