package ftx

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog/log"

	"github.com/lilwiggy/ex-act/internal/orderbook"
	"github.com/lilwiggy/ex-act/pkg/domain"
)

// WSClient is venue D's market stream. Order-book channels verify every
// update against a venue-supplied checksum and force a resubscribe (a
// fresh "partial" snapshot) the moment one fails, instead of silently
// drifting.
type WSClient struct {
	conn   *gws.Conn
	connMu sync.Mutex
	emit   func(symbol, eventKey string, data any)

	booksMu sync.Mutex
	books   map[string]*orderbook.Book // market -> book
}

func NewWSClient(emit func(symbol, eventKey string, data any)) *WSClient {
	return &WSClient{emit: emit, books: make(map[string]*orderbook.Book)}
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

func (c *WSClient) subscribeRaw(channel, market string) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("ftx: websocket not connected")
	}
	msg := map[string]string{"op": "subscribe", "channel": channel, "market": market}
	b, _ := json.Marshal(msg)
	return conn.WriteString(string(b))
}

func (c *WSClient) Subscribe(channel, market string) error {
	return c.subscribeRaw(channel, market)
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
	log.Warn().Err(err).Msg("ftx: market stream closed")
}

func (c *WSClient) OnPing(socket *gws.Conn, payload []byte) {
	socket.SetDeadline(time.Now().Add(30 * time.Second))
	socket.WritePong(payload)
}

func (c *WSClient) OnPong(socket *gws.Conn, payload []byte) {}

func (c *WSClient) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	socket.SetDeadline(time.Now().Add(30 * time.Second))

	var frame struct {
		Channel string          `json:"channel"`
		Market  string          `json:"market"`
		Type    string          `json:"type"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message.Bytes(), &frame); err != nil {
		return
	}
	if frame.Type == "pong" || frame.Type == "subscribed" {
		return
	}

	switch frame.Channel {
	case "orderbook":
		c.handleOrderBook(frame.Market, frame.Type, frame.Data)
	case "trades":
		c.handleTrades(frame.Market, frame.Data)
	case "ticker":
		c.handleTicker(frame.Market, frame.Data)
	}
}

type orderBookFrame struct {
	Bids     [][2]float64 `json:"bids"`
	Asks     [][2]float64 `json:"asks"`
	Checksum int32        `json:"checksum"`
	Time     float64      `json:"time"`
}

func (c *WSClient) bookFor(market string) *orderbook.Book {
	c.booksMu.Lock()
	defer c.booksMu.Unlock()
	b, ok := c.books[market]
	if !ok {
		b = orderbook.NewFromSnapshot(market, 0, nil, nil)
		c.books[market] = b
	}
	return b
}

func (c *WSClient) handleOrderBook(market, frameType string, raw json.RawMessage) {
	var f orderBookFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return
	}
	book := c.bookFor(market)

	switch frameType {
	case "partial":
		book.Reseed(int64(f.Time*1000), levelsFromPairs(f.Bids), levelsFromPairs(f.Asks))
	case "update":
		for _, p := range f.Bids {
			book.Upsert(orderbook.Bid, domain.NewDecimalFromFloat64(p[0]), domain.NewDecimalFromFloat64(p[1]))
		}
		for _, p := range f.Asks {
			book.Upsert(orderbook.Ask, domain.NewDecimalFromFloat64(p[0]), domain.NewDecimalFromFloat64(p[1]))
		}
		book.SetLastUpdateID(int64(f.Time * 1000))
	default:
		return
	}

	if !book.VerifyChecksum(f.Checksum) {
		log.Warn().Str("market", market).Msg("ftx: order book checksum mismatch, resubscribing")
		c.booksMu.Lock()
		delete(c.books, market)
		c.booksMu.Unlock()
		if err := c.subscribeRaw("orderbook", market); err != nil {
			log.Warn().Err(err).Msg("ftx: resubscribe after checksum failure")
		}
		return
	}

	c.emit(market, "depth", &domain.OrderBook{
		Exchange:     "ftx",
		Symbol:       market,
		Bids:         book.Top5().Bids,
		Asks:         book.Top5().Asks,
		LastUpdateID: int64(f.Time * 1000),
		Timestamp:    time.Now(),
	})
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

func (c *WSClient) handleTrades(market string, raw json.RawMessage) {
	var trades []struct {
		ID   int64   `json:"id"`
		Price float64 `json:"price"`
		Size  float64 `json:"size"`
		Side  string  `json:"side"`
		Time  string  `json:"time"`
	}
	if err := json.Unmarshal(raw, &trades); err != nil {
		return
	}
	for _, t := range trades {
		side := domain.OrderSideBuy
		if strings.EqualFold(t.Side, "sell") {
			side = domain.OrderSideSell
		}
		c.emit(market, "trade", &domain.Trade{
			Exchange:  "ftx",
			Symbol:    market,
			ID:        t.ID,
			Price:     domain.NewDecimalFromFloat64(t.Price),
			Quantity:  domain.NewDecimalFromFloat64(t.Size),
			Side:      side,
			Timestamp: parseTimeRFC3339(t.Time),
		})
	}
}

func (c *WSClient) handleTicker(market string, raw json.RawMessage) {
	var t struct {
		Bid  float64 `json:"bid"`
		Ask  float64 `json:"ask"`
		Last float64 `json:"last"`
		Time float64 `json:"time"`
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	c.emit(market, "ticker", &domain.Ticker{
		Exchange:  "ftx",
		Symbol:    market,
		BidPrice:  domain.NewDecimalFromFloat64(t.Bid),
		AskPrice:  domain.NewDecimalFromFloat64(t.Ask),
		LastPrice: domain.NewDecimalFromFloat64(t.Last),
		Timestamp: time.UnixMilli(int64(t.Time * 1000)),
	})
}

// userWSClient is venue D's authenticated fills/orders stream.
type userWSClient struct {
	conn    *gws.Conn
	connMu  sync.Mutex
	onOrder func(raw json.RawMessage)
}

func newUserWSClient(onOrder func(raw json.RawMessage)) *userWSClient {
	return &userWSClient{onOrder: onOrder}
}

func (u *userWSClient) Connect(ctx context.Context, apiKey, apiSecret string, signFn func(ts string) string) error {
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

	ts := time.Now().UnixMilli()
	sign := signFn(fmt.Sprintf("%d", ts))
	login := map[string]any{
		"op": "login",
		"args": map[string]any{
			"key":  apiKey,
			"sign": sign,
			"time": ts,
		},
	}
	b, _ := json.Marshal(login)
	if err := conn.WriteString(string(b)); err != nil {
		return err
	}
	sub := map[string]string{"op": "subscribe", "channel": "orders"}
	b2, _ := json.Marshal(sub)
	return conn.WriteString(string(b2))
}

func (u *userWSClient) Close() error {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	if u.conn != nil {
		u.conn.WriteClose(1000, nil)
		u.conn = nil
	}
	return nil
}

func (u *userWSClient) OnOpen(socket *gws.Conn)                 {}
func (u *userWSClient) OnClose(socket *gws.Conn, err error)     {}
func (u *userWSClient) OnPing(socket *gws.Conn, payload []byte) { socket.WritePong(payload) }
func (u *userWSClient) OnPong(socket *gws.Conn, payload []byte) {}
func (u *userWSClient) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	var frame struct {
		Channel string          `json:"channel"`
		Type    string          `json:"type"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message.Bytes(), &frame); err != nil {
		return
	}
	if frame.Channel == "orders" && frame.Type == "update" {
		u.onOrder(frame.Data)
	}
}
