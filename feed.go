// FILE: feed.go
// Package main – streaming market-data feed client. Dials the
// brokerage's level-one/level-two/chart streaming endpoint, decodes
// whatever envelope shape it sends into the types the Detector consumes
// (RawBook, trade prints, chart bars, L1 quotes), and reconnects with
// exponential backoff on any read error or silence timeout.
//
// The dial/read/backoff loop is grounded on the reference repo's
// depth.go: a single goroutine per connection, 1s initial backoff
// doubling to a 30s ceiling, reset to the floor on a clean read.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	feedReconnectFloor   = 1 * time.Second
	feedReconnectCeiling = 30 * time.Second
	feedSilenceTimeout   = 30 * time.Second
)

// FeedSink is the subset of Detector the feed drives. Kept narrow so
// tests can fake it without pulling in the whole Detector.
type FeedSink interface {
	OnBook(raw RawBook, now time.Time) (*Alert, error)
	OnTrade(symbol string, ts time.Time, price Money, size int64)
	OnChartBar(symbol string, ts time.Time, price Money, cumVolume int64)
	OnL1(symbol string, q L1Quote)
}

// envelope is the outer shape of every message the streaming endpoint
// sends, regardless of which service/content it carries. Fields beyond
// Service/Content are intentionally left to ad-hoc map decoding since
// the wire format varies by service.
type envelope struct {
	Service string            `json:"service"`
	Content []json.RawMessage `json:"content"`
}

type contentFields map[string]any

// Feed owns one websocket connection and fans incoming messages out to
// the sink. One Feed instance serves every subscribed symbol; venue
// breadth comes from the brokerage multiplexing all venues into a
// single book payload per symbol.
type Feed struct {
	url     string
	authHdr string
	symbols []string
	sink    FeedSink
	log     zerolog.Logger
}

func newFeed(url, authHdr string, symbols []string, sink FeedSink, log zerolog.Logger) *Feed {
	return &Feed{
		url:     url,
		authHdr: authHdr,
		symbols: symbols,
		sink:    sink,
		log:     component(log, "feed"),
	}
}

// Run blocks until ctx is cancelled, reconnecting with backoff on any
// error.
func (f *Feed) Run(ctx context.Context) error {
	delay := feedReconnectFloor
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.connectAndConsume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, ErrFeedTimeout) {
				// The connection was up and reading: start the backoff over.
				delay = feedReconnectFloor
			}
			f.log.Error().Err(err).Dur("retry_in", delay).Msg("feed.disconnected")
			recordFeedReconnect()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay *= 2
			if delay > feedReconnectCeiling {
				delay = feedReconnectCeiling
			}
			continue
		}
		delay = feedReconnectFloor
	}
}

func (f *Feed) connectAndConsume(ctx context.Context) error {
	dialer := websocket.DefaultDialer
	header := map[string][]string{}
	if f.authHdr != "" {
		header["Authorization"] = []string{f.authHdr}
	}
	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("feed dial: %w", err)
	}
	defer conn.Close()
	f.log.Info().Str("url", f.url).Msg("feed.connected")

	if err := f.subscribe(conn); err != nil {
		return fmt.Errorf("feed subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(feedSilenceTimeout))
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrFeedTimeout, err)
		}
		f.dispatch(env)
	}
}

func (f *Feed) subscribe(conn *websocket.Conn) error {
	req := map[string]any{
		"action":  "SUBSCRIBE",
		"symbols": f.symbols,
	}
	return conn.WriteJSON(req)
}

func (f *Feed) dispatch(env envelope) {
	now := time.Now()
	for _, raw := range env.Content {
		var fields contentFields
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		switch env.Service {
		case "LEVELONE_EQUITIES", "QUOTE":
			f.dispatchL1(fields, now)
		case "NASDAQ_BOOK", "NYSE_BOOK", "OPTIONS_BOOK", "BOOK":
			f.dispatchBook(fields, now)
		case "CHART_EQUITY", "CHART":
			f.dispatchChart(fields, now)
		case "TIMESALE_EQUITY", "TRADE":
			f.dispatchTrade(fields, now)
		}
	}
}

func (f *Feed) dispatchL1(fields contentFields, now time.Time) {
	symbol, _ := fields["key"].(string)
	if symbol == "" {
		return
	}
	var q L1Quote
	if v := fieldMoney(fields, "BID_PRICE", "1"); v != nil {
		q.Bid, q.HasBid = *v, true
	}
	if v := fieldMoney(fields, "ASK_PRICE", "2"); v != nil {
		q.Ask, q.HasAsk = *v, true
	}
	if v := fieldMoney(fields, "LAST_PRICE", "3"); v != nil {
		q.LastPrice, q.HasLast = *v, true
	}
	if v := fieldMoney(fields, "CLOSE_PRICE", "18"); v != nil {
		q.Close, q.HasClose = *v, true
	}
	f.sink.OnL1(symbol, q)
}

func (f *Feed) dispatchTrade(fields contentFields, now time.Time) {
	symbol, _ := fields["key"].(string)
	if symbol == "" {
		return
	}
	price := fieldMoney(fields, "LAST_PRICE", "3")
	size := fieldInt(fields, "LAST_SIZE", "4")
	if price == nil || size == nil {
		return
	}
	f.sink.OnTrade(symbol, now, *price, *size)
}

func (f *Feed) dispatchChart(fields contentFields, now time.Time) {
	symbol, _ := fields["key"].(string)
	if symbol == "" {
		return
	}
	price := fieldMoney(fields, "CLOSE_PRICE", "4")
	vol := fieldInt(fields, "VOLUME", "5")
	if price == nil || vol == nil {
		return
	}
	f.sink.OnChartBar(symbol, now, *price, *vol)
}

func (f *Feed) dispatchBook(fields contentFields, now time.Time) {
	symbol, _ := fields["key"].(string)
	if symbol == "" {
		return
	}
	raw := RawBook{Symbol: symbol}
	raw.Bids = parseBookSide(fields["BIDS"])
	raw.Asks = parseBookSide(fields["ASKS"])
	if alert, err := f.sink.OnBook(raw, now); err != nil {
		f.log.Error().Err(err).Str("symbol", symbol).Msg("feed.book_process_failed")
	} else if alert != nil {
		f.log.Info().Str("symbol", symbol).Str("direction", string(alert.Direction)).Msg("feed.alert_emitted")
	}
}

func parseBookSide(v any) []RawLevel {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]RawLevel, 0, len(arr))
	for _, lvlAny := range arr {
		lvl, ok := lvlAny.(map[string]any)
		if !ok {
			continue
		}
		price, _ := lvl["price"].(string)
		if price == "" {
			if f, ok := lvl["price"].(float64); ok {
				price = strconv.FormatFloat(f, 'f', -1, 64)
			}
		}
		row := RawLevel{Price: price}
		orders, _ := lvl["orders"].([]any)
		for _, ordAny := range orders {
			ord, ok := ordAny.(map[string]any)
			if !ok {
				continue
			}
			venue, _ := ord["venue"].(string)
			size, _ := ord["size"].(string)
			if size == "" {
				if f, ok := ord["size"].(float64); ok {
					size = strconv.FormatInt(int64(f), 10)
				}
			}
			row.Orders = append(row.Orders, RawVenueOrder{Venue: venue, Size: size})
		}
		out = append(out, row)
	}
	return out
}

func fieldMoney(fields contentFields, keys ...string) *Money {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			m, err := parsePositivePrice(strconv.FormatFloat(t, 'f', -1, 64))
			if err == nil {
				return &m
			}
		case string:
			m, err := parsePositivePrice(t)
			if err == nil {
				return &m
			}
		}
	}
	return nil
}

func fieldInt(fields contentFields, keys ...string) *int64 {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			i := int64(t)
			return &i
		case string:
			if i, err := strconv.ParseInt(t, 10, 64); err == nil {
				return &i
			}
		}
	}
	return nil
}
