// FILE: dispatch.go
// Package main – Dispatch Bus: reserves the next monotonic alert id,
// dispatches inline (in-process) first when configured, then appends to
// the Alert Log unless running inline-only, and runs the standalone tail
// consumer that scans the log for not-yet-processed rows.
//
// Adaptive polling (tail) follows the rolling-window/paper-broker
// convention elsewhere in this tree: back off exponentially while idle,
// reset to the floor interval the moment new rows appear.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AlertHandler processes one alert exactly once. Both the inline path
// and the tail path invoke the same handler type so the decision engine
// doesn't need to know which delivery mode produced the call.
type AlertHandler func(alertID int64, alert Alert)

// InlineDispatcher is the Imbalance Detector's AlertSink. It reserves a
// monotonic id (the log's MAX(id)+1, or a local counter when running
// inline-only), optionally invokes the inline handler on a
// separate goroutine so detector latency is bounded, and appends to the
// log unless running inline-only.
type InlineDispatcher struct {
	mu         sync.Mutex
	log        *AlertLog
	logger     zerolog.Logger
	handler    AlertHandler
	inlineOnly bool
	localNextID int64
}

func newInlineDispatcher(alertLog *AlertLog, logger zerolog.Logger, handler AlertHandler, inlineOnly bool) *InlineDispatcher {
	return &InlineDispatcher{
		log:        alertLog,
		logger:     component(logger, "dispatch"),
		handler:    handler,
		inlineOnly: inlineOnly,
	}
}

// Emit implements AlertSink. It is called with the detector's lock held,
// so it must not block on anything slower than the log write itself;
// the inline handler always runs on its own goroutine.
func (d *InlineDispatcher) Emit(alert Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var id int64
	var err error
	if d.inlineOnly {
		d.localNextID++
		id = d.localNextID
	} else {
		maxID, merr := d.log.MaxID(context.Background())
		if merr != nil {
			return merr
		}
		id = maxID + 1
	}
	alert.ID = id

	if d.handler != nil {
		go d.handler(id, alert)
	}

	if !d.inlineOnly {
		err = d.log.Append(context.Background(), alert)
	}
	if err != nil {
		d.logger.Error().Err(err).Int64("alert_id", id).Msg("dispatch.append_failed")
	}
	return err
}

// TailDispatcher is the standalone consumer that polls Scan(last_processed_id)
// adaptively and processes rows in ascending id order. It maintains its own
// last_processed_id across restarts via the provided getter/setter, so it
// resumes correctly even if the process crashed mid-poll.
type TailDispatcher struct {
	log     *AlertLog
	logger  zerolog.Logger
	handler AlertHandler
	getLast func() int64
	setLast func(int64)
	limiter *rate.Limiter
}

const (
	tailPollFloor    = 50 * time.Millisecond
	tailPollCeiling  = 2 * time.Second
)

func newTailDispatcher(alertLog *AlertLog, logger zerolog.Logger, handler AlertHandler, getLast func() int64, setLast func(int64)) *TailDispatcher {
	return &TailDispatcher{
		log:     alertLog,
		logger:  component(logger, "tail_dispatch"),
		handler: handler,
		getLast: getLast,
		setLast: setLast,
		limiter: rate.NewLimiter(rate.Every(tailPollFloor), 1),
	}
}

// Run polls until ctx is cancelled, applying exponential back-off while
// idle and resetting to the floor interval as soon as rows are found.
func (t *TailDispatcher) Run(ctx context.Context) error {
	interval := tailPollFloor
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		rows, err := t.log.Scan(ctx, t.getLast())
		if err != nil {
			t.logger.Error().Err(err).Msg("tail.scan_failed")
			interval = backoff(interval)
			continue
		}
		if len(rows) == 0 {
			interval = backoff(interval)
			continue
		}
		for _, alert := range rows {
			t.handler(alert.ID, alert)
			t.setLast(alert.ID)
		}
		interval = tailPollFloor
	}
}

func backoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > tailPollCeiling {
		next = tailPollCeiling
	}
	return next
}
