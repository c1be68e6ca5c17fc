package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func openTestAlertLog(t *testing.T) *AlertLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerts.db")
	log, err := openAlertLog(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("openAlertLog: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestAlertLogAppendAndScan(t *testing.T) {
	t.Parallel()
	al := openTestAlertLog(t)
	ctx := context.Background()

	a := Alert{ID: 1, Timestamp: time.Now(), Symbol: "AAPL", Direction: DirectionAskHeavy,
		Ratio: 2.5, TotalBids: 100, TotalAsks: 300, HeavyVenues: 5, Price: decimal.NewFromFloat(150.25)}
	if err := al.Append(ctx, a); err != nil {
		t.Fatalf("Append: %v", err)
	}

	maxID, err := al.MaxID(ctx)
	if err != nil {
		t.Fatalf("MaxID: %v", err)
	}
	if maxID != 1 {
		t.Errorf("MaxID = %d, want 1", maxID)
	}

	rows, err := al.Scan(ctx, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Scan returned %d rows, want 1", len(rows))
	}
	if rows[0].Symbol != "AAPL" || !rows[0].Price.Equal(a.Price) {
		t.Errorf("scanned row mismatch: %+v", rows[0])
	}
}

func TestAlertLogScanAfterID(t *testing.T) {
	t.Parallel()
	al := openTestAlertLog(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		a := Alert{ID: i, Timestamp: time.Now(), Symbol: "AAPL", Direction: DirectionBidHeavy, Price: decimal.NewFromInt(10)}
		if err := al.Append(ctx, a); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	rows, err := al.Scan(ctx, 1)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Scan(afterID=1) returned %d rows, want 2", len(rows))
	}
	if rows[0].ID != 2 || rows[1].ID != 3 {
		t.Errorf("unexpected ids: %d, %d", rows[0].ID, rows[1].ID)
	}
}

func TestAlertLogAppendOrder(t *testing.T) {
	t.Parallel()
	al := openTestAlertLog(t)
	ctx := context.Background()

	rec := OrderRecord{
		AlertID: 1, Symbol: "AAPL", Direction: DirectionAskHeavy, Side: SideShort,
		Qty: 1000, Price: decimal.NewFromFloat(99.5), BrokerOrderID: "abc123",
		StatusCode: 200, CreatedAt: time.Now(),
	}
	if err := al.AppendOrder(ctx, rec); err != nil {
		t.Fatalf("AppendOrder: %v", err)
	}
}

func TestAlertLogMaxIDEmpty(t *testing.T) {
	t.Parallel()
	al := openTestAlertLog(t)
	id, err := al.MaxID(context.Background())
	if err != nil {
		t.Fatalf("MaxID: %v", err)
	}
	if id != 0 {
		t.Errorf("MaxID on empty log = %d, want 0", id)
	}
}
