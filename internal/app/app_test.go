package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"otmarket/internal/domain"
	"otmarket/internal/engine"
	"otmarket/internal/infra"
	"otmarket/internal/infra/storage"
	"otmarket/internal/world"

	"github.com/shopspring/decimal"
)

// seedDatabase creates player 1 (Alice) and stores offer for them.
func seedDatabase(t *testing.T, dbPath string, offer domain.ActiveOffer) {
	t.Helper()

	s, err := storage.NewStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	defer s.Close()

	sqlDB, _ := s.SQLDB()
	players, err := world.NewPlayerStore(sqlDB)
	if err != nil {
		t.Fatalf("NewPlayerStore failed: %v", err)
	}
	ctx := context.Background()
	if err := players.CreatePlayer(ctx, &domain.Player{ID: 1, Name: "Alice", BankBalance: 10}); err != nil {
		t.Fatalf("CreatePlayer failed: %v", err)
	}

	repo := storage.NewOfferRepository(s, time.Hour)
	offer.PlayerID = 1
	if err := repo.InsertOffer(ctx, &offer); err != nil {
		t.Fatalf("InsertOffer failed: %v", err)
	}
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	items := filepath.Join(dir, "items.yaml")
	if err := os.WriteFile(items, []byte("items:\n  - id: 2160\n    name: crystal coin\n    stackable: true\n"), 0644); err != nil {
		t.Fatalf("failed to write items: %v", err)
	}

	body := fmt.Sprintf(`
database:
  path: %s
market:
  offer_duration_sec: 3600
  check_expired_each_min: 0
  items_file: %s
logging:
  level: error
  dir: %s
`, filepath.Join(dir, "market.db"), items, filepath.Join(dir, "logs"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// runStartupSweep boots the engine on dir, waits for the startup sweep and
// shuts down again.
func runStartupSweep(t *testing.T, dir string) *Bootstrap {
	t.Helper()

	b := NewBootstrap()
	if err := b.Initialize(writeTestConfig(t, dir)); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	waitFor(t, func() bool {
		snap := b.Metrics.Snapshot()
		return snap.Sweeps == 1 && snap.StatisticsRefresh == 1
	})

	cancel()
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	return b
}

// loadStoredPlayer reopens the database and reads a player record.
func loadStoredPlayer(t *testing.T, dbPath string, playerID uint32) *domain.Player {
	t.Helper()

	s, err := storage.NewStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer s.Close()

	sqlDB, _ := s.SQLDB()
	players, err := world.NewPlayerStore(sqlDB)
	if err != nil {
		t.Fatalf("NewPlayerStore failed: %v", err)
	}
	p, err := players.LoadPlayer(context.Background(), playerID)
	if err != nil {
		t.Fatalf("LoadPlayer failed: %v", err)
	}
	return p
}

func TestBootstrap_StartupSweepRefundsExpiredOffer(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "market.db")
	seedDatabase(t, dbPath, domain.ActiveOffer{
		Sale: domain.MarketActionBuy, ItemType: 2160, Amount: 4, Price: 25, Created: 1,
	})

	b := runStartupSweep(t, dir)

	snap := b.Metrics.Snapshot()
	if snap.OffersExpired != 1 || snap.CurrencyRefunded != 100 {
		t.Errorf("Unexpected metrics %+v", snap)
	}

	if p := loadStoredPlayer(t, dbPath, 1); p.BankBalance != 110 {
		t.Errorf("Expected balance 110, got %d", p.BankBalance)
	}
}

func TestBootstrap_StartupSweepReturnsItemsToOfflineOwner(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "market.db")
	seedDatabase(t, dbPath, domain.ActiveOffer{
		Sale: domain.MarketActionSell, ItemType: 2160, Amount: 150, Price: 25, Created: 1,
	})

	b := runStartupSweep(t, dir)

	snap := b.Metrics.Snapshot()
	if snap.OffersExpired != 1 || snap.ItemsDelivered != 150 || snap.ItemsLost != 0 {
		t.Errorf("Unexpected metrics %+v", snap)
	}

	p := loadStoredPlayer(t, dbPath, 1)
	if len(p.Inbox) != 2 {
		t.Fatalf("Expected 2 stored inbox rows, got %+v", p.Inbox)
	}
	if p.Inbox[0].TypeID != 2160 || p.Inbox[0].Count != 100 || p.Inbox[1].Count != 50 {
		t.Errorf("Expected crystal coin stacks [100 50], got %+v", p.Inbox)
	}
	if p.BankBalance != 10 {
		t.Errorf("A SELL expiry must not touch the bank, got %d", p.BankBalance)
	}
}

type stubStatistics struct {
	err   error
	calls int
	table map[domain.MarketAction]map[uint16]domain.MarketStatistics
}

func (s *stubStatistics) Refresh(context.Context) error {
	s.calls++
	return s.err
}

func (s *stubStatistics) Get(sale domain.MarketAction, itemID uint16) (domain.MarketStatistics, bool) {
	stats, ok := s.table[sale][itemID]
	return stats, ok
}

func (s *stubStatistics) Len() int { return 7 }

func TestAdminHandler(t *testing.T) {
	stats := &stubStatistics{table: map[domain.MarketAction]map[uint16]domain.MarketStatistics{
		domain.MarketActionSell: {2160: {NumTransactions: 3, LowestPrice: 90, HighestPrice: 120, TotalPrice: 310}},
	}}
	metrics := infra.NewMetrics()
	metrics.RecordExpired()
	dispatcher := engine.NewDispatcher(1)
	handler := NewAdminHandler(stats, metrics, dispatcher, nil)

	t.Run("refresh statistics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/market/statistics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var body map[string]int
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body["entries"] != 7 || stats.calls != 1 {
			t.Errorf("Unexpected response %v after %d calls", body, stats.calls)
		}
	})

	t.Run("refresh failure", func(t *testing.T) {
		stats.err = errors.New("database is locked")
		defer func() { stats.err = nil }()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/market/statistics", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/market/statistics", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", rec.Code)
		}
	})

	t.Run("item statistics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/market/statistics/sell/2160", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var body struct {
			Sale            string          `json:"sale"`
			ItemID          uint16          `json:"item_id"`
			NumTransactions uint32          `json:"num_transactions"`
			AveragePrice    decimal.Decimal `json:"average_price"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body.Sale != "SELL" || body.ItemID != 2160 || body.NumTransactions != 3 {
			t.Errorf("Unexpected body %+v", body)
		}
		if !body.AveragePrice.Equal(decimal.RequireFromString("103.33")) {
			t.Errorf("Expected average 103.33, got %s", body.AveragePrice)
		}
	})

	t.Run("item statistics errors", func(t *testing.T) {
		cases := map[string]int{
			"/admin/market/statistics/buy/2160":   http.StatusNotFound,
			"/admin/market/statistics/trade/2160": http.StatusBadRequest,
			"/admin/market/statistics/sell/70000": http.StatusBadRequest,
		}
		for path, want := range cases {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != want {
				t.Errorf("%s: expected %d, got %d", path, want, rec.Code)
			}
		}
	})

	t.Run("metrics", func(t *testing.T) {
		dispatcher.ScheduleOnce(time.Hour, func() {})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/market/metrics", nil))

		var body struct {
			OffersExpired uint64 `json:"offers_expired"`
			Dispatcher    struct {
				Executed      uint64 `json:"executed"`
				PendingTimers int    `json:"pending_timers"`
			} `json:"dispatcher"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if body.OffersExpired != 1 {
			t.Errorf("Expected offers_expired 1, got %d", body.OffersExpired)
		}
		if body.Dispatcher.PendingTimers != 1 || body.Dispatcher.Executed != 0 {
			t.Errorf("Unexpected dispatcher stats %+v", body.Dispatcher)
		}
	})
}
