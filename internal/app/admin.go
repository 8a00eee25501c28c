package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"otmarket/internal/domain"
	"otmarket/internal/infra"

	"github.com/shopspring/decimal"
)

// StatisticsCache is the statistics view the admin endpoints read and reload.
type StatisticsCache interface {
	Refresh(ctx context.Context) error
	Get(sale domain.MarketAction, itemID uint16) (domain.MarketStatistics, bool)
	Len() int
}

// DispatcherStats exposes the simulation loop counters.
type DispatcherStats interface {
	Executed() uint64
	Panics() uint64
	PendingTimers() int
}

type statisticsResponse struct {
	Sale            string          `json:"sale"`
	ItemID          uint16          `json:"item_id"`
	NumTransactions uint32          `json:"num_transactions"`
	LowestPrice     uint32          `json:"lowest_price"`
	HighestPrice    uint32          `json:"highest_price"`
	TotalPrice      uint64          `json:"total_price"`
	AveragePrice    decimal.Decimal `json:"average_price"`
}

type dispatcherSnapshot struct {
	Executed      uint64 `json:"executed"`
	Panics        uint64 `json:"panics"`
	PendingTimers int    `json:"pending_timers"`
}

type metricsResponse struct {
	infra.MetricsSnapshot
	Dispatcher dispatcherSnapshot `json:"dispatcher"`
}

// NewAdminHandler serves the operator endpoints. Everything else falls
// through to fallback (the pprof handlers on http.DefaultServeMux).
func NewAdminHandler(stats StatisticsCache, metrics *infra.Metrics, dispatcher DispatcherStats, fallback http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/market/statistics", func(w http.ResponseWriter, r *http.Request) {
		if err := stats.Refresh(r.Context()); err != nil {
			http.Error(w, "statistics refresh failed", http.StatusServiceUnavailable)
			return
		}
		slog.Info("Statistics refreshed by admin", slog.String("remote", r.RemoteAddr))
		writeJSON(w, map[string]int{"entries": stats.Len()})
	})

	mux.HandleFunc("GET /admin/market/statistics/{sale}/{item}", func(w http.ResponseWriter, r *http.Request) {
		sale, ok := domain.ParseMarketAction(r.PathValue("sale"))
		if !ok {
			http.Error(w, "sale must be buy or sell", http.StatusBadRequest)
			return
		}
		itemID, err := strconv.ParseUint(r.PathValue("item"), 10, 16)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		s, ok := stats.Get(sale, uint16(itemID))
		if !ok {
			http.Error(w, "no accepted trades", http.StatusNotFound)
			return
		}
		writeJSON(w, statisticsResponse{
			Sale:            sale.String(),
			ItemID:          uint16(itemID),
			NumTransactions: s.NumTransactions,
			LowestPrice:     s.LowestPrice,
			HighestPrice:    s.HighestPrice,
			TotalPrice:      s.TotalPrice,
			AveragePrice:    s.AveragePrice().Round(2),
		})
	})

	mux.HandleFunc("GET /admin/market/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, metricsResponse{
			MetricsSnapshot: metrics.Snapshot(),
			Dispatcher: dispatcherSnapshot{
				Executed:      dispatcher.Executed(),
				Panics:        dispatcher.Panics(),
				PendingTimers: dispatcher.PendingTimers(),
			},
		})
	})

	if fallback != nil {
		mux.Handle("/", fallback)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write admin response", slog.Any("error", err))
	}
}
