package service

import (
	"context"
	"log/slog"
	"sync/atomic"

	"otmarket/internal/domain"
	"otmarket/internal/infra"
)

// StatisticsSource aggregates accepted history per item and direction.
type StatisticsSource interface {
	AcceptedStatistics(ctx context.Context) ([]domain.StatisticsRow, error)
}

type statisticsTable struct {
	buy  map[uint16]domain.MarketStatistics
	sell map[uint16]domain.MarketStatistics
}

// Statistics caches per-item trade statistics. Refresh replaces the whole
// table at once, so readers see either the old or the new aggregate.
type Statistics struct {
	source  StatisticsSource
	metrics *infra.Metrics
	table   atomic.Pointer[statisticsTable]
}

// NewStatistics creates an empty cache. Call Refresh to load it.
func NewStatistics(source StatisticsSource, metrics *infra.Metrics) *Statistics {
	s := &Statistics{source: source, metrics: metrics}
	s.table.Store(&statisticsTable{
		buy:  map[uint16]domain.MarketStatistics{},
		sell: map[uint16]domain.MarketStatistics{},
	})
	return s
}

// Refresh recomputes every entry from history. On failure the previous
// table stays in place.
func (s *Statistics) Refresh(ctx context.Context) error {
	rows, err := s.source.AcceptedStatistics(ctx)
	if err != nil {
		s.metrics.RecordStoreError()
		slog.Error("Failed to refresh market statistics", slog.Any("error", err))
		return err
	}

	next := &statisticsTable{
		buy:  make(map[uint16]domain.MarketStatistics),
		sell: make(map[uint16]domain.MarketStatistics),
	}
	for _, row := range rows {
		switch row.Sale {
		case domain.MarketActionBuy:
			next.buy[row.ItemType] = row.Statistics()
		case domain.MarketActionSell:
			next.sell[row.ItemType] = row.Statistics()
		}
	}

	s.table.Store(next)
	s.metrics.RecordStatisticsRefresh()
	slog.Info("Market statistics refreshed",
		slog.Int("buy_items", len(next.buy)),
		slog.Int("sell_items", len(next.sell)))
	return nil
}

// Get returns the statistics of an item, or false when it never traded in
// that direction.
func (s *Statistics) Get(sale domain.MarketAction, itemID uint16) (domain.MarketStatistics, bool) {
	table := s.table.Load()

	var stats domain.MarketStatistics
	var ok bool
	switch sale {
	case domain.MarketActionBuy:
		stats, ok = table.buy[itemID]
	case domain.MarketActionSell:
		stats, ok = table.sell[itemID]
	}
	return stats, ok
}

// Len returns the number of cached entries in both directions.
func (s *Statistics) Len() int {
	table := s.table.Load()
	return len(table.buy) + len(table.sell)
}
