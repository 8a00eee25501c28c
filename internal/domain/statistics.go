package domain

import "github.com/shopspring/decimal"

// MarketStatistics aggregates accepted trades of one item in one direction.
// TotalPrice is a sum; divide by NumTransactions for the mean.
type MarketStatistics struct {
	NumTransactions uint32 `json:"num_transactions"`
	HighestPrice    uint32 `json:"highest_price"`
	TotalPrice      uint64 `json:"total_price"`
	LowestPrice     uint32 `json:"lowest_price"`
}

// AveragePrice returns the mean accepted price, or zero without data.
func (s MarketStatistics) AveragePrice() decimal.Decimal {
	if s.NumTransactions == 0 {
		return decimal.Zero
	}
	total := decimal.NewFromInt(int64(s.TotalPrice))
	return total.Div(decimal.NewFromInt(int64(s.NumTransactions)))
}

// StatisticsRow is one grouped row of the history aggregate query.
type StatisticsRow struct {
	Sale     MarketAction `gorm:"column:sale"`
	ItemType uint16       `gorm:"column:itemtype"`
	Num      uint32       `gorm:"column:num"`
	Min      uint32       `gorm:"column:min_price"`
	Max      uint32       `gorm:"column:max_price"`
	Sum      uint64       `gorm:"column:sum_price"`
}

// Statistics converts the row into its cached form.
func (r StatisticsRow) Statistics() MarketStatistics {
	return MarketStatistics{
		NumTransactions: r.Num,
		HighestPrice:    r.Max,
		TotalPrice:      r.Sum,
		LowestPrice:     r.Min,
	}
}
