package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCounter(t *testing.T) {
	cases := []struct {
		id   uint32
		want uint16
	}{
		{1, 1},
		{65535, 65535},
		{65536, 0},
		{65537, 1},
		{131072, 0},
	}
	for _, c := range cases {
		if got := Counter(c.id); got != c.want {
			t.Errorf("Counter(%d) = %d, want %d", c.id, got, c.want)
		}
	}

	offer := ActiveOffer{ID: 131073}
	if offer.Counter() != 1 {
		t.Errorf("Expected counter 1, got %d", offer.Counter())
	}
}

func TestOfferState_Reported(t *testing.T) {
	if OfferStateAcceptedEx.Reported() != OfferStateAccepted {
		t.Error("ACCEPTED_EX should be reported as ACCEPTED")
	}
	for _, s := range []OfferState{OfferStateCancelled, OfferStateExpired, OfferStateAccepted} {
		if s.Reported() != s {
			t.Errorf("%s should be reported unchanged", s)
		}
	}
	if OfferStateAcceptedEx.String() != "ACCEPTED" {
		t.Errorf("Expected ACCEPTED, got %s", OfferStateAcceptedEx.String())
	}
}

func TestOfferState_IsTerminal(t *testing.T) {
	if OfferStateActive.IsTerminal() {
		t.Error("ACTIVE is not terminal")
	}
	if !OfferStateExpired.IsTerminal() || !OfferStateAcceptedEx.IsTerminal() {
		t.Error("EXPIRED and ACCEPTED_EX are terminal")
	}
}

func TestActiveOffer_TotalPrice(t *testing.T) {
	offer := ActiveOffer{Amount: math.MaxUint16, Price: math.MaxUint32}
	want := uint64(math.MaxUint16) * uint64(math.MaxUint32)
	if offer.TotalPrice() != want {
		t.Errorf("Expected %d, got %d", want, offer.TotalPrice())
	}
}

func TestMarketStatistics_AveragePrice(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		var s MarketStatistics
		if !s.AveragePrice().IsZero() {
			t.Errorf("Expected zero, got %v", s.AveragePrice())
		}
	})

	t.Run("mean of total", func(t *testing.T) {
		s := StatisticsRow{Num: 3, Min: 100, Max: 300, Sum: 500}.Statistics()
		want := decimal.NewFromInt(500).Div(decimal.NewFromInt(3))
		if !s.AveragePrice().Equal(want) {
			t.Errorf("Expected %v, got %v", want, s.AveragePrice())
		}
		if s.LowestPrice != 100 || s.HighestPrice != 300 {
			t.Errorf("Unexpected bounds: %+v", s)
		}
	})
}

func TestParseMarketAction(t *testing.T) {
	cases := []struct {
		in   string
		want MarketAction
		ok   bool
	}{
		{"buy", MarketActionBuy, true},
		{"SELL", MarketActionSell, true},
		{"0", MarketActionBuy, true},
		{"1", MarketActionSell, true},
		{"trade", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseMarketAction(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseMarketAction(%q) = %s, %v; want %s, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
