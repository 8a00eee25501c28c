package domain

import "strings"

// MarketAction is the direction of an offer as stored in the `sale` column.
// BUY offers reserve bank money, SELL offers reserve items.
type MarketAction uint8

const (
	MarketActionBuy  MarketAction = 0
	MarketActionSell MarketAction = 1
)

// String returns the string representation of MarketAction
func (a MarketAction) String() string {
	switch a {
	case MarketActionBuy:
		return "BUY"
	case MarketActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseMarketAction accepts "buy"/"sell" (any case) or the stored "0"/"1".
func ParseMarketAction(s string) (MarketAction, bool) {
	switch strings.ToLower(s) {
	case "buy", "0":
		return MarketActionBuy, true
	case "sell", "1":
		return MarketActionSell, true
	}
	return 0, false
}

// OfferState is the terminal state recorded in market history.
type OfferState uint8

const (
	OfferStateActive    OfferState = 0
	OfferStateCancelled OfferState = 1
	OfferStateExpired   OfferState = 2
	OfferStateAccepted  OfferState = 3

	// OfferStateAcceptedEx marks an acceptance settled through the
	// counter-party path. Readers report it as OfferStateAccepted.
	OfferStateAcceptedEx OfferState = 255
)

// String returns the string representation of OfferState
func (s OfferState) String() string {
	switch s {
	case OfferStateActive:
		return "ACTIVE"
	case OfferStateCancelled:
		return "CANCELLED"
	case OfferStateExpired:
		return "EXPIRED"
	case OfferStateAccepted, OfferStateAcceptedEx:
		return "ACCEPTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s may be written to market history.
func (s OfferState) IsTerminal() bool {
	switch s {
	case OfferStateCancelled, OfferStateExpired, OfferStateAccepted, OfferStateAcceptedEx:
		return true
	}
	return false
}

// Reported collapses OfferStateAcceptedEx into OfferStateAccepted.
func (s OfferState) Reported() OfferState {
	if s == OfferStateAcceptedEx {
		return OfferStateAccepted
	}
	return s
}

// AnonymousName is shown instead of the owner's name on anonymous offers.
const AnonymousName = "Anonymous"

// CounterMask extracts the client-facing counter from an offer id.
const CounterMask = 0xFFFF

// ActiveOffer is a row of the live offer table.
// Amount only shrinks (partial acceptance) and the row is deleted once the
// offer is consumed, cancelled or expired.
type ActiveOffer struct {
	ID        uint32       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PlayerID  uint32       `gorm:"column:player_id;not null;index" json:"player_id"`
	Sale      MarketAction `gorm:"column:sale;not null;index:idx_market_offers_item" json:"sale"`
	ItemType  uint16       `gorm:"column:itemtype;not null;index:idx_market_offers_item" json:"itemtype"`
	Amount    uint16       `gorm:"column:amount;not null" json:"amount"`
	Price     uint32       `gorm:"column:price;not null" json:"price"`
	Created   int64        `gorm:"column:created;not null;index" json:"created"` // Unix seconds
	Anonymous bool         `gorm:"column:anonymous;not null;default:false" json:"anonymous"`
}

// TableName returns the table name for ActiveOffer
func (ActiveOffer) TableName() string {
	return "market_offers"
}

// Counter returns the low 16 bits of the offer id.
// It is only unique together with the creation time.
func (o *ActiveOffer) Counter() uint16 {
	return Counter(o.ID)
}

// TotalPrice is the bank money reserved by a BUY offer.
func (o *ActiveOffer) TotalPrice() uint64 {
	return uint64(o.Price) * uint64(o.Amount)
}

// Counter derives the client-facing handle of an offer id.
func Counter(id uint32) uint16 {
	return uint16(id & CounterMask)
}

// HistoryOffer is the immutable record of a closed offer.
type HistoryOffer struct {
	ID        uint64       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PlayerID  uint32       `gorm:"column:player_id;not null;index" json:"player_id"`
	Sale      MarketAction `gorm:"column:sale;not null" json:"sale"`
	ItemType  uint16       `gorm:"column:itemtype;not null" json:"itemtype"`
	Amount    uint16       `gorm:"column:amount;not null" json:"amount"`
	Price     uint32       `gorm:"column:price;not null" json:"price"`
	ExpiresAt int64        `gorm:"column:expires_at;not null" json:"expires_at"` // Unix seconds
	Inserted  int64        `gorm:"column:inserted;not null" json:"inserted"`     // Unix seconds, audit only
	State     OfferState   `gorm:"column:state;not null;index" json:"state"`
}

// TableName returns the table name for HistoryOffer
func (HistoryOffer) TableName() string {
	return "market_history"
}

// MarketOffer is the public view of an active offer.
// Timestamp is the expiry (created + offer duration), as clients see it.
type MarketOffer struct {
	Amount     uint16
	Price      uint32
	Timestamp  int64
	Counter    uint16
	ItemType   uint16
	PlayerName string
}

// MarketOfferEx is the privileged view used by cancellation and acceptance.
// Timestamp is the creation time.
type MarketOfferEx struct {
	ID         uint32
	PlayerID   uint32
	Sale       MarketAction
	ItemType   uint16
	Amount     uint16
	Price      uint32
	Timestamp  int64
	Counter    uint16
	Anonymous  bool
	PlayerName string
}

// HistoryMarketOffer is the public view of a closed offer.
type HistoryMarketOffer struct {
	ItemType  uint16
	Amount    uint16
	Price     uint32
	Timestamp int64
	State     OfferState
}
