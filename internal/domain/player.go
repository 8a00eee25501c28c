package domain

import (
	"fmt"
	"math"
)

// MaxStackCount is the largest count a single stackable item may carry.
const MaxStackCount = 100

// ItemType describes a tradable item definition.
type ItemType struct {
	ID        uint16 `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Stackable bool   `yaml:"stackable" json:"stackable"`
	Charges   int32  `yaml:"charges" json:"charges"` // 0 when the type has no charges
}

// SubType returns the sub value a fresh non-stackable item is created with.
// -1 means unset.
func (t ItemType) SubType() int32 {
	if t.Charges != 0 {
		return t.Charges
	}
	return -1
}

// Item is a concrete item instance placed into a container.
type Item struct {
	TypeID  uint16 `db:"item_id" json:"item_id"`
	Count   uint16 `db:"count" json:"count"`
	Charges int32  `db:"charges" json:"charges"`
}

// Player is the part of a player record the market touches.
type Player struct {
	ID            uint32 `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	BankBalance   uint64 `db:"bank_balance" json:"bank_balance"`
	InboxCapacity int    `db:"inbox_capacity" json:"inbox_capacity"`
	Inbox         []Item `db:"-" json:"inbox"`

	online bool
}

// IsOnline reports whether the player is attached to a live session.
func (p *Player) IsOnline() bool {
	return p.online
}

// SetOnline marks the player as attached to (or detached from) a session.
func (p *Player) SetOnline(online bool) {
	p.online = online
}

// CreditBank adds money to the bank balance. It refuses to wrap around.
func (p *Player) CreditBank(amount uint64) error {
	if p.BankBalance > math.MaxUint64-amount {
		return fmt.Errorf("BANK_OVERFLOW: player %d balance %d, credit %d", p.ID, p.BankBalance, amount)
	}
	p.BankBalance += amount
	return nil
}

// InboxFull reports whether no more items fit into the inbox.
// A non-positive capacity means unlimited.
func (p *Player) InboxFull() bool {
	return p.InboxCapacity > 0 && len(p.Inbox) >= p.InboxCapacity
}
