package domain

import (
	"context"
	"time"
)

// World is the live game state the settlement engine delivers into.
// Every method except the offline ones must be called from the simulation
// goroutine.
type World interface {
	// ConnectedPlayer returns the live player instance if the owner is online.
	ConnectedPlayer(playerID uint32) (*Player, bool)

	// LoadOfflinePlayer loads a transient instance exclusively owned by the caller.
	LoadOfflinePlayer(ctx context.Context, playerID uint32) (*Player, error)

	// SavePlayer persists a player instance.
	SavePlayer(ctx context.Context, player *Player) error

	// ItemType resolves an item definition.
	ItemType(itemID uint16) (ItemType, bool)

	// CreateItem creates an item instance. subType is the stack count for
	// stackable types and the charge count (or -1) otherwise.
	CreateItem(itemType ItemType, subType int32) Item

	// AddToInbox places an item into the player's inbox, or returns ErrInboxFull.
	AddToInbox(player *Player, item Item) error

	// IncreaseOfflineBankBalance credits money straight to the stored record.
	IncreaseOfflineBankBalance(ctx context.Context, playerID uint32, amount uint64) error
}

// Scheduler runs a task on the simulation goroutine after a delay.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, task func())
}

// TaskRunner runs a storage query off the simulation goroutine and hands the
// outcome back to it.
type TaskRunner interface {
	AddTask(query func(ctx context.Context) error, callback func(err error))
}
