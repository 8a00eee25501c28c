// Package world is the live game state the market engine settles into:
// connected players, item definitions and offline player records.
package world

import (
	"context"
	"log/slog"

	"otmarket/internal/domain"
)

// World tracks connected players. The online map is owned by the
// simulation goroutine and is not locked.
type World struct {
	online        map[uint32]*domain.Player
	catalog       *Catalog
	store         *PlayerStore
	inboxCapacity int
}

// New creates a World. inboxCapacity applies to players whose stored record
// has no capacity of its own; <= 0 means unlimited.
func New(catalog *Catalog, store *PlayerStore, inboxCapacity int) *World {
	return &World{
		online:        make(map[uint32]*domain.Player),
		catalog:       catalog,
		store:         store,
		inboxCapacity: inboxCapacity,
	}
}

// Login loads a player and attaches it to the live world.
func (w *World) Login(ctx context.Context, playerID uint32) (*domain.Player, error) {
	if p, ok := w.online[playerID]; ok {
		return p, nil
	}
	p, err := w.LoadOfflinePlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	p.SetOnline(true)
	w.online[playerID] = p
	slog.Debug("Player logged in", slog.Any("player_id", playerID))
	return p, nil
}

// Logout detaches a player and persists it.
func (w *World) Logout(ctx context.Context, playerID uint32) error {
	p, ok := w.online[playerID]
	if !ok {
		return nil
	}
	delete(w.online, playerID)
	p.SetOnline(false)
	return w.store.SavePlayer(ctx, p)
}

// SaveAll persists every connected player (server shutdown).
func (w *World) SaveAll(ctx context.Context) error {
	var firstErr error
	for id, p := range w.online {
		if err := w.store.SavePlayer(ctx, p); err != nil {
			slog.Error("Failed to save player", slog.Any("player_id", id), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ConnectedPlayer returns the live instance of an online player.
func (w *World) ConnectedPlayer(playerID uint32) (*domain.Player, bool) {
	p, ok := w.online[playerID]
	return p, ok
}

// LoadOfflinePlayer loads a detached instance from the store.
func (w *World) LoadOfflinePlayer(ctx context.Context, playerID uint32) (*domain.Player, error) {
	p, err := w.store.LoadPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.InboxCapacity <= 0 {
		p.InboxCapacity = w.inboxCapacity
	}
	return p, nil
}

// SavePlayer persists p.
func (w *World) SavePlayer(ctx context.Context, p *domain.Player) error {
	return w.store.SavePlayer(ctx, p)
}

// ItemType resolves an item definition.
func (w *World) ItemType(itemID uint16) (domain.ItemType, bool) {
	return w.catalog.Get(itemID)
}

// CreateItem creates an item instance.
func (w *World) CreateItem(itemType domain.ItemType, subType int32) domain.Item {
	if itemType.Stackable {
		count := subType
		if count <= 0 {
			count = 1
		}
		if count > domain.MaxStackCount {
			count = domain.MaxStackCount
		}
		return domain.Item{TypeID: itemType.ID, Count: uint16(count)}
	}

	item := domain.Item{TypeID: itemType.ID, Count: 1}
	if subType > 0 {
		item.Charges = subType
	}
	return item
}

// AddToInbox appends item to the player's inbox.
func (w *World) AddToInbox(p *domain.Player, item domain.Item) error {
	if p.InboxFull() {
		return domain.ErrInboxFull
	}
	p.Inbox = append(p.Inbox, item)
	return nil
}

// IncreaseOfflineBankBalance credits a stored player record.
func (w *World) IncreaseOfflineBankBalance(ctx context.Context, playerID uint32, amount uint64) error {
	return w.store.IncreaseBankBalance(ctx, playerID, amount)
}
