package engine

import (
	"context"
	"errors"
	"log/slog"

	"otmarket/internal/domain"
	"otmarket/internal/infra"
)

// Settlement turns expired offers back into items or bank money for their
// owners. It mutates live players and must run on the dispatcher goroutine.
type Settlement struct {
	archive *Archive
	world   domain.World
	metrics *infra.Metrics
}

// NewSettlement creates a settlement processor.
func NewSettlement(archive *Archive, world domain.World, metrics *infra.Metrics) *Settlement {
	return &Settlement{
		archive: archive,
		world:   world,
		metrics: metrics,
	}
}

// ProcessExpired settles each offer independently. A failing offer never
// stops the rest of the batch.
func (s *Settlement) ProcessExpired(ctx context.Context, offers []domain.ActiveOffer) {
	for _, offer := range offers {
		s.settle(ctx, offer.ID)
	}
}

func (s *Settlement) settle(ctx context.Context, offerID uint32) {
	offer, err := s.archive.MoveToHistory(ctx, offerID, domain.OfferStateExpired)
	if errors.Is(err, domain.ErrRaceLost) {
		s.metrics.RecordRaceLost()
		slog.Debug("Offer already settled, skipping", slog.Any("offer_id", offerID))
		return
	}
	if err != nil {
		s.metrics.RecordStoreError()
		slog.Error("Failed to archive expired offer", slog.Any("offer_id", offerID), slog.Any("error", err))
		return
	}
	s.metrics.RecordExpired()

	switch offer.Sale {
	case domain.MarketActionSell:
		s.returnItems(ctx, offer)
	case domain.MarketActionBuy:
		s.refundMoney(ctx, offer)
	}
}

// returnItems puts the reserved items of a SELL offer back into the owner's inbox.
func (s *Settlement) returnItems(ctx context.Context, offer domain.ActiveOffer) {
	itemType, ok := s.world.ItemType(offer.ItemType)
	if !ok {
		s.metrics.RecordIntegrityGap()
		slog.Error("DATA_INTEGRITY_GAP",
			slog.Any("offer_id", offer.ID),
			slog.Any("player_id", offer.PlayerID),
			slog.Any("item_id", offer.ItemType),
			slog.Any("amount", offer.Amount),
			slog.Any("error", domain.ErrUnknownItemType))
		return
	}

	player, release, err := s.acquirePlayer(ctx, offer.PlayerID)
	if err != nil {
		s.metrics.RecordLost(uint64(offer.Amount))
		slog.Error("ITEM_RETURN_FAILED",
			slog.Any("offer_id", offer.ID),
			slog.Any("player_id", offer.PlayerID),
			slog.Any("item_id", offer.ItemType),
			slog.Any("amount", offer.Amount),
			slog.Any("error", err))
		return
	}
	defer release()

	delivered := s.deliver(player, itemType, offer.Amount)
	s.metrics.RecordDelivered(uint64(delivered))

	if lost := offer.Amount - delivered; lost > 0 {
		s.metrics.RecordLost(uint64(lost))
		slog.Warn("INBOX_CAPACITY_EXCEEDED",
			slog.Any("offer_id", offer.ID),
			slog.Any("player_id", offer.PlayerID),
			slog.Any("item_id", offer.ItemType),
			slog.Any("delivered", delivered),
			slog.Any("lost", lost))
	}
}

// deliver inserts up to amount units and returns how many fit. Stackable
// items go in stacks of at most MaxStackCount, others one by one. The first
// rejected insert ends delivery.
func (s *Settlement) deliver(player *domain.Player, itemType domain.ItemType, amount uint16) uint16 {
	var delivered uint16

	if itemType.Stackable {
		for delivered < amount {
			count := min(amount-delivered, domain.MaxStackCount)
			item := s.world.CreateItem(itemType, int32(count))
			if err := s.world.AddToInbox(player, item); err != nil {
				return delivered
			}
			delivered += count
		}
		return delivered
	}

	for delivered < amount {
		item := s.world.CreateItem(itemType, itemType.SubType())
		if err := s.world.AddToInbox(player, item); err != nil {
			return delivered
		}
		delivered++
	}
	return delivered
}

// refundMoney returns the reserved bank money of a BUY offer.
func (s *Settlement) refundMoney(ctx context.Context, offer domain.ActiveOffer) {
	total := offer.TotalPrice()

	var err error
	if player, ok := s.world.ConnectedPlayer(offer.PlayerID); ok {
		err = player.CreditBank(total)
	} else {
		err = s.world.IncreaseOfflineBankBalance(ctx, offer.PlayerID, total)
	}

	if err != nil {
		s.metrics.RecordRefundFailure()
		slog.Error("REFUND_FAILED",
			slog.Any("offer_id", offer.ID),
			slog.Any("player_id", offer.PlayerID),
			slog.Any("amount", total),
			slog.Any("error", err))
		return
	}
	s.metrics.RecordRefund(total)
}

// acquirePlayer returns the live player if connected. Otherwise it loads a
// detached instance owned by the caller; release persists it unless the
// player connected in the meantime. release is never nil on success.
func (s *Settlement) acquirePlayer(ctx context.Context, playerID uint32) (*domain.Player, func(), error) {
	if player, ok := s.world.ConnectedPlayer(playerID); ok {
		return player, func() {}, nil
	}

	player, err := s.world.LoadOfflinePlayer(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		if _, ok := s.world.ConnectedPlayer(playerID); ok {
			return
		}
		if err := s.world.SavePlayer(ctx, player); err != nil {
			s.metrics.RecordStoreError()
			slog.Error("Failed to save offline player",
				slog.Any("player_id", playerID),
				slog.Any("error", err))
		}
	}
	return player, release, nil
}
