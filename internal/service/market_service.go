package service

import (
	"context"
	"errors"
	"log/slog"

	"otmarket/internal/domain"
	"otmarket/internal/engine"
	"otmarket/internal/infra"
	"otmarket/internal/infra/storage"
)

// MarketService is the entry point the request layer uses for offers.
// Reads answer synchronously and degrade to an empty result when the store
// fails; writes are queued on the storage task runner and never block.
type MarketService struct {
	repo      *storage.OfferRepository
	tasks     domain.TaskRunner
	archive   *engine.Archive
	metrics   *infra.Metrics
	maxOffers uint32
}

// NewMarketService creates the facade. maxOffers of 0 disables the quota.
func NewMarketService(repo *storage.OfferRepository, tasks domain.TaskRunner, archive *engine.Archive,
	metrics *infra.Metrics, maxOffers uint32) *MarketService {
	return &MarketService{
		repo:      repo,
		tasks:     tasks,
		archive:   archive,
		metrics:   metrics,
		maxOffers: maxOffers,
	}
}

func (s *MarketService) storeFailed(op string, err error, attrs ...any) {
	s.metrics.RecordStoreError()
	attrs = append(attrs, slog.String("op", op), slog.Any("error", err))
	slog.Error("Market query failed", attrs...)
}

// ActiveOffers lists the open offers of an item.
func (s *MarketService) ActiveOffers(ctx context.Context, sale domain.MarketAction, itemID uint16) []domain.MarketOffer {
	offers, err := s.repo.ActiveOffers(ctx, sale, itemID)
	if err != nil {
		s.storeFailed("active_offers", err, slog.Any("item_id", itemID))
		return []domain.MarketOffer{}
	}
	return offers
}

// OwnOffers lists a player's open offers.
func (s *MarketService) OwnOffers(ctx context.Context, sale domain.MarketAction, playerID uint32) []domain.MarketOffer {
	offers, err := s.repo.OwnOffers(ctx, sale, playerID)
	if err != nil {
		s.storeFailed("own_offers", err, slog.Any("player_id", playerID))
		return []domain.MarketOffer{}
	}
	return offers
}

// OwnHistory lists a player's closed offers.
func (s *MarketService) OwnHistory(ctx context.Context, sale domain.MarketAction, playerID uint32) []domain.HistoryMarketOffer {
	offers, err := s.repo.OwnHistory(ctx, sale, playerID)
	if err != nil {
		s.storeFailed("own_history", err, slog.Any("player_id", playerID))
		return []domain.HistoryMarketOffer{}
	}
	return offers
}

// OfferCount returns a player's open offer count, or 0 when the store fails.
func (s *MarketService) OfferCount(ctx context.Context, playerID uint32) uint32 {
	count, err := s.repo.OfferCount(ctx, playerID)
	if err != nil {
		s.storeFailed("offer_count", err, slog.Any("player_id", playerID))
		return 0
	}
	return count
}

// CanCreateOffer reports whether the player is below the open offer quota.
// A failed count is treated as over quota.
func (s *MarketService) CanCreateOffer(ctx context.Context, playerID uint32) bool {
	if s.maxOffers == 0 {
		return true
	}
	count, err := s.repo.OfferCount(ctx, playerID)
	if err != nil {
		s.storeFailed("offer_count", err, slog.Any("player_id", playerID))
		return false
	}
	return count < s.maxOffers
}

// OfferByCounter resolves the handle a client holds: the expiry it was
// shown and the 16-bit counter.
func (s *MarketService) OfferByCounter(ctx context.Context, expiry int64, counter uint16) (domain.MarketOfferEx, bool) {
	offer, err := s.repo.OfferByCounter(ctx, expiry, counter)
	if errors.Is(err, domain.ErrOfferNotFound) {
		return domain.MarketOfferEx{}, false
	}
	if err != nil {
		s.storeFailed("offer_by_counter", err, slog.Int64("expiry", expiry), slog.Any("counter", counter))
		return domain.MarketOfferEx{}, false
	}
	return offer, true
}

// CreateOffer queues the insertion of a new offer. Funds, items and quota
// must have been checked by the caller.
func (s *MarketService) CreateOffer(playerID uint32, sale domain.MarketAction, itemID uint16, amount uint16, price uint32, anonymous bool) {
	s.tasks.AddTask(
		func(ctx context.Context) error {
			_, err := s.repo.CreateOffer(ctx, playerID, sale, itemID, amount, price, anonymous)
			return err
		},
		func(err error) {
			if err != nil {
				s.storeFailed("create_offer", err, slog.Any("player_id", playerID), slog.Any("item_id", itemID))
			}
		},
	)
}

// AcceptOffer queues taking amount units from an offer. Removing a fully
// consumed offer is up to the caller.
func (s *MarketService) AcceptOffer(offerID uint32, amount uint16) {
	s.tasks.AddTask(
		func(ctx context.Context) error {
			return s.repo.AcceptOffer(ctx, offerID, amount)
		},
		func(err error) {
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrOfferNotFound), errors.Is(err, domain.ErrAmountUnderflow):
				slog.Warn("Offer acceptance rejected", slog.Any("offer_id", offerID), slog.Any("error", err))
			default:
				s.storeFailed("accept_offer", err, slog.Any("offer_id", offerID))
			}
		},
	)
}

// DeleteOffer queues removal of an offer row. A row that is already gone
// was settled by someone else and is not an error.
func (s *MarketService) DeleteOffer(offerID uint32) {
	s.tasks.AddTask(
		func(ctx context.Context) error {
			return s.repo.DeleteOffer(ctx, offerID)
		},
		func(err error) {
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrOfferNotFound):
				slog.Debug("Offer already removed", slog.Any("offer_id", offerID))
			default:
				s.storeFailed("delete_offer", err, slog.Any("offer_id", offerID))
			}
		},
	)
}

// CloseOffer archives an offer with a cancellation or acceptance state and
// returns the removed row. domain.ErrRaceLost means it was closed elsewhere
// and the caller must not refund anything.
func (s *MarketService) CloseOffer(ctx context.Context, offerID uint32, state domain.OfferState) (domain.ActiveOffer, error) {
	if state == domain.OfferStateExpired {
		return domain.ActiveOffer{}, domain.ErrInvalidState
	}

	offer, err := s.archive.MoveToHistory(ctx, offerID, state)
	switch {
	case err == nil:
		slog.Info("Offer closed",
			slog.Any("offer_id", offerID),
			slog.Any("player_id", offer.PlayerID),
			slog.String("state", state.String()))
	case errors.Is(err, domain.ErrRaceLost):
		s.metrics.RecordRaceLost()
	case errors.Is(err, domain.ErrInvalidState):
	default:
		s.storeFailed("close_offer", err, slog.Any("offer_id", offerID))
	}
	return offer, err
}
