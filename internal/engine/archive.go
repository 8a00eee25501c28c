package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"otmarket/internal/domain"
)

// OfferStore is the part of the offer repository the archive writes through.
type OfferStore interface {
	OfferDuration() time.Duration
	FindOffer(ctx context.Context, offerID uint32) (domain.ActiveOffer, error)
	DeleteOffer(ctx context.Context, offerID uint32) error
	AppendHistory(ctx context.Context, record *domain.HistoryOffer) error
}

// Archive moves offers from the active table into history.
type Archive struct {
	store OfferStore
}

// NewArchive creates an archive over store.
func NewArchive(store OfferStore) *Archive {
	return &Archive{store: store}
}

// MoveToHistory closes an offer with a terminal state and returns the row as
// it was before removal.
//
// The delete runs first and its affected-row count decides ownership: only
// the caller whose delete removed the row writes the history record and may
// settle the offer. Everyone else gets domain.ErrRaceLost. A crash between
// the two statements loses a history row but can never settle an offer twice.
func (a *Archive) MoveToHistory(ctx context.Context, offerID uint32, state domain.OfferState) (domain.ActiveOffer, error) {
	if !state.IsTerminal() {
		return domain.ActiveOffer{}, fmt.Errorf("%w: %s", domain.ErrInvalidState, state)
	}

	offer, err := a.store.FindOffer(ctx, offerID)
	if errors.Is(err, domain.ErrOfferNotFound) {
		return domain.ActiveOffer{}, domain.ErrRaceLost
	}
	if err != nil {
		return domain.ActiveOffer{}, err
	}

	err = a.store.DeleteOffer(ctx, offerID)
	if errors.Is(err, domain.ErrOfferNotFound) {
		return domain.ActiveOffer{}, domain.ErrRaceLost
	}
	if err != nil {
		return domain.ActiveOffer{}, err
	}

	record := &domain.HistoryOffer{
		PlayerID:  offer.PlayerID,
		Sale:      offer.Sale,
		ItemType:  offer.ItemType,
		Amount:    offer.Amount,
		Price:     offer.Price,
		ExpiresAt: offer.Created + int64(a.store.OfferDuration()/time.Second),
		State:     state,
	}
	if err := a.store.AppendHistory(ctx, record); err != nil {
		// The offer is ours now; settlement goes ahead without the record.
		slog.Error("HISTORY_RECORD_LOST",
			slog.Any("offer_id", offerID),
			slog.Any("player_id", offer.PlayerID),
			slog.String("state", state.String()),
			slog.Any("error", err))
	}

	return offer, nil
}
