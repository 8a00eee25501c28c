package storage

import (
	"context"
	"errors"
	"time"

	"otmarket/internal/domain"

	"gorm.io/gorm"
)

// OfferRepository runs every market query against the offer and history tables.
// Failures come back as *domain.StoreError; ErrOfferNotFound is returned
// when the addressed row does not exist.
type OfferRepository struct {
	db       *gorm.DB
	duration int64 // offer duration in seconds
	now      func() time.Time
}

// NewOfferRepository creates a repository over s. duration is the configured
// offer lifetime; it converts between creation time and the expiry clients see.
//
// ActiveOffers and OfferByCounter join the players table for owner names.
// That table belongs to world.PlayerStore, so world.NewPlayerStore must have
// run on the same database before those queries are used.
func NewOfferRepository(s *Storage, duration time.Duration) *OfferRepository {
	return &OfferRepository{
		db:       s.db,
		duration: int64(duration / time.Second),
		now:      time.Now,
	}
}

// OfferDuration returns the configured offer lifetime.
func (r *OfferRepository) OfferDuration() time.Duration {
	return time.Duration(r.duration) * time.Second
}

// offerRow is the joined view of an offer and its owner's name.
type offerRow struct {
	ID         uint32              `gorm:"column:id"`
	PlayerID   uint32              `gorm:"column:player_id"`
	Sale       domain.MarketAction `gorm:"column:sale"`
	ItemType   uint16              `gorm:"column:itemtype"`
	Amount     uint16              `gorm:"column:amount"`
	Price      uint32              `gorm:"column:price"`
	Created    int64               `gorm:"column:created"`
	Anonymous  bool                `gorm:"column:anonymous"`
	PlayerName string              `gorm:"column:player_name"`
}

func (row offerRow) displayName() string {
	if row.Anonymous {
		return domain.AnonymousName
	}
	return row.PlayerName
}

const offerRowColumns = "o.id, o.player_id, o.sale, o.itemtype, o.amount, o.price, o.created, o.anonymous, COALESCE(p.name, '') AS player_name"

func (r *OfferRepository) joinedOffers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("market_offers AS o").
		Select(offerRowColumns).
		Joins("LEFT JOIN players AS p ON p.id = o.player_id")
}

// ActiveOffers lists the open offers of one item in one direction.
// Anonymous offers carry the placeholder name instead of the owner's.
func (r *OfferRepository) ActiveOffers(ctx context.Context, sale domain.MarketAction, itemType uint16) ([]domain.MarketOffer, error) {
	var rows []offerRow
	err := r.joinedOffers(ctx).
		Where("o.sale = ? AND o.itemtype = ?", sale, itemType).
		Order("o.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("active_offers", err)
	}

	offers := make([]domain.MarketOffer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, domain.MarketOffer{
			Amount:     row.Amount,
			Price:      row.Price,
			Timestamp:  row.Created + r.duration,
			Counter:    domain.Counter(row.ID),
			ItemType:   row.ItemType,
			PlayerName: row.displayName(),
		})
	}
	return offers, nil
}

// OwnOffers lists a player's open offers in one direction. The owner always
// sees their own name.
func (r *OfferRepository) OwnOffers(ctx context.Context, sale domain.MarketAction, playerID uint32) ([]domain.MarketOffer, error) {
	var rows []domain.ActiveOffer
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND sale = ?", playerID, sale).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("own_offers", err)
	}

	offers := make([]domain.MarketOffer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, domain.MarketOffer{
			Amount:    row.Amount,
			Price:     row.Price,
			Timestamp: row.Created + r.duration,
			Counter:   row.Counter(),
			ItemType:  row.ItemType,
		})
	}
	return offers, nil
}

// OwnHistory lists a player's closed offers in one direction.
func (r *OfferRepository) OwnHistory(ctx context.Context, sale domain.MarketAction, playerID uint32) ([]domain.HistoryMarketOffer, error) {
	var rows []domain.HistoryOffer
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND sale = ?", playerID, sale).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("own_history", err)
	}

	offers := make([]domain.HistoryMarketOffer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, domain.HistoryMarketOffer{
			ItemType:  row.ItemType,
			Amount:    row.Amount,
			Price:     row.Price,
			Timestamp: row.ExpiresAt,
			State:     row.State.Reported(),
		})
	}
	return offers, nil
}

// OfferCount returns how many open offers a player has.
func (r *OfferRepository) OfferCount(ctx context.Context, playerID uint32) (uint32, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ActiveOffer{}).
		Where("player_id = ?", playerID).
		Count(&count).Error
	if err != nil {
		return 0, domain.NewStoreError("offer_count", err)
	}
	return uint32(count), nil
}

// OfferByCounter resolves a client handle. timestamp is the expiry the client
// was shown; the counter alone is ambiguous once ids pass 65535.
func (r *OfferRepository) OfferByCounter(ctx context.Context, timestamp int64, counter uint16) (domain.MarketOfferEx, error) {
	created := timestamp - r.duration

	var rows []offerRow
	err := r.joinedOffers(ctx).
		Where("o.created = ? AND (o.id & ?) = ?", created, domain.CounterMask, counter).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return domain.MarketOfferEx{}, domain.NewStoreError("offer_by_counter", err)
	}
	if len(rows) == 0 {
		return domain.MarketOfferEx{}, domain.ErrOfferNotFound
	}

	row := rows[0]
	return domain.MarketOfferEx{
		ID:         row.ID,
		PlayerID:   row.PlayerID,
		Sale:       row.Sale,
		ItemType:   row.ItemType,
		Amount:     row.Amount,
		Price:      row.Price,
		Timestamp:  row.Created,
		Counter:    domain.Counter(row.ID),
		Anonymous:  row.Anonymous,
		PlayerName: row.displayName(),
	}, nil
}

// CreateOffer inserts a new offer created now. Business rules (funds,
// inventory, quota) are the caller's responsibility.
func (r *OfferRepository) CreateOffer(ctx context.Context, playerID uint32, sale domain.MarketAction, itemType uint16, amount uint16, price uint32, anonymous bool) (*domain.ActiveOffer, error) {
	offer := &domain.ActiveOffer{
		PlayerID:  playerID,
		Sale:      sale,
		ItemType:  itemType,
		Amount:    amount,
		Price:     price,
		Created:   r.now().Unix(),
		Anonymous: anonymous,
	}
	if err := r.InsertOffer(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// InsertOffer stores offer as given. A zero ID is assigned by the database.
func (r *OfferRepository) InsertOffer(ctx context.Context, offer *domain.ActiveOffer) error {
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return domain.NewStoreError("create_offer", err)
	}
	return nil
}

// AcceptOffer takes amount units from an offer. It never lets the amount go
// below zero; removing a consumed offer is left to the caller.
func (r *OfferRepository) AcceptOffer(ctx context.Context, offerID uint32, amount uint16) error {
	res := r.db.WithContext(ctx).
		Model(&domain.ActiveOffer{}).
		Where("id = ? AND amount >= ?", offerID, amount).
		UpdateColumn("amount", gorm.Expr("amount - ?", amount))
	if res.Error != nil {
		return domain.NewStoreError("accept_offer", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindOffer(ctx, offerID); err != nil {
		return err
	}
	return domain.ErrAmountUnderflow
}

// DeleteOffer removes an offer row. ErrOfferNotFound means somebody else
// removed it first.
func (r *OfferRepository) DeleteOffer(ctx context.Context, offerID uint32) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", offerID).
		Delete(&domain.ActiveOffer{})
	if res.Error != nil {
		return domain.NewStoreError("delete_offer", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

// FindOffer reads a full offer row by id.
func (r *OfferRepository) FindOffer(ctx context.Context, offerID uint32) (domain.ActiveOffer, error) {
	var offer domain.ActiveOffer
	err := r.db.WithContext(ctx).First(&offer, "id = ?", offerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ActiveOffer{}, domain.ErrOfferNotFound
	}
	if err != nil {
		return domain.ActiveOffer{}, domain.NewStoreError("find_offer", err)
	}
	return offer, nil
}

// AppendHistory inserts a closed offer record stamped with the current time.
func (r *OfferRepository) AppendHistory(ctx context.Context, record *domain.HistoryOffer) error {
	if record.Inserted == 0 {
		record.Inserted = r.now().Unix()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return domain.NewStoreError("append_history", err)
	}
	return nil
}

// ExpiredOffers returns every offer created at or before cutoff (unix seconds).
func (r *OfferRepository) ExpiredOffers(ctx context.Context, cutoff int64) ([]domain.ActiveOffer, error) {
	var offers []domain.ActiveOffer
	err := r.db.WithContext(ctx).
		Where("created <= ?", cutoff).
		Order("id ASC").
		Find(&offers).Error
	if err != nil {
		return nil, domain.NewStoreError("expired_offers", err)
	}
	return offers, nil
}

// AcceptedStatistics aggregates accepted history per item and direction.
func (r *OfferRepository) AcceptedStatistics(ctx context.Context) ([]domain.StatisticsRow, error) {
	var rows []domain.StatisticsRow
	err := r.db.WithContext(ctx).
		Model(&domain.HistoryOffer{}).
		Select("sale, itemtype, COUNT(price) AS num, MIN(price) AS min_price, MAX(price) AS max_price, SUM(price) AS sum_price").
		Where("state = ?", domain.OfferStateAccepted).
		Group("itemtype, sale").
		Scan(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("accepted_statistics", err)
	}
	return rows, nil
}
