package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"otmarket/internal/domain"
	"otmarket/internal/infra/storage"
)

const testOfferDuration = time.Hour

func setupRepo(t *testing.T) *storage.OfferRepository {
	t.Helper()

	s, err := storage.NewStorage(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return storage.NewOfferRepository(s, testOfferDuration)
}

func insertOffer(t *testing.T, repo *storage.OfferRepository, offer domain.ActiveOffer) domain.ActiveOffer {
	t.Helper()
	if err := repo.InsertOffer(context.Background(), &offer); err != nil {
		t.Fatalf("InsertOffer failed: %v", err)
	}
	return offer
}

// fakeWorld keeps offline players in memory and counts persistence calls.
type fakeWorld struct {
	online  map[uint32]*domain.Player
	offline map[uint32]*domain.Player
	types   map[uint16]domain.ItemType

	saves       int
	bankCredits int
	creditErr   error
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		online:  make(map[uint32]*domain.Player),
		offline: make(map[uint32]*domain.Player),
		types:   make(map[uint16]domain.ItemType),
	}
}

func (w *fakeWorld) ConnectedPlayer(playerID uint32) (*domain.Player, bool) {
	p, ok := w.online[playerID]
	return p, ok
}

func (w *fakeWorld) LoadOfflinePlayer(_ context.Context, playerID uint32) (*domain.Player, error) {
	stored, ok := w.offline[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	copied := *stored
	copied.Inbox = append([]domain.Item(nil), stored.Inbox...)
	return &copied, nil
}

func (w *fakeWorld) SavePlayer(_ context.Context, p *domain.Player) error {
	w.saves++
	copied := *p
	w.offline[p.ID] = &copied
	return nil
}

func (w *fakeWorld) ItemType(itemID uint16) (domain.ItemType, bool) {
	t, ok := w.types[itemID]
	return t, ok
}

func (w *fakeWorld) CreateItem(itemType domain.ItemType, subType int32) domain.Item {
	if itemType.Stackable {
		return domain.Item{TypeID: itemType.ID, Count: uint16(subType)}
	}
	item := domain.Item{TypeID: itemType.ID, Count: 1}
	if subType > 0 {
		item.Charges = subType
	}
	return item
}

func (w *fakeWorld) AddToInbox(p *domain.Player, item domain.Item) error {
	if p.InboxFull() {
		return domain.ErrInboxFull
	}
	p.Inbox = append(p.Inbox, item)
	return nil
}

func (w *fakeWorld) IncreaseOfflineBankBalance(_ context.Context, playerID uint32, amount uint64) error {
	if w.creditErr != nil {
		return w.creditErr
	}
	p, ok := w.offline[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	w.bankCredits++
	p.BankBalance += amount
	return nil
}

// inlineTasks runs queries and callbacks on the calling goroutine.
type inlineTasks struct {
	runs int
}

func (r *inlineTasks) AddTask(query func(ctx context.Context) error, callback func(err error)) {
	r.runs++
	err := query(context.Background())
	if callback != nil {
		callback(err)
	}
}

// manualScheduler records scheduled tasks without running them.
type manualScheduler struct {
	delays []time.Duration
	tasks  []func()
}

func (s *manualScheduler) ScheduleOnce(delay time.Duration, task func()) {
	s.delays = append(s.delays, delay)
	s.tasks = append(s.tasks, task)
}

// fire runs the oldest pending task.
func (s *manualScheduler) fire() {
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	s.delays = s.delays[1:]
	task()
}
