package repository

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"dex-backend/internal/models"

	"github.com/shopspring/decimal"
)

type stakeKey struct {
	user    string
	slot    uint64
	chainID uint64
}

type feesKey struct {
	token   string
	slot    uint64
	chainID uint64
}

type withdrawalKey struct {
	user    string
	token   string
	slot    uint64
	chainID uint64
}

// memoryState holds every table. Rows are stored by value so a shallow map copy is a snapshot.
type memoryState struct {
	users       map[string]models.User
	makers      map[uint]models.Maker
	makerHashes map[string]uint
	bots        map[uint]models.Bot
	takers      map[uint]models.Taker
	stakes      map[stakeKey]models.StakingEntry
	fees        map[feesKey]models.StakingFeesEntry
	withdrawals map[withdrawalKey]models.StakingFeesWithdrawal
	nextID      uint
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:       make(map[string]models.User),
		makers:      make(map[uint]models.Maker),
		makerHashes: make(map[string]uint),
		bots:        make(map[uint]models.Bot),
		takers:      make(map[uint]models.Taker),
		stakes:      make(map[stakeKey]models.StakingEntry),
		fees:        make(map[feesKey]models.StakingFeesEntry),
		withdrawals: make(map[withdrawalKey]models.StakingFeesWithdrawal),
	}
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		users:       make(map[string]models.User, len(s.users)),
		makers:      make(map[uint]models.Maker, len(s.makers)),
		makerHashes: make(map[string]uint, len(s.makerHashes)),
		bots:        make(map[uint]models.Bot, len(s.bots)),
		takers:      make(map[uint]models.Taker, len(s.takers)),
		stakes:      make(map[stakeKey]models.StakingEntry, len(s.stakes)),
		fees:        make(map[feesKey]models.StakingFeesEntry, len(s.fees)),
		withdrawals: make(map[withdrawalKey]models.StakingFeesWithdrawal, len(s.withdrawals)),
		nextID:      s.nextID,
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.makers {
		out.makers[k] = v
	}
	for k, v := range s.makerHashes {
		out.makerHashes[k] = v
	}
	for k, v := range s.bots {
		out.bots[k] = v
	}
	for k, v := range s.takers {
		out.takers[k] = v
	}
	for k, v := range s.stakes {
		out.stakes[k] = v
	}
	for k, v := range s.fees {
		out.fees[k] = v
	}
	for k, v := range s.withdrawals {
		out.withdrawals[k] = v
	}
	return out
}

func (s *memoryState) id() uint {
	s.nextID++
	return s.nextID
}

// MemoryStore implements Store in process memory. Transactions serialize on one
// lock and restore a snapshot on error.
type MemoryStore struct {
	mu    *sync.Mutex
	state **memoryState
	inTx  bool
}

// NewMemoryStore creates an empty in-memory Store
func NewMemoryStore() *MemoryStore {
	state := newMemoryState()
	return &MemoryStore{mu: &sync.Mutex{}, state: &state}
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) st() *memoryState {
	return *s.state
}

func (s *MemoryStore) Users() UserRepository { return (*memoryUsers)(s) }
func (s *MemoryStore) Makers() MakerRepository { return (*memoryMakers)(s) }
func (s *MemoryStore) Bots() BotRepository { return (*memoryBots)(s) }
func (s *MemoryStore) Takers() TakerRepository { return (*memoryTakers)(s) }
func (s *MemoryStore) Staking() StakingRepository { return (*memoryStaking)(s) }

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.lock()
	defer unlock()

	snapshot := s.st().clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, inTx: true}
	if err := fn(tx); err != nil {
		*s.state = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memoryUsers MemoryStore

func (r *memoryUsers) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryUsers) Ensure(ctx context.Context, address string) (bool, error) {
	defer r.store().lock()()
	st := r.store().st()
	if _, ok := st.users[address]; ok {
		return false, nil
	}
	st.users[address] = models.User{Address: address, CreatedAt: time.Now()}
	return true, nil
}

func (r *memoryUsers) Get(ctx context.Context, address string) (*models.User, error) {
	defer r.store().lock()()
	user, ok := r.store().st().users[address]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

type memoryMakers MemoryStore

func (r *memoryMakers) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryMakers) insert(st *memoryState, maker *models.Maker) error {
	if _, ok := st.makerHashes[maker.OrderHash]; ok {
		return ErrDuplicate
	}
	if maker.Status == "" {
		maker.Status = models.MakerStatusOpen
	}
	now := time.Now()
	maker.ID = st.id()
	maker.CreatedAt = now
	maker.UpdatedAt = now
	st.makers[maker.ID] = *maker
	st.makerHashes[maker.OrderHash] = maker.ID
	return nil
}

func (r *memoryMakers) Create(ctx context.Context, maker *models.Maker) error {
	defer r.store().lock()()
	return r.insert(r.store().st(), maker)
}

func (r *memoryMakers) CreateBatch(ctx context.Context, makers []*models.Maker) error {
	defer r.store().lock()()
	st := r.store().st()
	seen := make(map[string]struct{}, len(makers))
	for _, m := range makers {
		if _, ok := seen[m.OrderHash]; ok {
			return ErrDuplicate
		}
		if _, ok := st.makerHashes[m.OrderHash]; ok {
			return ErrDuplicate
		}
		seen[m.OrderHash] = struct{}{}
	}
	for _, m := range makers {
		if err := r.insert(st, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryMakers) GetByHash(ctx context.Context, orderHash string) (*models.Maker, error) {
	defer r.store().lock()()
	st := r.store().st()
	id, ok := st.makerHashes[orderHash]
	if !ok {
		return nil, ErrNotFound
	}
	maker := st.makers[id]
	return &maker, nil
}

func (r *memoryMakers) LockByHashes(ctx context.Context, orderHashes []string) ([]*models.Maker, error) {
	defer r.store().lock()()
	st := r.store().st()
	return r.filter(st, func(m *models.Maker) bool {
		for _, h := range orderHashes {
			if m.OrderHash == h {
				return true
			}
		}
		return false
	}), nil
}

func (r *memoryMakers) ExistingHashes(ctx context.Context, orderHashes []string) ([]string, error) {
	defer r.store().lock()()
	st := r.store().st()
	var out []string
	for _, h := range orderHashes {
		if _, ok := st.makerHashes[h]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memoryMakers) filter(st *memoryState, keep func(*models.Maker) bool) []*models.Maker {
	out := make([]*models.Maker, 0)
	for _, m := range st.makers {
		m := m
		if keep(&m) {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryMakers) FindByPair(ctx context.Context, chainID uint64, base, quote string) ([]*models.Maker, error) {
	defer r.store().lock()()
	return r.filter(r.store().st(), func(m *models.Maker) bool {
		return m.ChainID == chainID && m.BaseToken == base && m.QuoteToken == quote
	}), nil
}

func (r *memoryMakers) FindByPairAndOwner(ctx context.Context, chainID uint64, base, quote, owner string) ([]*models.Maker, error) {
	defer r.store().lock()()
	return r.filter(r.store().st(), func(m *models.Maker) bool {
		return m.ChainID == chainID && m.BaseToken == base && m.QuoteToken == quote && m.Owner == owner
	}), nil
}

func (r *memoryMakers) FindByOwner(ctx context.Context, owner string) ([]*models.Maker, error) {
	defer r.store().lock()()
	return r.filter(r.store().st(), func(m *models.Maker) bool {
		return m.Owner == owner
	}), nil
}

func (r *memoryMakers) FindByBots(ctx context.Context, botIDs []uint) ([]*models.Maker, error) {
	defer r.store().lock()()
	ids := make(map[uint]struct{}, len(botIDs))
	for _, id := range botIDs {
		ids[id] = struct{}{}
	}
	return r.filter(r.store().st(), func(m *models.Maker) bool {
		if m.BotID == nil {
			return false
		}
		_, ok := ids[*m.BotID]
		return ok
	}), nil
}

func (r *memoryMakers) AddFilled(ctx context.Context, id uint, amount *big.Int) (*models.Maker, error) {
	defer r.store().lock()()
	st := r.store().st()
	maker, ok := st.makers[id]
	if !ok {
		return nil, ErrNotFound
	}
	filled := new(big.Int).Add(maker.Filled.BigInt(), amount)
	total := maker.Amount.BigInt()
	if filled.Cmp(total) > 0 {
		return nil, ErrFillExceedsAmount
	}
	maker.Filled = decimal.NewFromBigInt(filled, 0)
	if filled.Cmp(total) == 0 {
		maker.Status = models.MakerStatusFilled
	}
	maker.UpdatedAt = time.Now()
	st.makers[id] = maker
	return &maker, nil
}

func (r *memoryMakers) Cancel(ctx context.Context, id uint) (bool, error) {
	defer r.store().lock()()
	st := r.store().st()
	maker, ok := st.makers[id]
	if !ok {
		return false, ErrNotFound
	}
	if maker.Status != models.MakerStatusOpen {
		return false, nil
	}
	maker.Status = models.MakerStatusCancelled
	maker.UpdatedAt = time.Now()
	st.makers[id] = maker
	return true, nil
}

func (r *memoryMakers) DeleteExpired(ctx context.Context, now int64, limit int) ([]*models.Maker, error) {
	defer r.store().lock()()
	st := r.store().st()
	filled := make(map[uint]struct{})
	for _, t := range st.takers {
		filled[t.MakerID] = struct{}{}
	}
	expired := r.filter(st, func(m *models.Maker) bool {
		_, hasTakers := filled[m.ID]
		return m.Expiry < now && !hasTakers
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, m := range expired {
		delete(st.makers, m.ID)
		delete(st.makerHashes, m.OrderHash)
	}
	return expired, nil
}

type memoryBots MemoryStore

func (r *memoryBots) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryBots) Create(ctx context.Context, bot *models.Bot) error {
	defer r.store().lock()()
	st := r.store().st()
	bot.ID = st.id()
	bot.CreatedAt = time.Now()
	st.bots[bot.ID] = *bot
	return nil
}

func (r *memoryBots) GetByID(ctx context.Context, id uint) (*models.Bot, error) {
	defer r.store().lock()()
	bot, ok := r.store().st().bots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &bot, nil
}

func (r *memoryBots) FindByIDs(ctx context.Context, ids []uint) ([]*models.Bot, error) {
	defer r.store().lock()()
	st := r.store().st()
	out := make([]*models.Bot, 0, len(ids))
	for _, id := range ids {
		if bot, ok := st.bots[id]; ok {
			out = append(out, &bot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryBots) FindByOwner(ctx context.Context, owner string) ([]*models.Bot, error) {
	defer r.store().lock()()
	out := make([]*models.Bot, 0)
	for _, bot := range r.store().st().bots {
		bot := bot
		if bot.Owner == owner {
			out = append(out, &bot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryBots) AddFeesEarned(ctx context.Context, id uint, delta *big.Int) error {
	defer r.store().lock()()
	st := r.store().st()
	bot, ok := st.bots[id]
	if !ok {
		return ErrNotFound
	}
	bot.FeesEarned = bot.FeesEarned.Add(decimal.NewFromBigInt(delta, 0))
	st.bots[id] = bot
	return nil
}

type memoryTakers MemoryStore

func (r *memoryTakers) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryTakers) CreateBatch(ctx context.Context, takers []*models.Taker) error {
	defer r.store().lock()()
	st := r.store().st()
	for _, t := range takers {
		if _, ok := st.makers[t.MakerID]; !ok {
			return ErrNotFound
		}
	}
	for _, t := range takers {
		t.ID = st.id()
		t.CreatedAt = time.Now()
		st.takers[t.ID] = *t
	}
	return nil
}

func (r *memoryTakers) FindByMaker(ctx context.Context, makerID uint) ([]*models.Taker, error) {
	defer r.store().lock()()
	out := make([]*models.Taker, 0)
	for _, t := range r.store().st().takers {
		t := t
		if t.MakerID == makerID {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block < out[j].Block
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memoryStaking MemoryStore

func (r *memoryStaking) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryStaking) AddStake(ctx context.Context, user string, slot, chainID uint64, delta *big.Int) (*models.StakingEntry, error) {
	defer r.store().lock()()
	st := r.store().st()
	key := stakeKey{user: user, slot: slot, chainID: chainID}
	entry, ok := st.stakes[key]
	if !ok {
		entry = models.StakingEntry{ID: st.id(), User: user, Slot: slot, ChainID: chainID, Amount: decimal.Zero}
	}
	entry.Amount = entry.Amount.Add(decimal.NewFromBigInt(delta, 0))
	st.stakes[key] = entry
	return &entry, nil
}

func (r *memoryStaking) AddFees(ctx context.Context, token string, slot, chainID uint64, delta *big.Int) (*models.StakingFeesEntry, error) {
	defer r.store().lock()()
	st := r.store().st()
	key := feesKey{token: token, slot: slot, chainID: chainID}
	entry, ok := st.fees[key]
	if !ok {
		entry = models.StakingFeesEntry{ID: st.id(), Token: token, Slot: slot, ChainID: chainID, Amount: decimal.Zero}
	}
	entry.Amount = entry.Amount.Add(decimal.NewFromBigInt(delta, 0))
	st.fees[key] = entry
	return &entry, nil
}

func (r *memoryStaking) MarkWithdrawal(ctx context.Context, user, token string, slot, chainID uint64) (*models.StakingFeesWithdrawal, bool, error) {
	defer r.store().lock()()
	st := r.store().st()
	key := withdrawalKey{user: user, token: token, slot: slot, chainID: chainID}
	if marker, ok := st.withdrawals[key]; ok {
		return &marker, false, nil
	}
	marker := models.StakingFeesWithdrawal{ID: st.id(), User: user, Token: token, Slot: slot, ChainID: chainID, CreatedAt: time.Now()}
	st.withdrawals[key] = marker
	return &marker, true, nil
}

func (r *memoryStaking) FindStakes(ctx context.Context, user string, chainID uint64) ([]*models.StakingEntry, error) {
	defer r.store().lock()()
	out := make([]*models.StakingEntry, 0)
	for _, e := range r.store().st().stakes {
		e := e
		if e.User == user && e.ChainID == chainID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot > out[j].Slot })
	return out, nil
}

func (r *memoryStaking) FindFees(ctx context.Context, chainID uint64) ([]*models.StakingFeesEntry, error) {
	defer r.store().lock()()
	out := make([]*models.StakingFeesEntry, 0)
	for _, e := range r.store().st().fees {
		e := e
		if e.ChainID == chainID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot > out[j].Slot
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

func (r *memoryStaking) FindWithdrawals(ctx context.Context, user string, chainID uint64) ([]*models.StakingFeesWithdrawal, error) {
	defer r.store().lock()()
	out := make([]*models.StakingFeesWithdrawal, 0)
	for _, m := range r.store().st().withdrawals {
		m := m
		if m.User == user && m.ChainID == chainID {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot > out[j].Slot
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

func (r *memoryStaking) GlobalStakes(ctx context.Context, chainID uint64) ([]models.SlotStake, error) {
	defer r.store().lock()()
	sums := make(map[uint64]decimal.Decimal)
	for _, e := range r.store().st().stakes {
		if e.ChainID != chainID {
			continue
		}
		sums[e.Slot] = sums[e.Slot].Add(e.Amount)
	}
	out := make([]models.SlotStake, 0, len(sums))
	for slot, amount := range sums {
		out = append(out, models.SlotStake{Slot: slot, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot > out[j].Slot })
	return out, nil
}
