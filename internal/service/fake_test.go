package service_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/recipe-exchange/internal/domain/models"
	"github.com/linemk/recipe-exchange/internal/storage"
)

// fakeDB - in-memory хранилище, реализует все интерфейсы storage.
// Begin/Commit/Rollback проверяет sqlmock, а txConnector сообщает о них fakeDB:
// на Begin снимается копия состояния, на Rollback она восстанавливается.
type fakeDB struct {
	accounts map[int64]*models.Account
	recipes  map[int64]*models.Recipe
	owners   map[int64]*models.OwnershipRecord
	trades   map[uuid.UUID]*models.TradeOffer
	txs      []*models.Transaction

	nextTxID     int64
	nextRecipeID int64
	clock        time.Time

	// fail - очереди ошибок по имени метода, каждая ошибка отдаётся один раз
	fail map[string][]error
	// locks - порядок взятых блокировок
	locks      []string
	lastFilter storage.TradeFilter

	snapshot *fakeState
	begins   int
}

// fakeState - то, что откатывается вместе с транзакцией.
type fakeState struct {
	accounts     map[int64]models.Account
	recipes      map[int64]models.Recipe
	owners       map[int64]models.OwnershipRecord
	trades       map[uuid.UUID]models.TradeOffer
	txs          []models.Transaction
	nextTxID     int64
	nextRecipeID int64
}

var (
	_ storage.AccountReader      = (*fakeDB)(nil)
	_ storage.AccountStorage     = (*fakeDB)(nil)
	_ storage.TransactionReader  = (*fakeDB)(nil)
	_ storage.TransactionStorage = (*fakeDB)(nil)
	_ storage.RecipeStorage      = (*fakeDB)(nil)
	_ storage.OwnershipStorage   = (*fakeDB)(nil)
	_ storage.TradeStorage       = (*fakeDB)(nil)
)

func newFakeDB() *fakeDB {
	return &fakeDB{
		accounts:     make(map[int64]*models.Account),
		recipes:      make(map[int64]*models.Recipe),
		owners:       make(map[int64]*models.OwnershipRecord),
		trades:       make(map[uuid.UUID]*models.TradeOffer),
		fail:         make(map[string][]error),
		nextRecipeID: 100,
		clock:        time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeDB) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeDB) injected(method string) error {
	q := f.fail[method]
	if len(q) == 0 {
		return nil
	}
	f.fail[method] = q[1:]
	return q[0]
}

func (f *fakeDB) failNext(method string, errs ...error) {
	f.fail[method] = append(f.fail[method], errs...)
}

func (f *fakeDB) begin() {
	f.begins++
	st := &fakeState{
		accounts:     make(map[int64]models.Account, len(f.accounts)),
		recipes:      make(map[int64]models.Recipe, len(f.recipes)),
		owners:       make(map[int64]models.OwnershipRecord, len(f.owners)),
		trades:       make(map[uuid.UUID]models.TradeOffer, len(f.trades)),
		txs:          make([]models.Transaction, 0, len(f.txs)),
		nextTxID:     f.nextTxID,
		nextRecipeID: f.nextRecipeID,
	}
	for id, a := range f.accounts {
		st.accounts[id] = *a
	}
	for id, r := range f.recipes {
		st.recipes[id] = *r
	}
	for id, o := range f.owners {
		st.owners[id] = *o
	}
	for id, t := range f.trades {
		st.trades[id] = *t
	}
	for _, t := range f.txs {
		st.txs = append(st.txs, *t)
	}
	f.snapshot = st
}

func (f *fakeDB) commit() {
	f.snapshot = nil
}

func (f *fakeDB) rollback() {
	st := f.snapshot
	if st == nil {
		return
	}
	f.snapshot = nil

	f.accounts = make(map[int64]*models.Account, len(st.accounts))
	for id, a := range st.accounts {
		f.accounts[id] = &a
	}
	f.recipes = make(map[int64]*models.Recipe, len(st.recipes))
	for id, r := range st.recipes {
		f.recipes[id] = &r
	}
	f.owners = make(map[int64]*models.OwnershipRecord, len(st.owners))
	for id, o := range st.owners {
		f.owners[id] = &o
	}
	f.trades = make(map[uuid.UUID]*models.TradeOffer, len(st.trades))
	for id, t := range st.trades {
		f.trades[id] = &t
	}
	f.txs = make([]*models.Transaction, 0, len(st.txs))
	for i := range st.txs {
		f.txs = append(f.txs, &st.txs[i])
	}
	f.nextTxID = st.nextTxID
	f.nextRecipeID = st.nextRecipeID
}

// txConnector открывает соединения sqlmock и сообщает fakeDB о границах транзакций.
type txConnector struct {
	dsn   string
	inner driver.Driver
	db    *fakeDB
}

func (c *txConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.inner.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &txConn{Conn: conn, db: c.db}, nil
}

func (c *txConnector) Driver() driver.Driver { return c.inner }

type txConn struct {
	driver.Conn
	db *fakeDB
}

func (c *txConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	beginner, ok := c.Conn.(driver.ConnBeginTx)
	if !ok {
		return nil, fmt.Errorf("driver %T does not support BeginTx", c.Conn)
	}
	tx, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.db.begin()
	return &txHook{Tx: tx, db: c.db}, nil
}

type txHook struct {
	driver.Tx
	db *fakeDB
}

func (t *txHook) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		t.db.rollback()
		return err
	}
	t.db.commit()
	return nil
}

func (t *txHook) Rollback() error {
	t.db.rollback()
	return t.Tx.Rollback()
}

// сиды

func (f *fakeDB) addAccount(id, balance int64) {
	f.accounts[id] = &models.Account{ID: id, Balance: balance}
	if balance > 0 {
		f.nextTxID++
		f.txs = append(f.txs, &models.Transaction{ID: f.nextTxID, AccountID: id, Amount: balance, Kind: models.TransactionTopUp, CreatedAt: f.now()})
	}
}

func (f *fakeDB) addRecipe(id, authorID, price int64) {
	f.recipes[id] = &models.Recipe{ID: id, Title: fmt.Sprintf("recipe %d", id), AuthorID: authorID, Price: price}
}

func (f *fakeDB) setOwner(recipeID, accountID int64, kind models.AcquisitionKind) {
	f.owners[recipeID] = &models.OwnershipRecord{RecipeID: recipeID, AccountID: accountID, Kind: kind, AcquiredAt: f.now()}
}

func (f *fakeDB) ownerID(recipeID int64) int64 {
	if o, ok := f.owners[recipeID]; ok {
		return o.AccountID
	}
	return 0
}

func (f *fakeDB) ledgerSum(accountID int64) int64 {
	var sum int64
	for _, t := range f.txs {
		if t.AccountID == accountID {
			sum += t.Amount
		}
	}
	return sum
}

// AccountStorage

func (f *fakeDB) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	if err := f.injected("GetAccountByID"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeDB) LockAccountByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Account, error) {
	if err := f.injected("LockAccountByIDTx"); err != nil {
		return nil, err
	}
	f.locks = append(f.locks, fmt.Sprintf("account:%d", id))
	a, ok := f.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeDB) AddToBalance(ctx context.Context, tx *sql.Tx, id int64, delta int64) (int64, error) {
	if err := f.injected("AddToBalance"); err != nil {
		return 0, err
	}
	a, ok := f.accounts[id]
	if !ok {
		return 0, storage.ErrAccountNotFound
	}
	a.Balance += delta
	return a.Balance, nil
}

// TransactionStorage

func (f *fakeDB) CreateTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) (*models.Transaction, error) {
	if err := f.injected("CreateTransaction"); err != nil {
		return nil, err
	}
	f.nextTxID++
	t.ID = f.nextTxID
	t.CreatedAt = f.now()
	cp := *t
	f.txs = append(f.txs, &cp)
	return t, nil
}

func (f *fakeDB) GetTransactionsByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error) {
	if err := f.injected("GetTransactionsByAccountID"); err != nil {
		return nil, err
	}
	var out []*models.Transaction
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].AccountID == accountID {
			cp := *f.txs[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) SumByAccountID(ctx context.Context, accountID int64) (int64, error) {
	if err := f.injected("SumByAccountID"); err != nil {
		return 0, err
	}
	return f.ledgerSum(accountID), nil
}

// RecipeStorage

func (f *fakeDB) GetRecipeByID(ctx context.Context, id int64) (*models.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, storage.ErrRecipeNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeDB) LockRecipeByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Recipe, error) {
	if err := f.injected("LockRecipeByIDTx"); err != nil {
		return nil, err
	}
	f.locks = append(f.locks, fmt.Sprintf("recipe:%d", id))
	return f.GetRecipeByID(ctx, id)
}

func (f *fakeDB) CreateRecipe(ctx context.Context, tx *sql.Tx, recipe *models.Recipe) (*models.Recipe, error) {
	f.nextRecipeID++
	recipe.ID = f.nextRecipeID
	cp := *recipe
	f.recipes[recipe.ID] = &cp
	return recipe, nil
}

// OwnershipStorage

func (f *fakeDB) OwnerOf(ctx context.Context, recipeID int64) (*models.OwnershipRecord, error) {
	o, ok := f.owners[recipeID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeDB) LockOwnerOfTx(ctx context.Context, tx *sql.Tx, recipeID int64) (*models.OwnershipRecord, error) {
	if err := f.injected("LockOwnerOfTx"); err != nil {
		return nil, err
	}
	f.locks = append(f.locks, fmt.Sprintf("owner:%d", recipeID))
	return f.OwnerOf(ctx, recipeID)
}

func (f *fakeDB) Grant(ctx context.Context, tx *sql.Tx, recipeID, toAccountID int64, kind models.AcquisitionKind) (*models.OwnershipRecord, error) {
	if err := f.injected("Grant"); err != nil {
		return nil, err
	}
	if o, ok := f.owners[recipeID]; ok && (o.Kind != models.AcquiredAsAuthor || o.AccountID == toAccountID) {
		return nil, storage.ErrAlreadyOwned
	}
	f.setOwner(recipeID, toAccountID, kind)
	return f.OwnerOf(ctx, recipeID)
}

func (f *fakeDB) Transfer(ctx context.Context, tx *sql.Tx, recipeID, fromAccountID, toAccountID int64, kind models.AcquisitionKind) (*models.OwnershipRecord, error) {
	if err := f.injected("Transfer"); err != nil {
		return nil, err
	}
	o, ok := f.owners[recipeID]
	if !ok || o.AccountID != fromAccountID {
		return nil, storage.ErrNotOwner
	}
	f.setOwner(recipeID, toAccountID, kind)
	return f.OwnerOf(ctx, recipeID)
}

func (f *fakeDB) GetOwnershipsByAccountID(ctx context.Context, accountID int64) ([]*models.OwnershipRecord, error) {
	var out []*models.OwnershipRecord
	for _, o := range f.owners {
		if o.AccountID == accountID {
			cp := *o
			if r, ok := f.recipes[o.RecipeID]; ok {
				cp.RecipeTitle = r.Title
			}
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.OwnershipRecord) int { return int(a.RecipeID - b.RecipeID) })
	return out, nil
}

// TradeStorage

func (f *fakeDB) CreateTrade(ctx context.Context, tx *sql.Tx, trade *models.TradeOffer) (*models.TradeOffer, error) {
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	trade.CreatedAt = f.now()
	trade.UpdatedAt = trade.CreatedAt
	cp := *trade
	f.trades[trade.ID] = &cp
	return trade, nil
}

func (f *fakeDB) GetTradeByID(ctx context.Context, id uuid.UUID) (*models.TradeOffer, error) {
	t, ok := f.trades[id]
	if !ok {
		return nil, storage.ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeDB) LockTradeByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.TradeOffer, error) {
	if err := f.injected("LockTradeByIDTx"); err != nil {
		return nil, err
	}
	f.locks = append(f.locks, "trade:"+id.String())
	return f.GetTradeByID(ctx, id)
}

func (f *fakeDB) UpdateTradeStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.TradeStatus) (time.Time, error) {
	t, ok := f.trades[id]
	if !ok {
		return time.Time{}, storage.ErrTradeNotFound
	}
	t.Status = status
	t.UpdatedAt = f.now()
	return t.UpdatedAt, nil
}

func (f *fakeDB) ListTrades(ctx context.Context, filter storage.TradeFilter) ([]*models.TradeOffer, error) {
	f.lastFilter = filter
	var out []*models.TradeOffer
	for _, t := range f.trades {
		account := t.RequestedAccountID
		if filter.Direction == storage.TradesOutgoing {
			account = t.OfferingAccountID
		}
		if account != filter.AccountID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.TradeOffer) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// fakePublisher запоминает опубликованные события.
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return p.err
}
