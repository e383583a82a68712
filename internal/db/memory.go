package db

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/atharvakonge/market-game/internal/models"
)

type membershipKey struct {
	company models.CompanyID
	account models.AccountID
}

type snapshot struct {
	accounts    map[models.AccountID]*models.Account
	order       []models.AccountID
	products    map[models.ProductID]*models.Product
	txs         []models.Transaction
	companies   map[models.CompanyID]*models.Company
	memberships map[membershipKey]models.Membership
	nextTx      int64
	nextCompany int64
}

func newSnapshot() *snapshot {
	return &snapshot{
		accounts:    map[models.AccountID]*models.Account{},
		products:    map[models.ProductID]*models.Product{},
		companies:   map[models.CompanyID]*models.Company{},
		memberships: map[membershipKey]models.Membership{},
	}
}

// clone copies every row so a failed Update can be discarded. The
// transaction log is append-only, so the copy shares its backing array up to
// the current length.
func (s *snapshot) clone() *snapshot {
	c := &snapshot{
		accounts:    make(map[models.AccountID]*models.Account, len(s.accounts)),
		order:       slices.Clone(s.order),
		products:    make(map[models.ProductID]*models.Product, len(s.products)),
		txs:         s.txs[:len(s.txs):len(s.txs)],
		companies:   make(map[models.CompanyID]*models.Company, len(s.companies)),
		memberships: make(map[membershipKey]models.Membership, len(s.memberships)),
		nextTx:      s.nextTx,
		nextCompany: s.nextCompany,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v.Clone()
	}
	for k, v := range s.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range s.companies {
		co := *v
		c.companies[k] = &co
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	return c
}

// MemoryStore keeps the whole game in process memory. Updates are serialized
// and applied copy-on-write, so a failing update leaves no trace.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *snapshot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: newSnapshot()}
}

func (m *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.snap.clone()
	if err := fn(&memTx{s: work, writable: true}); err != nil {
		return err
	}
	m.snap = work
	return nil
}

func (m *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{s: m.snap})
}

func (m *MemoryStore) AccountIDs(ctx context.Context) ([]models.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(m.snap.order), nil
}

func (m *MemoryStore) Close() error { return nil }

type memTx struct {
	s        *snapshot
	writable bool
}

func (t *memTx) write() error {
	if !t.writable {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) Account(_ context.Context, id models.AccountID) (*models.Account, error) {
	a, ok := t.s.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (t *memTx) AccountByUsername(_ context.Context, username string) (*models.Account, error) {
	for _, id := range t.s.order {
		if a := t.s.accounts[id]; a.Username == username {
			return a.Clone(), nil
		}
	}
	return nil, models.ErrAccountNotFound
}

func (t *memTx) AccountByInviteCode(_ context.Context, code string) (*models.Account, error) {
	for _, id := range t.s.order {
		if a := t.s.accounts[id]; a.InviteCode == code {
			return a.Clone(), nil
		}
	}
	return nil, models.ErrAccountNotFound
}

func (t *memTx) Accounts(context.Context) ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(t.s.order))
	for _, id := range t.s.order {
		out = append(out, t.s.accounts[id].Clone())
	}
	return out, nil
}

func (t *memTx) InsertAccount(_ context.Context, a *models.Account) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.s.accounts[a.ID]; exists {
		return fmt.Errorf("account %d exists", a.ID)
	}
	for _, other := range t.s.accounts {
		if other.Username == a.Username {
			return models.ErrUsernameTaken
		}
		if a.InviteCode != "" && other.InviteCode == a.InviteCode {
			return fmt.Errorf("invite code %q exists", a.InviteCode)
		}
	}
	t.s.accounts[a.ID] = a.Clone()
	t.s.order = append(t.s.order, a.ID)
	return nil
}

func (t *memTx) UpdateAccount(_ context.Context, a *models.Account) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.accounts[a.ID]; !ok {
		return models.ErrAccountNotFound
	}
	for id, other := range t.s.accounts {
		if id != a.ID && other.Username == a.Username {
			return models.ErrUsernameTaken
		}
	}
	t.s.accounts[a.ID] = a.Clone()
	return nil
}

func (t *memTx) Product(_ context.Context, id models.ProductID) (*models.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (t *memTx) Products(context.Context) ([]*models.Product, error) {
	out := make([]*models.Product, 0, len(t.s.products))
	for _, p := range t.s.products {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) EnsureProduct(_ context.Context, p *models.Product) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	if _, exists := t.s.products[p.ID]; exists {
		return false, nil
	}
	c := *p
	t.s.products[p.ID] = &c
	return true, nil
}

func (t *memTx) UpdateProduct(_ context.Context, p *models.Product) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.products[p.ID]; !ok {
		return models.ErrProductNotFound
	}
	c := *p
	t.s.products[p.ID] = &c
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, rec *models.Transaction) error {
	if err := t.write(); err != nil {
		return err
	}
	t.s.nextTx++
	rec.ID = t.s.nextTx
	t.s.txs = append(t.s.txs, *rec)
	return nil
}

func (t *memTx) Transactions(_ context.Context, account models.AccountID, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := len(t.s.txs) - 1; i >= 0; i-- {
		if t.s.txs[i].AccountID != account {
			continue
		}
		out = append(out, t.s.txs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) Company(_ context.Context, id models.CompanyID) (*models.Company, error) {
	c, ok := t.s.companies[id]
	if !ok {
		return nil, models.ErrCompanyNotFound
	}
	co := *c
	return &co, nil
}

func (t *memTx) CompanyByOwner(_ context.Context, owner models.AccountID) (*models.Company, error) {
	for _, c := range t.s.companies {
		if c.OwnerID == owner {
			co := *c
			return &co, nil
		}
	}
	return nil, models.ErrNoCompanyOwned
}

func (t *memTx) InsertCompany(_ context.Context, c *models.Company) error {
	if err := t.write(); err != nil {
		return err
	}
	for _, other := range t.s.companies {
		if other.OwnerID == c.OwnerID {
			return models.ErrCompanyAlreadyOwned
		}
	}
	t.s.nextCompany++
	c.ID = models.CompanyID(t.s.nextCompany)
	co := *c
	t.s.companies[c.ID] = &co
	return nil
}

func sortMemberships(ms []models.Membership) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].InvitedAt.Equal(ms[j].InvitedAt) {
			return ms[i].InvitedAt.Before(ms[j].InvitedAt)
		}
		if ms[i].CompanyID != ms[j].CompanyID {
			return ms[i].CompanyID < ms[j].CompanyID
		}
		return ms[i].AccountID < ms[j].AccountID
	})
}

func (t *memTx) Memberships(_ context.Context, company models.CompanyID) ([]models.Membership, error) {
	var out []models.Membership
	for k, m := range t.s.memberships {
		if k.company == company {
			out = append(out, m)
		}
	}
	sortMemberships(out)
	return out, nil
}

func (t *memTx) PendingMemberships(_ context.Context, account models.AccountID) ([]models.Membership, error) {
	var out []models.Membership
	for k, m := range t.s.memberships {
		if k.account == account && m.Status == models.StatusPending {
			out = append(out, m)
		}
	}
	sortMemberships(out)
	return out, nil
}

func (t *memTx) PutMembership(_ context.Context, m *models.Membership) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.s.companies[m.CompanyID]; !ok {
		return models.ErrCompanyNotFound
	}
	if _, ok := t.s.accounts[m.AccountID]; !ok {
		return models.ErrAccountNotFound
	}
	t.s.memberships[membershipKey{m.CompanyID, m.AccountID}] = *m
	return nil
}

func (t *memTx) DeleteMembership(_ context.Context, company models.CompanyID, account models.AccountID) error {
	if err := t.write(); err != nil {
		return err
	}
	k := membershipKey{company, account}
	if _, ok := t.s.memberships[k]; !ok {
		return models.ErrNoPendingInvitation
	}
	delete(t.s.memberships, k)
	return nil
}
