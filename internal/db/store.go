package db

import (
	"context"
	"errors"

	"github.com/atharvakonge/market-game/internal/models"
)

// ErrReadOnly is returned by writes attempted inside a View.
var ErrReadOnly = errors.New("write in read-only transaction")

// Store is the persistence port of the economy engine. It owns the connection
// lifecycle; callers only ever see transactions.
type Store interface {
	// Update runs fn as one atomic unit. Any error returned by fn rolls back
	// every write made through the Tx.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn against a consistent snapshot. Writes fail with ErrReadOnly.
	View(ctx context.Context, fn func(Tx) error) error
	// AccountIDs enumerates every known account in registration order.
	AccountIDs(ctx context.Context) ([]models.AccountID, error)
	Close() error
}

// Tx is the set of row operations available inside a transaction. Lookups of
// a single row fail with the matching models.Err*NotFound kind.
type Tx interface {
	Account(ctx context.Context, id models.AccountID) (*models.Account, error)
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	AccountByInviteCode(ctx context.Context, code string) (*models.Account, error)
	// Accounts lists every account in registration order.
	Accounts(ctx context.Context) ([]*models.Account, error)
	InsertAccount(ctx context.Context, a *models.Account) error
	// UpdateAccount persists username, balance and the full portfolio.
	UpdateAccount(ctx context.Context, a *models.Account) error

	Product(ctx context.Context, id models.ProductID) (*models.Product, error)
	Products(ctx context.Context) ([]*models.Product, error)
	// EnsureProduct inserts p unless a row with the same id exists.
	EnsureProduct(ctx context.Context, p *models.Product) (inserted bool, err error)
	UpdateProduct(ctx context.Context, p *models.Product) error

	// AppendTransaction stores t and assigns its ID.
	AppendTransaction(ctx context.Context, t *models.Transaction) error
	// Transactions lists an account's records newest first, at most limit rows.
	Transactions(ctx context.Context, account models.AccountID, limit int) ([]models.Transaction, error)

	Company(ctx context.Context, id models.CompanyID) (*models.Company, error)
	CompanyByOwner(ctx context.Context, owner models.AccountID) (*models.Company, error)
	// InsertCompany stores c and assigns its ID.
	InsertCompany(ctx context.Context, c *models.Company) error

	// Memberships lists a company's rows ordered by invitation time.
	Memberships(ctx context.Context, company models.CompanyID) ([]models.Membership, error)
	// PendingMemberships lists an account's pending rows, earliest invitation
	// first, ties broken by company id.
	PendingMemberships(ctx context.Context, account models.AccountID) ([]models.Membership, error)
	// PutMembership creates or overwrites the (company, account) row.
	PutMembership(ctx context.Context, m *models.Membership) error
	DeleteMembership(ctx context.Context, company models.CompanyID, account models.AccountID) error
}

// Seed loads the product catalog. Existing rows are left untouched so repeated
// startups never duplicate or reset the market.
func Seed(ctx context.Context, s Store, catalog []models.Product) (inserted int, err error) {
	err = s.Update(ctx, func(tx Tx) error {
		inserted = 0
		for i := range catalog {
			p := catalog[i]
			ok, err := tx.EnsureProduct(ctx, &p)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}
