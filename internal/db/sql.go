package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atharvakonge/market-game/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type dialect struct {
	name       string
	numbered   bool   // $1, $2 placeholders instead of ?
	lockClause string // appended to row reads inside an Update
	viewOpts   *sql.TxOptions
	serialType string
	moneyType  string
	ratioType  string
	unique     func(err error, column string) bool
}

var postgresDialect = dialect{
	name:       "postgres",
	numbered:   true,
	lockClause: " FOR UPDATE",
	viewOpts:   &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	serialType: "BIGSERIAL PRIMARY KEY",
	moneyType:  "NUMERIC(20, 2)",
	ratioType:  "NUMERIC(10, 4)",
	unique: func(err error, column string) bool {
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
			return false
		}
		return strings.Contains(pqErr.Constraint, column)
	},
}

// SQLite serializes all access through a single connection, so reads need no
// lock clause and the default transaction already sees a stable snapshot.
var sqliteDialect = dialect{
	name:       "sqlite",
	serialType: "INTEGER PRIMARY KEY AUTOINCREMENT",
	moneyType:  "TEXT",
	ratioType:  "TEXT",
	unique: func(err error, column string) bool {
		msg := err.Error()
		return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "."+column)
	},
}

// rebind rewrites ? placeholders for engines that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loggingQueryer logs every statement with its duration.
type loggingQueryer struct {
	inner  queryer
	logger *log.Logger
}

func (q loggingQueryer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := q.inner.ExecContext(ctx, query, args...)
	q.logger.Printf("sql exec dur=%s err=%v sql=%q args=%v", time.Since(start), err, query, args)
	return res, err
}

func (q loggingQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := q.inner.QueryContext(ctx, query, args...)
	q.logger.Printf("sql query dur=%s err=%v sql=%q args=%v", time.Since(start), err, query, args)
	return rows, err
}

func (q loggingQueryer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := q.inner.QueryRowContext(ctx, query, args...)
	q.logger.Printf("sql query row dur=%s sql=%q args=%v", time.Since(start), query, args)
	return row
}

// SQLStore persists the game in a SQL database (PostgreSQL or SQLite).
type SQLStore struct {
	sqlDB  *sql.DB
	d      dialect
	logger *log.Logger
}

func newSQLStore(ctx context.Context, sqlDB *sql.DB, d dialect) (*SQLStore, error) {
	if err := migrate(ctx, sqlDB, d); err != nil {
		return nil, err
	}
	return &SQLStore{sqlDB: sqlDB, d: d}, nil
}

// SetLogger enables statement logging when l is not nil.
func (s *SQLStore) SetLogger(l *log.Logger) { s.logger = l }

// DB exposes the underlying handle for tests and maintenance tasks.
func (s *SQLStore) DB() *sql.DB { return s.sqlDB }

// Close closes database connection
func (s *SQLStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	err := s.sqlDB.Close()
	log.Println("Database connection closed")
	return err
}

func (s *SQLStore) wrap(q queryer) queryer {
	if s.logger == nil {
		return q
	}
	return loggingQueryer{inner: q, logger: s.logger}
}

func (s *SQLStore) run(ctx context.Context, opts *sql.TxOptions, writable bool, fn func(Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if we don't commit

	if err := fn(&sqlTx{q: s.wrap(tx), d: s.d, writable: writable}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, nil, true, fn)
}

func (s *SQLStore) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, s.d.viewOpts, false, fn)
}

func (s *SQLStore) AccountIDs(ctx context.Context) ([]models.AccountID, error) {
	rows, err := s.wrap(s.sqlDB).QueryContext(ctx, "SELECT id FROM accounts ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	var ids []models.AccountID
	for rows.Next() {
		var id models.AccountID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type sqlTx struct {
	q        queryer
	d        dialect
	writable bool
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if !t.writable {
		return nil, ErrReadOnly
	}
	return t.q.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.q.QueryContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.q.QueryRowContext(ctx, t.d.rebind(query), args...)
}

// lock returns the row-lock clause for reads that precede a write.
func (t *sqlTx) lock() string {
	if !t.writable {
		return ""
	}
	return t.d.lockClause
}

// money renders an amount for storage; both engines accept the decimal text.
func money(d decimal.Decimal) string { return models.FormatMoney(d) }

func millis(ts time.Time) int64 { return ts.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

const accountColumns = "id, username, balance, invite_code, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var created int64
	if err := row.Scan(&a.ID, &a.Username, &a.Balance, &a.InviteCode, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(created)
	a.Portfolio = models.Portfolio{}
	return &a, nil
}

func (t *sqlTx) loadHoldings(ctx context.Context, a *models.Account) error {
	rows, err := t.query(ctx, "SELECT product_id, quantity FROM holdings WHERE account_id = ?"+t.lock(), int64(a.ID))
	if err != nil {
		return fmt.Errorf("load holdings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var product models.ProductID
		var qty int
		if err := rows.Scan(&product, &qty); err != nil {
			return fmt.Errorf("scan holding: %w", err)
		}
		a.Portfolio[product] = qty
	}
	return rows.Err()
}

func (t *sqlTx) accountWhere(ctx context.Context, where string, arg any) (*models.Account, error) {
	a, err := scanAccount(t.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+where+t.lock(), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if err := t.loadHoldings(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (t *sqlTx) Account(ctx context.Context, id models.AccountID) (*models.Account, error) {
	return t.accountWhere(ctx, "id = ?", int64(id))
}

func (t *sqlTx) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return t.accountWhere(ctx, "username = ?", username)
}

func (t *sqlTx) AccountByInviteCode(ctx context.Context, code string) (*models.Account, error) {
	return t.accountWhere(ctx, "invite_code = ?", code)
}

func (t *sqlTx) Accounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := t.query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	byID := map[models.AccountID]*models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	hrows, err := t.query(ctx, "SELECT account_id, product_id, quantity FROM holdings")
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var id models.AccountID
		var product models.ProductID
		var qty int
		if err := hrows.Scan(&id, &product, &qty); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		if a := byID[id]; a != nil {
			a.Portfolio[product] = qty
		}
	}
	return out, hrows.Err()
}

func (t *sqlTx) InsertAccount(ctx context.Context, a *models.Account) error {
	_, err := t.exec(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?)",
		int64(a.ID), a.Username, money(a.Balance), a.InviteCode, millis(a.CreatedAt),
	)
	if err != nil {
		if t.d.unique(err, "username") {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return t.writeHoldings(ctx, a)
}

func (t *sqlTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	res, err := t.exec(ctx,
		"UPDATE accounts SET username = ?, balance = ? WHERE id = ?",
		a.Username, money(a.Balance), int64(a.ID),
	)
	if err != nil {
		if t.d.unique(err, "username") {
			return models.ErrUsernameTaken
		}
		return fmt.Errorf("update account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrAccountNotFound
	}
	if _, err := t.exec(ctx, "DELETE FROM holdings WHERE account_id = ?", int64(a.ID)); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	return t.writeHoldings(ctx, a)
}

func (t *sqlTx) writeHoldings(ctx context.Context, a *models.Account) error {
	products := make([]models.ProductID, 0, len(a.Portfolio))
	for p := range a.Portfolio {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })

	for _, p := range products {
		if _, err := t.exec(ctx,
			"INSERT INTO holdings (account_id, product_id, quantity) VALUES (?, ?, ?)",
			int64(a.ID), int(p), a.Portfolio[p],
		); err != nil {
			return fmt.Errorf("write holding: %w", err)
		}
	}
	return nil
}

const productColumns = "id, name, current_price, availability"

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Availability); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqlTx) Product(ctx context.Context, id models.ProductID) (*models.Product, error) {
	p, err := scanProduct(t.queryRow(ctx, "SELECT "+productColumns+" FROM market WHERE id = ?"+t.lock(), int(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	return p, nil
}

func (t *sqlTx) Products(ctx context.Context) ([]*models.Product, error) {
	rows, err := t.query(ctx, "SELECT "+productColumns+" FROM market ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *sqlTx) EnsureProduct(ctx context.Context, p *models.Product) (bool, error) {
	res, err := t.exec(ctx,
		"INSERT INTO market ("+productColumns+") VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING",
		int(p.ID), p.Name, money(p.Price), p.Availability,
	)
	if err != nil {
		return false, fmt.Errorf("seed product %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seed product %d: %w", p.ID, err)
	}
	return n == 1, nil
}

func (t *sqlTx) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := t.exec(ctx,
		"UPDATE market SET current_price = ?, availability = ? WHERE id = ?",
		money(p.Price), p.Availability, int(p.ID),
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

func (t *sqlTx) AppendTransaction(ctx context.Context, rec *models.Transaction) error {
	if !t.writable {
		return ErrReadOnly
	}
	err := t.queryRow(ctx, `
        INSERT INTO transactions (account_id, kind, product_id, quantity, unit_price, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id
    `, int64(rec.AccountID), string(rec.Kind), int(rec.ProductID), rec.Quantity, money(rec.UnitPrice), millis(rec.CreatedAt)).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

func (t *sqlTx) Transactions(ctx context.Context, account models.AccountID, limit int) ([]models.Transaction, error) {
	query := `
        SELECT id, account_id, kind, product_id, quantity, unit_price, created_at
        FROM transactions
        WHERE account_id = ?
        ORDER BY id DESC`
	args := []any{int64(account)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var rec models.Transaction
		var kind string
		var created int64
		if err := rows.Scan(&rec.ID, &rec.AccountID, &kind, &rec.ProductID, &rec.Quantity, &rec.UnitPrice, &created); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Kind = models.TradeKind(kind)
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

const companyColumns = "id, name, owner_id, value, profit_margin, team_size, created_at"

func (t *sqlTx) companyWhere(ctx context.Context, where string, arg any, missing error) (*models.Company, error) {
	var c models.Company
	var created int64
	err := t.queryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE "+where+t.lock(), arg).
		Scan(&c.ID, &c.Name, &c.OwnerID, &c.Value, &c.ProfitMargin, &c.TeamSize, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missing
	}
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func (t *sqlTx) Company(ctx context.Context, id models.CompanyID) (*models.Company, error) {
	return t.companyWhere(ctx, "id = ?", int64(id), models.ErrCompanyNotFound)
}

func (t *sqlTx) CompanyByOwner(ctx context.Context, owner models.AccountID) (*models.Company, error) {
	return t.companyWhere(ctx, "owner_id = ?", int64(owner), models.ErrNoCompanyOwned)
}

func (t *sqlTx) InsertCompany(ctx context.Context, c *models.Company) error {
	if !t.writable {
		return ErrReadOnly
	}
	err := t.queryRow(ctx, `
        INSERT INTO companies (name, owner_id, value, profit_margin, team_size, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        RETURNING id
    `, c.Name, int64(c.OwnerID), money(c.Value), c.ProfitMargin.String(), c.TeamSize, millis(c.CreatedAt)).Scan(&c.ID)
	if err != nil {
		if t.d.unique(err, "owner_id") {
			return models.ErrCompanyAlreadyOwned
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (t *sqlTx) memberships(ctx context.Context, where string, args ...any) ([]models.Membership, error) {
	rows, err := t.query(ctx, `
        SELECT company_id, account_id, role, status, invited_at
        FROM company_members
        WHERE `+where+`
        ORDER BY invited_at, company_id, account_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		var m models.Membership
		var status string
		var invited int64
		if err := rows.Scan(&m.CompanyID, &m.AccountID, &m.Role, &status, &invited); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		if m.Status, err = models.ParseMembershipStatus(status); err != nil {
			return nil, err
		}
		m.InvitedAt = fromMillis(invited)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *sqlTx) Memberships(ctx context.Context, company models.CompanyID) ([]models.Membership, error) {
	return t.memberships(ctx, "company_id = ?", int64(company))
}

func (t *sqlTx) PendingMemberships(ctx context.Context, account models.AccountID) ([]models.Membership, error) {
	return t.memberships(ctx, "account_id = ? AND status = ?", int64(account), string(models.StatusPending))
}

func (t *sqlTx) PutMembership(ctx context.Context, m *models.Membership) error {
	_, err := t.exec(ctx, `
        INSERT INTO company_members (company_id, account_id, role, status, invited_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (company_id, account_id)
        DO UPDATE SET
            role = excluded.role,
            status = excluded.status,
            invited_at = excluded.invited_at
    `, int64(m.CompanyID), int64(m.AccountID), m.Role, string(m.Status), millis(m.InvitedAt))
	if err != nil {
		return fmt.Errorf("put membership: %w", err)
	}
	return nil
}

func (t *sqlTx) DeleteMembership(ctx context.Context, company models.CompanyID, account models.AccountID) error {
	res, err := t.exec(ctx, "DELETE FROM company_members WHERE company_id = ? AND account_id = ?", int64(company), int64(account))
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNoPendingInvitation
	}
	return nil
}
