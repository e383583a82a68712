package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Column types differ between the engines; everything else in the schema is
// shared.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS market (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	current_price {{money}} NOT NULL,
	availability  INTEGER NOT NULL CHECK (availability >= 0)
);

CREATE TABLE IF NOT EXISTS accounts (
	seq         {{serial}},
	id          BIGINT NOT NULL UNIQUE,
	username    TEXT NOT NULL UNIQUE,
	balance     {{money}} NOT NULL,
	invite_code TEXT NOT NULL UNIQUE,
	created_at  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
	account_id BIGINT NOT NULL REFERENCES accounts (id),
	product_id INTEGER NOT NULL REFERENCES market (id),
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	PRIMARY KEY (account_id, product_id)
);

CREATE TABLE IF NOT EXISTS transactions (
	id         {{serial}},
	account_id BIGINT NOT NULL REFERENCES accounts (id),
	kind       TEXT NOT NULL CHECK (kind IN ('buy', 'sell')),
	product_id INTEGER NOT NULL REFERENCES market (id),
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	unit_price {{money}} NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_id, id);

CREATE TABLE IF NOT EXISTS companies (
	id            {{serial}},
	name          TEXT NOT NULL,
	owner_id      BIGINT NOT NULL UNIQUE REFERENCES accounts (id),
	value         {{money}} NOT NULL,
	profit_margin {{ratio}} NOT NULL,
	team_size     INTEGER NOT NULL,
	created_at    BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS company_members (
	company_id BIGINT NOT NULL REFERENCES companies (id),
	account_id BIGINT NOT NULL REFERENCES accounts (id),
	role       TEXT NOT NULL,
	status     TEXT NOT NULL CHECK (status IN ('pending', 'accepted')),
	invited_at BIGINT NOT NULL,
	PRIMARY KEY (company_id, account_id)
);
`

func (d dialect) schema() []string {
	ddl := strings.NewReplacer(
		"{{serial}}", d.serialType,
		"{{money}}", d.moneyType,
		"{{ratio}}", d.ratioType,
	).Replace(schemaTemplate)

	var stmts []string
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// migrate creates missing tables in one transaction.
func migrate(ctx context.Context, sqlDB *sql.DB, d dialect) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range d.schema() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}
