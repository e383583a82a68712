package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
)

// SetupTestStore returns a memory store seeded with the catalog.
func SetupTestStore(t testing.TB) Store {
	t.Helper()
	store := NewMemoryStore()
	if _, err := Seed(context.Background(), store, Catalog); err != nil {
		t.Fatalf("Failed to seed test store: %v", err)
	}
	return store
}

// SetupTestSQLite returns an in-memory SQLite store seeded with the catalog.
func SetupTestSQLite(t testing.TB) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), MemoryDSN)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := Seed(context.Background(), store, Catalog); err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return store
}

// SetupTestPostgres connects to TEST_DATABASE_URL, clearing every table. The
// test is skipped when the variable is unset.
func SetupTestPostgres(t testing.TB) *SQLStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := openPostgresDSN(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	CleanupTestDB(t, store)
	if _, err := Seed(context.Background(), store, Catalog); err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return store
}

// CleanupTestDB deletes all rows, children first.
func CleanupTestDB(t testing.TB, store *SQLStore) {
	t.Helper()
	tables := []string{"company_members", "companies", "transactions", "holdings", "accounts", "market"}
	for _, table := range tables {
		if _, err := store.DB().Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("Warning: Failed to cleanup table %s: %v", table, err)
		}
	}
}

// CreateTestAccount inserts an account with the given balance and returns it.
func CreateTestAccount(t testing.TB, store Store, id models.AccountID, username string, balance float64) *models.Account {
	t.Helper()
	a := &models.Account{
		ID:         id,
		Username:   username,
		Balance:    decimal.NewFromFloat(balance),
		Portfolio:  models.Portfolio{},
		InviteCode: fmt.Sprintf("code%d", id),
		CreatedAt:  time.Now().UTC(),
	}
	err := store.Update(context.Background(), func(tx Tx) error {
		return tx.InsertAccount(context.Background(), a)
	})
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return a
}

// LoadTestAccount reads an account outside of any engine call.
func LoadTestAccount(t testing.TB, store Store, id models.AccountID) *models.Account {
	t.Helper()
	var a *models.Account
	err := store.View(context.Background(), func(tx Tx) error {
		var err error
		a, err = tx.Account(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load account %d: %v", id, err)
	}
	return a
}

// LoadTestProduct reads a product outside of any engine call.
func LoadTestProduct(t testing.TB, store Store, id models.ProductID) *models.Product {
	t.Helper()
	var p *models.Product
	err := store.View(context.Background(), func(tx Tx) error {
		var err error
		p, err = tx.Product(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load product %d: %v", id, err)
	}
	return p
}
