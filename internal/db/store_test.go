package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory":   func(t *testing.T) Store { return SetupTestStore(t) },
		"sqlite":   func(t *testing.T) Store { return SetupTestSQLite(t) },
		"postgres": func(t *testing.T) Store { return SetupTestPostgres(t) },
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func TestSeed_Idempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		// Already seeded once by the setup helper.
		n, err := Seed(ctx, s, Catalog)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		var products []*models.Product
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			products, err = tx.Products(ctx)
			return err
		}))
		require.Len(t, products, len(Catalog))
		assert.Equal(t, "Gold", products[0].Name)
		assert.True(t, decimal.NewFromInt(70).Equal(products[4].Price))
		assert.Equal(t, 10000, products[4].Availability)
	})
}

func TestSeed_KeepsMutatedRows(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			p, err := tx.Product(ctx, 5)
			if err != nil {
				return err
			}
			p.SetPrice(decimal.NewFromInt(84))
			return tx.UpdateProduct(ctx, p)
		}))

		_, err := Seed(ctx, s, Catalog)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(84).Equal(LoadTestProduct(t, s, 5).Price))
	})
}

func TestAccount_RoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		CreateTestAccount(t, s, 42, "alice", 1000)

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			a, err := tx.Account(ctx, 42)
			if err != nil {
				return err
			}
			if err := a.Debit(decimal.NewFromInt(70)); err != nil {
				return err
			}
			if err := a.AdjustHolding(5, 2); err != nil {
				return err
			}
			return tx.UpdateAccount(ctx, a)
		}))

		a := LoadTestAccount(t, s, 42)
		assert.Equal(t, "930.00", models.FormatMoney(a.Balance))
		assert.Equal(t, models.Portfolio{5: 2}, a.Portfolio)
		assert.Equal(t, "code42", a.InviteCode)

		byName := loadBy(t, s, func(tx Tx) (*models.Account, error) { return tx.AccountByUsername(ctx, "alice") })
		assert.Equal(t, models.AccountID(42), byName.ID)
		byCode := loadBy(t, s, func(tx Tx) (*models.Account, error) { return tx.AccountByInviteCode(ctx, "code42") })
		assert.Equal(t, models.AccountID(42), byCode.ID)
	})
}

func loadBy(t *testing.T, s Store, fn func(Tx) (*models.Account, error)) *models.Account {
	t.Helper()
	var a *models.Account
	require.NoError(t, s.View(context.Background(), func(tx Tx) error {
		var err error
		a, err = fn(tx)
		return err
	}))
	return a
}

func TestAccount_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.View(context.Background(), func(tx Tx) error {
			_, err := tx.Account(context.Background(), 7)
			return err
		})
		assert.ErrorIs(t, err, models.ErrAccountNotFound)
	})
}

func TestAccount_UsernameUnique(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		CreateTestAccount(t, s, 1, "alice", 1000)
		CreateTestAccount(t, s, 2, "bob", 1000)

		err := s.Update(ctx, func(tx Tx) error {
			b, err := tx.Account(ctx, 2)
			if err != nil {
				return err
			}
			b.Username = "alice"
			return tx.UpdateAccount(ctx, b)
		})
		assert.ErrorIs(t, err, models.ErrUsernameTaken)
		assert.Equal(t, "bob", LoadTestAccount(t, s, 2).Username)
	})
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		CreateTestAccount(t, s, 1, "alice", 1000)
		boom := errors.New("boom")

		err := s.Update(ctx, func(tx Tx) error {
			a, err := tx.Account(ctx, 1)
			if err != nil {
				return err
			}
			_ = a.Credit(decimal.NewFromInt(500))
			if err := tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
			if err := tx.AppendTransaction(ctx, &models.Transaction{
				AccountID: 1, Kind: models.TradeBuy, ProductID: 1, Quantity: 1,
				UnitPrice: decimal.NewFromInt(1), CreatedAt: time.Now(),
			}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		assert.Equal(t, "1000.00", models.FormatMoney(LoadTestAccount(t, s, 1).Balance))
		var txs []models.Transaction
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			txs, err = tx.Transactions(ctx, 1, 0)
			return err
		}))
		assert.Empty(t, txs)
	})
}

func TestView_RejectsWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.View(ctx, func(tx Tx) error {
			p, err := tx.Product(ctx, 1)
			if err != nil {
				return err
			}
			return tx.UpdateProduct(ctx, p)
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestTransactions_NewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		CreateTestAccount(t, s, 1, "alice", 1000)
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			for i := 1; i <= 3; i++ {
				if err := tx.AppendTransaction(ctx, &models.Transaction{
					AccountID: 1, Kind: models.TradeBuy, ProductID: models.ProductID(i), Quantity: i,
					UnitPrice: decimal.NewFromInt(10), CreatedAt: time.Now(),
				}); err != nil {
					return err
				}
			}
			return nil
		}))

		var txs []models.Transaction
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			txs, err = tx.Transactions(ctx, 1, 2)
			return err
		}))
		require.Len(t, txs, 2)
		assert.Equal(t, models.ProductID(3), txs[0].ProductID)
		assert.Equal(t, models.ProductID(2), txs[1].ProductID)
		assert.Greater(t, txs[0].ID, txs[1].ID)
		assert.Equal(t, models.TradeBuy, txs[0].Kind)
	})
}

func TestCompany_OnePerOwner(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		CreateTestAccount(t, s, 1, "alice", 1000)

		var first models.Company
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			c := models.NewCompany("Acme", 1, time.Now())
			if err := tx.InsertCompany(ctx, c); err != nil {
				return err
			}
			first = *c
			return nil
		}))
		assert.NotZero(t, first.ID)

		err := s.Update(ctx, func(tx Tx) error {
			return tx.InsertCompany(ctx, models.NewCompany("Acme 2", 1, time.Now()))
		})
		assert.ErrorIs(t, err, models.ErrCompanyAlreadyOwned)

		var got *models.Company
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			got, err = tx.CompanyByOwner(ctx, 1)
			return err
		}))
		assert.Equal(t, "Acme", got.Name)
		assert.True(t, models.DefaultCompanyValue.Equal(got.Value))
		assert.Equal(t, 1, got.TeamSize)
	})
}

func TestMemberships_PendingOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		CreateTestAccount(t, s, 1, "alice", 1000)
		CreateTestAccount(t, s, 2, "bob", 1000)
		CreateTestAccount(t, s, 3, "carol", 1000)

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var acme, bolt models.CompanyID
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			a := models.NewCompany("Acme", 1, base)
			if err := tx.InsertCompany(ctx, a); err != nil {
				return err
			}
			b := models.NewCompany("Bolt", 2, base)
			if err := tx.InsertCompany(ctx, b); err != nil {
				return err
			}
			acme, bolt = a.ID, b.ID
			// Bolt invites first, Acme later.
			if err := tx.PutMembership(ctx, models.Invite(bolt, 3, "engineer", base.Add(time.Minute))); err != nil {
				return err
			}
			return tx.PutMembership(ctx, models.Invite(acme, 3, "cfo", base.Add(2*time.Minute)))
		}))

		var pending []models.Membership
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			pending, err = tx.PendingMemberships(ctx, 3)
			return err
		}))
		require.Len(t, pending, 2)
		assert.Equal(t, bolt, pending[0].CompanyID)
		assert.Equal(t, acme, pending[1].CompanyID)

		// Overwrite keeps one row per pair.
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.PutMembership(ctx, models.Invite(bolt, 3, "cto", base.Add(3*time.Minute)))
		}))
		var members []models.Membership
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			var err error
			members, err = tx.Memberships(ctx, bolt)
			return err
		}))
		require.Len(t, members, 1)
		assert.Equal(t, "cto", members[0].Role)

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.DeleteMembership(ctx, bolt, 3)
		}))
		err := s.Update(ctx, func(tx Tx) error {
			return tx.DeleteMembership(ctx, bolt, 3)
		})
		assert.ErrorIs(t, err, models.ErrNoPendingInvitation)
	})
}

func TestAccountIDs_RegistrationOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		CreateTestAccount(t, s, 30, "c", 1)
		CreateTestAccount(t, s, 10, "a", 1)
		CreateTestAccount(t, s, 20, "b", 1)

		ids, err := s.AccountIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []models.AccountID{30, 10, 20}, ids)
	})
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", postgresDialect.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	assert.Equal(t, "x = ?", sqliteDialect.rebind("x = ?"))
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "localhost", Port: "5433", User: "trader", Password: "trading123", Name: "trading_db"}
	assert.Equal(t, "host=localhost port=5433 user=trader password=trading123 dbname=trading_db sslmode=disable", cfg.DSN())
}
