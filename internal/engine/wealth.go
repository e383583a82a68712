package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Wealth is an account's net worth at one consistent snapshot.
type Wealth struct {
	Total   decimal.Decimal `json:"total"`
	Balance decimal.Decimal `json:"balance"`
}

// NetWorth returns balance + Σ(quantity × price). It reads nothing but its
// arguments.
func NetWorth(a *models.Account, prices map[models.ProductID]decimal.Decimal) (Wealth, error) {
	total := a.Balance
	for product, qty := range a.Portfolio {
		price, ok := prices[product]
		if !ok {
			return Wealth{}, fmt.Errorf("holding of product %d: %w", product, models.ErrProductNotFound)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return Wealth{Total: total, Balance: a.Balance}, nil
}

func priceTable(products []*models.Product) map[models.ProductID]decimal.Decimal {
	return lo.SliceToMap(products, func(p *models.Product) (models.ProductID, decimal.Decimal) {
		return p.ID, p.Price
	})
}

// Wealth computes the net worth of one account.
func (g *Game) Wealth(ctx context.Context, account models.AccountID) (Wealth, error) {
	var w Wealth
	err := g.store.View(ctx, func(tx db.Tx) error {
		a, err := tx.Account(ctx, account)
		if err != nil {
			return err
		}
		products, err := tx.Products(ctx)
		if err != nil {
			return err
		}
		w, err = NetWorth(a, priceTable(products))
		return err
	})
	if err != nil {
		return Wealth{}, fmt.Errorf("wealth of account %d: %w", account, err)
	}
	return w, nil
}

// RankEntry is one line of the ranking.
type RankEntry struct {
	Position  int             `json:"position"`
	AccountID models.AccountID `json:"account_id"`
	Username  string          `json:"username"`
	Wealth    decimal.Decimal `json:"wealth"`
}

// Rank orders accounts by wealth, richest first. Accounts with equal wealth
// keep their input order.
func Rank(accounts []*models.Account, prices map[models.ProductID]decimal.Decimal) ([]RankEntry, error) {
	entries := make([]RankEntry, 0, len(accounts))
	for _, a := range accounts {
		w, err := NetWorth(a, prices)
		if err != nil {
			return nil, err
		}
		entries = append(entries, RankEntry{AccountID: a.ID, Username: a.Username, Wealth: w.Total})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Wealth.GreaterThan(entries[j].Wealth)
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries, nil
}

// Ranking ranks every known account in registration order.
func (g *Game) Ranking(ctx context.Context) ([]RankEntry, error) {
	var entries []RankEntry
	err := g.store.View(ctx, func(tx db.Tx) error {
		accounts, err := tx.Accounts(ctx)
		if err != nil {
			return err
		}
		products, err := tx.Products(ctx)
		if err != nil {
			return err
		}
		entries, err = Rank(accounts, priceTable(products))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return entries, nil
}

// RenderRanking formats entries as a numbered "name: wealth" list.
func RenderRanking(entries []RankEntry) string {
	var b strings.Builder
	b.WriteString("User ranking:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s: %s units\n", e.Position, e.Username, models.FormatMoney(e.Wealth))
	}
	return b.String()
}

// Portfolio lists an account's holdings valued at current prices.
func (g *Game) Portfolio(ctx context.Context, account models.AccountID) (models.PortfolioResponse, error) {
	var resp models.PortfolioResponse
	err := g.store.View(ctx, func(tx db.Tx) error {
		a, err := tx.Account(ctx, account)
		if err != nil {
			return err
		}
		products, err := tx.Products(ctx)
		if err != nil {
			return err
		}
		byID := lo.KeyBy(products, func(p *models.Product) models.ProductID { return p.ID })

		resp = models.PortfolioResponse{Holdings: make([]models.Holding, 0, len(a.Portfolio)), Balance: a.Balance}
		total := a.Balance
		for _, id := range lo.Keys(a.Portfolio) {
			p, ok := byID[id]
			if !ok {
				return fmt.Errorf("holding of product %d: %w", id, models.ErrProductNotFound)
			}
			qty := a.Portfolio[id]
			value := p.Price.Mul(decimal.NewFromInt(int64(qty)))
			total = total.Add(value)
			resp.Holdings = append(resp.Holdings, models.Holding{
				ProductID: id, Name: p.Name, Quantity: qty, Price: p.Price, Value: value,
			})
		}
		sort.Slice(resp.Holdings, func(i, j int) bool { return resp.Holdings[i].ProductID < resp.Holdings[j].ProductID })
		resp.TotalValue = total
		return nil
	})
	if err != nil {
		return models.PortfolioResponse{}, fmt.Errorf("portfolio of account %d: %w", account, err)
	}
	return resp, nil
}
