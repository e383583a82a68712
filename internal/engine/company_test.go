package engine

import (
	"context"
	"testing"

	"github.com/atharvakonge/market-game/internal/db"
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCompany(t *testing.T) {
	g, store, _ := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)

	c, err := g.CreateCompany(ctx, 1, "  Acme Mining ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Mining", c.Name)
	assert.Equal(t, models.AccountID(1), c.OwnerID)
	assert.Equal(t, "10000.00", models.FormatMoney(c.Value))
	assert.Equal(t, 1, c.TeamSize)
	assert.Equal(t, "900.00", models.FormatMoney(db.LoadTestAccount(t, store, 1).Balance))
}

func TestCreateCompany_SecondFails(t *testing.T) {
	g, store, _ := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	first, err := g.CreateCompany(ctx, 1, "Acme")
	require.NoError(t, err)
	before := captureState(t, store)

	_, err = g.CreateCompany(ctx, 1, "Acme Two")
	require.ErrorIs(t, err, models.ErrCompanyAlreadyOwned)

	assert.Equal(t, before, captureState(t, store))
	info, err := g.ShowCompany(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, info.Company.ID)
	assert.Equal(t, "Acme", info.Company.Name)
}

func TestCreateCompany_InsufficientFunds(t *testing.T) {
	g, store, _ := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 99.99)

	_, err := g.CreateCompany(ctx, 1, "Acme")
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = g.ShowCompany(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNoCompanyOwned)
	assert.Equal(t, "99.99", models.FormatMoney(db.LoadTestAccount(t, store, 1).Balance))
}

func TestCreateCompany_EmptyName(t *testing.T) {
	g, store, _ := setupGame(t)
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	_, err := g.CreateCompany(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestInviteMember(t *testing.T) {
	g, store, notifier := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	db.CreateTestAccount(t, store, 2, "bob", 1000)
	_, err := g.CreateCompany(ctx, 1, "Acme")
	require.NoError(t, err)

	m, err := g.InviteMember(ctx, 1, "bob", "CFO")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, models.AccountID(2), m.AccountID)

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.AccountID(2), msgs[0].Account)
	assert.Equal(t, InvitationText("Acme", "alice", "CFO"), msgs[0].Text)
	assert.Contains(t, msgs[0].Text, "join the company Acme by alice as CFO")
}

func TestInviteMember_Errors(t *testing.T) {
	g, store, _ := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	db.CreateTestAccount(t, store, 2, "bob", 1000)

	_, err := g.InviteMember(ctx, 1, "bob", "CFO")
	assert.ErrorIs(t, err, models.ErrNoCompanyOwned)

	_, err = g.CreateCompany(ctx, 1, "Acme")
	require.NoError(t, err)

	_, err = g.InviteMember(ctx, 1, "nobody", "CFO")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	_, err = g.InviteMember(ctx, 1, "alice", "CEO")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = g.InviteMember(ctx, 1, "bob", "")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestInviteMember_DeliveryFailureKeepsInvitation(t *testing.T) {
	g, store, notifier := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	db.CreateTestAccount(t, store, 2, "bob", 1000)
	_, err := g.CreateCompany(ctx, 1, "Acme")
	require.NoError(t, err)
	notifier.fail[2] = true

	_, err = g.InviteMember(ctx, 1, "bob", "CFO")
	require.NoError(t, err)

	inv, err := g.AcceptInvitation(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Acme", inv.CompanyName)
}

func TestAcceptInvitation(t *testing.T) {
	g, store, _ := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	db.CreateTestAccount(t, store, 2, "bob", 1000)
	_, err := g.CreateCompany(ctx, 1, "Acme")
	require.NoError(t, err)
	_, err = g.InviteMember(ctx, 1, "bob", "CFO")
	require.NoError(t, err)

	inv, err := g.AcceptInvitation(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Acme", inv.CompanyName)
	assert.Equal(t, "CFO", inv.Membership.Role)
	assert.Equal(t, models.StatusAccepted, inv.Membership.Status)

	info, err := g.ShowCompany(ctx, 1)
	require.NoError(t, err)
	require.Len(t, info.Members, 1)
	assert.Equal(t, "bob", info.Members[0].Username)
	assert.Equal(t, models.StatusAccepted, info.Members[0].Status)

	// Nothing is pending any more.
	_, err = g.AcceptInvitation(ctx, 2)
	assert.ErrorIs(t, err, models.ErrNoPendingInvitation)
}

func TestAcceptInvitation_NonePending(t *testing.T) {
	g, store, _ := setupGame(t)
	db.CreateTestAccount(t, store, 2, "bob", 1000)
	before := captureState(t, store)

	_, err := g.AcceptInvitation(context.Background(), 2)
	require.ErrorIs(t, err, models.ErrNoPendingInvitation)
	_, err = g.DeclineInvitation(context.Background(), 2)
	require.ErrorIs(t, err, models.ErrNoPendingInvitation)

	assert.Equal(t, before, captureState(t, store))
}

func TestInvitations_EarliestFirst(t *testing.T) {
	g, store, _ := setupGame(t)
	ctx := context.Background()
	db.CreateTestAccount(t, store, 1, "alice", 1000)
	db.CreateTestAccount(t, store, 2, "bob", 1000)
	db.CreateTestAccount(t, store, 3, "carol", 1000)
	_, err := g.CreateCompany(ctx, 1, "Acme")
	require.NoError(t, err)
	_, err = g.CreateCompany(ctx, 2, "Globex")
	require.NoError(t, err)

	_, err = g.InviteMember(ctx, 2, "carol", "CTO")
	require.NoError(t, err)
	_, err = g.InviteMember(ctx, 1, "carol", "COO")
	require.NoError(t, err)

	inv, err := g.DeclineInvitation(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Globex", inv.CompanyName)

	inv, err = g.AcceptInvitation(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Acme", inv.CompanyName)
	assert.Equal(t, "COO", inv.Membership.Role)

	info, err := g.ShowCompany(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, info.Members, "declined rows are removed")
}

func TestRenderCompany(t *testing.T) {
	info := &models.CompanyInfo{
		Company: *models.NewCompany("Acme", 1, testEpoch),
		Members: []models.Member{{
			Membership: models.Membership{Role: "CFO", Status: models.StatusPending},
			Username:   "bob",
		}},
	}
	assert.Equal(t,
		"Company Name: Acme\nValue: 10000.00 units\nProfit Margin: 10.00%\nTeam Size: 1\n\nCompany Members:\nUsername: bob, Role: CFO, Status: pending\n",
		RenderCompany(info))

	info.Members = nil
	assert.Contains(t, RenderCompany(info), "No members in the company.")
}
