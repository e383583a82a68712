package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/atharvakonge/market-game/internal/engine"
	"github.com/atharvakonge/market-game/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Dispatcher turns bot updates into game operations and replies in chat.
type Dispatcher struct {
	bot  Sender
	game *engine.Game
}

// NewDispatcher returns a dispatcher answering through bot.
func NewDispatcher(bot Sender, game *engine.Game) *Dispatcher {
	return &Dispatcher{bot: bot, game: game}
}

// Run handles updates until ctx is cancelled or the channel closes.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	log.Println("Telegram dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Telegram dispatcher stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update: commands, menu button presses, and a
// hint for any other text.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	case update.Message == nil || update.Message.From == nil:
	case update.Message.IsCommand():
		d.send(d.handleCommand(ctx, update.Message))
	default:
		d.send(tgbotapi.NewMessage(update.Message.Chat.ID, "Use /help to see the list of commands."))
	}
}

func (d *Dispatcher) send(msg tgbotapi.MessageConfig) {
	if msg.Text == "" {
		return
	}
	if _, err := d.bot.Send(msg); err != nil {
		log.Println("Telegram send error:", err)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	account := models.AccountID(msg.From.ID)
	args := strings.Fields(msg.CommandArguments())
	reply := tgbotapi.NewMessage(msg.Chat.ID, "")

	var err error
	switch msg.Command() {
	case "start":
		reply, err = d.start(ctx, msg, args)
	case "help":
		reply, err = d.menu(ctx, msg.Chat.ID, account)
	case "buy", "sell":
		reply.Text, err = d.trade(ctx, msg.Command(), account, args)
	case "market":
		reply.Text, err = d.market(ctx)
	case "portfolio":
		reply, err = d.portfolio(ctx, msg.Chat.ID, account)
	case "wealth":
		var w engine.Wealth
		if w, err = d.game.Wealth(ctx, account); err == nil {
			reply.Text = fmt.Sprintf("Your total wealth: %s units\nYour balance: %s units",
				models.FormatMoney(w.Total), models.FormatMoney(w.Balance))
		}
	case "ranking":
		var entries []engine.RankEntry
		if entries, err = d.game.Ranking(ctx); err == nil {
			reply.Text = engine.RenderRanking(entries)
		}
	case "referral":
		// The link is delivered as a photo by the game itself.
		_, err = d.game.SendInviteLink(ctx, account)
	case "create_company":
		reply.Text, err = d.createCompany(ctx, account, msg.CommandArguments())
	case "show_company":
		var info *models.CompanyInfo
		if info, err = d.game.ShowCompany(ctx, account); err == nil {
			reply.Text = engine.RenderCompany(info)
		}
	case "invite":
		reply.Text, err = d.invite(ctx, account, args)
	case "accept":
		var inv *engine.Invitation
		if inv, err = d.game.AcceptInvitation(ctx, account); err == nil {
			reply.Text = fmt.Sprintf("You have joined the company '%s' as %s.", inv.CompanyName, inv.Membership.Role)
		}
	case "decline":
		if _, err = d.game.DeclineInvitation(ctx, account); err == nil {
			reply.Text = "You have declined the invitation."
		}
	case "username":
		reply.Text, err = d.username(ctx, account, args)
	case "history":
		reply.Text, err = d.history(ctx, account)
	default:
		reply.Text = "Unknown command. Use /help to see the list of commands."
	}

	if err != nil {
		reply = tgbotapi.NewMessage(msg.Chat.ID, errorText(msg.Command(), err))
	}
	return reply
}

func errorText(command string, err error) string {
	if !models.IsDomainError(err) {
		log.Printf("Command /%s failed: %v", command, err)
	}
	return models.UserMessage(err)
}

func (d *Dispatcher) start(ctx context.Context, msg *tgbotapi.Message, args []string) (tgbotapi.MessageConfig, error) {
	referral := mo.None[string]()
	if len(args) > 0 {
		referral = mo.Some(args[0])
	}
	reg, err := d.game.RegisterOrGreet(ctx, models.AccountID(msg.From.ID), msg.From.UserName, referral)
	if err != nil {
		return tgbotapi.MessageConfig{}, err
	}
	reply, err := d.menu(ctx, msg.Chat.ID, reg.Account.ID)
	if err != nil {
		return tgbotapi.MessageConfig{}, err
	}
	if inviter, ok := reg.Inviter.Get(); ok {
		reply.Text = fmt.Sprintf("You were invited by user with ID %d. They receive %s units for the invitation!\n\n",
			inviter, models.FormatMoney(models.ReferralBonus)) + reply.Text
	}
	return reply, nil
}

var menuKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Buy product", "show_market")),
	tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Market", "market")),
	tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Portfolio", "portfolio")),
)

var backKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Back to menu", "menu")),
)

func (d *Dispatcher) menu(ctx context.Context, chat int64, account models.AccountID) (tgbotapi.MessageConfig, error) {
	w, err := d.game.Wealth(ctx, account)
	if err != nil {
		return tgbotapi.MessageConfig{}, err
	}
	text := fmt.Sprintf("Welcome to the trading game!\n\n"+
		"Your total wealth: %s units\n"+
		"Your balance: %s units\n\n"+
		"Game rules are simple:\n"+
		"1. You start with a balance of %s units.\n"+
		"2. You can buy and sell various products available on the market.\n"+
		"3. Product prices may change due to random economic events.\n"+
		"4. Your goal is to increase your wealth through wise investments.\n"+
		"5. Receive %s units for each referral through /referral.\n\n"+
		"Commands: /buy <id> [qty], /sell <id> [qty], /market, /portfolio, /wealth, /ranking, /history,\n"+
		"/create_company <name>, /show_company, /invite <username> <role>, /accept, /decline, /username [new]",
		models.FormatMoney(w.Total), models.FormatMoney(w.Balance),
		models.FormatMoney(models.StartingBalance), models.FormatMoney(models.ReferralBonus))
	reply := tgbotapi.NewMessage(chat, text)
	reply.ReplyMarkup = menuKeyboard
	return reply, nil
}

func parseTradeArgs(args []string) (models.ProductID, int, error) {
	if len(args) == 0 || len(args) > 2 {
		return 0, 0, fmt.Errorf("%w: usage <product_id> [quantity]", models.ErrInvalidArgument)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: product id %q", models.ErrInvalidArgument, args[0])
	}
	qty := 1
	if len(args) == 2 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return 0, 0, fmt.Errorf("%w: quantity %q", models.ErrInvalidArgument, args[1])
		}
	}
	return models.ProductID(id), qty, nil
}

func (d *Dispatcher) trade(ctx context.Context, kind string, account models.AccountID, args []string) (string, error) {
	product, qty, err := parseTradeArgs(args)
	if err != nil {
		return "", err
	}
	return d.execTrade(ctx, kind, account, product, qty)
}

func (d *Dispatcher) execTrade(ctx context.Context, kind string, account models.AccountID, product models.ProductID, qty int) (string, error) {
	if kind == "buy" {
		rec, err := d.game.Buy(ctx, account, product, qty)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("You bought %d units of the product for %s.", rec.Quantity, models.FormatMoney(rec.Total())), nil
	}
	rec, err := d.game.Sell(ctx, account, product, qty)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("You sold %d units of the product for %s.", rec.Quantity, models.FormatMoney(rec.Total())), nil
}

func (d *Dispatcher) market(ctx context.Context) (string, error) {
	products, err := d.game.Products(ctx)
	if err != nil {
		return "", err
	}
	lines := lo.Map(products, func(p *models.Product, _ int) string {
		return fmt.Sprintf("ID: %d, Name: %s, Price: %s, Availability: %d", p.ID, p.Name, models.FormatMoney(p.Price), p.Availability)
	})
	return "Available products on the market:\n" + strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) portfolio(ctx context.Context, chat int64, account models.AccountID) (tgbotapi.MessageConfig, error) {
	p, err := d.game.Portfolio(ctx, account)
	if err != nil {
		return tgbotapi.MessageConfig{}, err
	}
	reply := tgbotapi.NewMessage(chat, "Your portfolio is empty.")
	if len(p.Holdings) == 0 {
		reply.ReplyMarkup = backKeyboard
		return reply, nil
	}

	var b strings.Builder
	b.WriteString("Your portfolio:\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(p.Holdings)+1)
	for _, h := range p.Holdings {
		fmt.Fprintf(&b, "%s: %d units\n", h.Name, h.Quantity)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Sell "+h.Name, fmt.Sprintf("sell_%d", h.ProductID))))
	}
	rows = append(rows, backKeyboard.InlineKeyboard...)
	reply.Text = b.String()
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return reply, nil
}

func (d *Dispatcher) showMarket(ctx context.Context, chat int64) (tgbotapi.MessageConfig, error) {
	products, err := d.game.Products(ctx)
	if err != nil {
		return tgbotapi.MessageConfig{}, err
	}
	rows := lo.Map(products, func(p *models.Product, _ int) []tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("Buy %s - %s", p.Name, models.FormatMoney(p.Price)), fmt.Sprintf("buy_%d", p.ID)))
	})
	rows = append(rows, backKeyboard.InlineKeyboard...)
	reply := tgbotapi.NewMessage(chat, "Choose a product to buy:")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return reply, nil
}

func (d *Dispatcher) createCompany(ctx context.Context, account models.AccountID, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "Please provide a name for your company using /create_company <CompanyName>.", nil
	}
	c, err := d.game.CreateCompany(ctx, account, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Congratulations! You have successfully created the company '%s'.", c.Name), nil
}

func (d *Dispatcher) invite(ctx context.Context, account models.AccountID, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: /invite <username> <role>", nil
	}
	target, role := args[0], strings.Join(args[1:], " ")
	if _, err := d.game.InviteMember(ctx, account, target, role); err != nil {
		return "", err
	}
	return fmt.Sprintf("Invitation sent to %s.", target), nil
}

func (d *Dispatcher) username(ctx context.Context, account models.AccountID, args []string) (string, error) {
	if len(args) == 0 {
		name, err := d.game.ChangeUsername(ctx, account, mo.None[string]())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Your current username is '%s'.", name), nil
	}
	name, err := d.game.ChangeUsername(ctx, account, mo.Some(args[0]))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your username has been changed to '%s'.", name), nil
}

func (d *Dispatcher) history(ctx context.Context, account models.AccountID) (string, error) {
	trades, err := d.game.History(ctx, account)
	if err != nil {
		return "", err
	}
	if len(trades) == 0 {
		return "You have no trades yet.", nil
	}
	var b strings.Builder
	b.WriteString("Your recent trades:\n")
	for _, t := range trades {
		fmt.Fprintf(&b, "%s: %s %d x #%d at %s\n",
			t.CreatedAt.Format("02.01.2006 15:04"), t.Kind, t.Quantity, t.ProductID, models.FormatMoney(t.UnitPrice))
	}
	return b.String(), nil
}

// handleCallback answers inline keyboard presses from the menu.
func (d *Dispatcher) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := d.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Println("Telegram callback answer error:", err)
	}
	if q.Message == nil {
		return
	}
	chat := q.Message.Chat.ID
	account := models.AccountID(q.From.ID)

	var (
		reply tgbotapi.MessageConfig
		err   error
	)
	switch {
	case q.Data == "menu":
		reply, err = d.menu(ctx, chat, account)
	case q.Data == "market":
		reply = tgbotapi.NewMessage(chat, "")
		reply.Text, err = d.market(ctx)
		reply.ReplyMarkup = backKeyboard
	case q.Data == "show_market":
		reply, err = d.showMarket(ctx, chat)
	case q.Data == "portfolio":
		reply, err = d.portfolio(ctx, chat, account)
	case strings.HasPrefix(q.Data, "buy_"), strings.HasPrefix(q.Data, "sell_"):
		kind, idText, _ := strings.Cut(q.Data, "_")
		id, convErr := strconv.Atoi(idText)
		if convErr != nil {
			err = fmt.Errorf("%w: product id %q", models.ErrInvalidArgument, idText)
			break
		}
		reply = tgbotapi.NewMessage(chat, "")
		reply.Text, err = d.execTrade(ctx, kind, account, models.ProductID(id), 1)
		reply.ReplyMarkup = backKeyboard
	default:
		return
	}
	if err != nil {
		reply = tgbotapi.NewMessage(chat, errorText(q.Data, err))
	}
	d.send(reply)
}
