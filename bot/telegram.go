// Package bot provides Telegram bot functionality
//
// telegram.go - Command surface and push notifications for the position
// lifecycle loop: trade events, erosion alerts, stats on demand.
package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/ledger"
	"github.com/web3guy0/pyrabot/monitor"
)

// BalanceProvider reports the current account balance.
type BalanceProvider interface {
	Balance() decimal.Decimal
}

// Bot handles Telegram interactions.
type Bot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	ledger  *ledger.Ledger
	feed    *monitor.Feed
	balance BalanceProvider
	stopCh  chan struct{}
}

// New connects to Telegram. chatID is where push notifications go; zero
// disables pushes but commands still work from any chat.
func New(token string, chatID int64, l *ledger.Ledger, feed *monitor.Feed, balance BalanceProvider) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	return &Bot{
		api:     api,
		chatID:  chatID,
		ledger:  l,
		feed:    feed,
		balance: balance,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins the command listener.
func (b *Bot) Start() {
	go b.listenForCommands()

	if b.chatID != 0 {
		b.sendText(b.chatID, "🚀 Pyrabot online. /help for commands.")
	}
}

// Stop stops the bot.
func (b *Bot) Stop() {
	close(b.stopCh)
}

// NotifyTrade pushes a trade event. Implements the engine's Notifier.
func (b *Bot) NotifyTrade(instrument, event, details string) {
	if b.chatID == 0 {
		return
	}
	icon := "📈"
	switch event {
	case "PYRAMID":
		icon = "🔺"
	case "EXIT":
		icon = "📊"
	}
	b.sendMarkdown(b.chatID, fmt.Sprintf("%s *%s* %s\n%s", icon, instrument, event, details))
}

// NotifyAlert pushes a risk alert.
func (b *Bot) NotifyAlert(instrument, message string) {
	if b.chatID == 0 {
		return
	}
	b.sendMarkdown(b.chatID, fmt.Sprintf("⚠️ *%s*\n%s", instrument, message))
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	log.Debug().
		Int64("chat_id", chatID).
		Str("text", msg.Text).
		Msg("Received message")

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.cmdHelp(chatID)
	case "stats":
		b.cmdStats(chatID)
	case "positions":
		b.cmdPositions(chatID)
	case "health":
		b.cmdHealth(chatID)
	case "feed":
		b.cmdFeed(chatID)
	default:
		b.sendText(chatID, "❓ Unknown command. Use /help for available commands.")
	}
}

// Commands

func (b *Bot) cmdHelp(chatID int64) {
	text := `📚 *Pyrabot Commands*

/stats - Performance over closed trades
/positions - Open positions with P&L
/health - Erosion health per position
/feed - Recent activity

I manage position lifecycles: gated entries,
Kelly-sized stakes, pyramid adds, and exits on
stop, target, erosion cap or momentum failure.`

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdStats(chatID int64) {
	stats := b.ledger.GetPerformanceStats()
	if stats.TotalTrades == 0 {
		b.sendText(chatID, "📊 No closed trades yet.")
		return
	}

	pf := fmt.Sprintf("%.2f", stats.ProfitFactor)
	if stats.GrossLoss.IsZero() && stats.GrossProfit.IsPositive() {
		pf = "∞"
	}

	text := fmt.Sprintf(`📊 *Performance*

Trades: %d (%d W / %d L)
Win rate: %.1f%%
Net profit: %s
Avg win: %.2f%% | Avg loss: %.2f%%
Expectancy: %s per trade
Profit factor: %s
Max drawdown: %s (%.1f%%)

Balance: %s`,
		stats.TotalTrades, stats.Wins, stats.Losses,
		stats.WinRate*100,
		stats.NetProfit.StringFixed(2),
		stats.AvgWinPct, stats.AvgLossPct,
		stats.Expectancy.StringFixed(2),
		pf,
		stats.MaxDrawdown.StringFixed(2), stats.MaxDrawdownPct,
		b.balance.Balance().StringFixed(2))

	b.sendMarkdown(chatID, text)
}

func (b *Bot) cmdPositions(chatID int64) {
	positions := b.ledger.OpenPositions()
	if len(positions) == 0 {
		b.sendText(chatID, "📭 No open positions.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📂 *Open Positions*\n")
	for _, pos := range positions {
		sb.WriteString(fmt.Sprintf(`
*%s* (%s)
Entry: %s | Volume: %s
P&L: %s (%.2f%%)
Peak: %s | Levels: %d
Stop: %s | Target: %s
`,
			pos.Instrument, pos.Meta.Regime,
			pos.EntryPrice.StringFixed(2), pos.TotalVolume.String(),
			pos.CurrentProfit.StringFixed(2), pos.ProfitPct,
			pos.PeakProfit.StringFixed(2), len(pos.Levels),
			pos.StopLoss.StringFixed(2), pos.ProfitTarget.StringFixed(2)))
	}

	b.sendMarkdown(chatID, sb.String())
}

func (b *Bot) cmdHealth(chatID int64) {
	positions := b.ledger.OpenPositions()
	if len(positions) == 0 {
		b.sendText(chatID, "📭 No open positions.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🩺 *Position Health*\n")
	for _, pos := range positions {
		health, ok := b.ledger.Health(pos.Instrument)
		if !ok {
			continue
		}
		icon := "🟢"
		switch health.Status {
		case "CAUTION":
			icon = "🟡"
		case "RISK":
			icon = "🟠"
		case "ALERT":
			icon = "🔴"
		}
		sb.WriteString(fmt.Sprintf("\n%s *%s* %s\nErosion: %.1f%% of peak | Held: %.0f min\n",
			icon, pos.Instrument, health.Status, health.ErosionPct, health.HoldTimeMinutes))
	}

	b.sendMarkdown(chatID, sb.String())
}

func (b *Bot) cmdFeed(chatID int64) {
	entries := b.feed.Recent(10)
	if len(entries) == 0 {
		b.sendText(chatID, "📭 No activity yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📰 *Recent Activity*\n\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("`%s` %s %s — %s\n",
			e.Timestamp.Format("15:04:05"), e.Instrument, e.Action, e.Details))
	}

	b.sendMarkdown(chatID, sb.String())
}

// Send helpers

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
