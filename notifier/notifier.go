// Package notifier sends Telegram alerts for monitor events and
// trade outcomes via github.com/go-telegram-bot-api/telegram-bot-api/v5,
// a direct dependency the teacher repo already carries but never
// wired into its own trader package.
//
// Grounded on original_source/telegram_notifier.py. Message text and
// emoji choices follow the original closely; KST is kept as the
// display timezone since the original system and its operators are
// Seoul-based.
package notifier

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"arbigate/logger"
	"arbigate/monitor"
)

// usdtToKRW is the fixed conversion rate telegram_notifier.py uses for
// display purposes; it is not a live FX rate.
const usdtToKRW = 1300

var kst = mustLoadKST()

func mustLoadKST() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Notifier implements monitor.Notifier and executor.Notifier. When
// constructed without credentials it stays disabled: every Send call
// returns false immediately and nothing is dispatched, matching
// telegram_notifier.py's is_enabled flag.
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
}

// New builds a Notifier. An empty token or chatID leaves it disabled
// rather than erroring, since a missing notifier is a valid
// deployment (alerts only, no Telegram configured).
func New(token string, chatID int64) *Notifier {
	if token == "" || chatID == 0 {
		logger.Log.Warn("notifier: no credentials configured, running disabled")
		return &Notifier{enabled: false}
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Log.Errorf("notifier: init telegram bot: %v, running disabled", err)
		return &Notifier{enabled: false}
	}

	return &Notifier{bot: bot, chatID: chatID, enabled: true}
}

func (n *Notifier) Enabled() bool { return n.enabled }

// Send posts a plain HTML-formatted message. It returns false without
// attempting delivery when the notifier is disabled, so callers never
// need to branch on n.Enabled() before calling it.
func (n *Notifier) Send(text string) bool {
	if !n.enabled {
		return false
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		logger.Log.Errorf("notifier: send message: %v", err)
		return false
	}
	return true
}

// coinIcon mirrors telegram_notifier.py's per-symbol emoji choice.
func coinIcon(symbol string) string {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.Contains(upper, "XRP"):
		return "🟣"
	case strings.Contains(upper, "DOGE"):
		return "🟡"
	default:
		return "⚪"
	}
}

func gapIcon(gapPct float64) string {
	if gapPct >= 0 {
		return "🔵"
	}
	return "🔴"
}

// SendGapAlert formats and sends a gap-crossing notification,
// following telegram_notifier.py::send_gap_alert: coin icon, gap
// icon, both venues' last prices, and a KRW-converted price
// difference alongside the USDT figure.
func (n *Notifier) SendGapAlert(reading monitor.GapReading) bool {
	if !n.enabled {
		return false
	}

	priceA := reading.QuoteA.Ticker.Last
	priceB := reading.QuoteB.Ticker.Last
	diffUSDT := priceA.Sub(priceB).Abs()

	gapFloat, _ := reading.GapPct.Float64()

	text := fmt.Sprintf(
		"%s <b>%s</b> gap alert %s\n\n"+
			"%s: %s  vs  %s: %s\n"+
			"gap: <b>%s%%</b>\n"+
			"diff: %s USDT (≈%s KRW)\n"+
			"%s",
		coinIcon(string(reading.Symbol)), reading.Symbol, gapIcon(gapFloat),
		reading.Pair.A, priceA.StringFixed(6), reading.Pair.B, priceB.StringFixed(6),
		reading.GapPct.StringFixed(2),
		diffUSDT.StringFixed(4), diffUSDT.Mul(decimal.NewFromInt(usdtToKRW)).StringFixed(0),
		time.Now().In(kst).Format("2006-01-02 15:04:05 MST"),
	)

	return n.Send(text)
}
