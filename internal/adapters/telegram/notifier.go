package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/adapters/config"
	"github.com/vantage-intel/vantage/pkg/logger"
	"github.com/vantage-intel/vantage/pkg/models"
)

// Reasoning chains are trimmed to whole lines under this budget so the
// rendered message stays inside Telegram's 4096-character cap.
const maxReasoningBytes = 1500

// Notifier pushes portfolio-impact alerts to a Telegram chat. It is optional
// infrastructure: when no bot token is configured the workflow runs without
// one and alerts are only persisted.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewNotifier creates a Telegram notifier bound to the configured chat
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	log := logger.Named("telegram")
	log.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
		zap.Int64("chat_id", cfg.ChatID),
	)

	return &Notifier{
		api:    bot,
		chatID: cfg.ChatID,
		log:    log,
	}, nil
}

// SendAlert renders the alert as a Markdown message and pushes it to the
// configured chat
func (n *Notifier) SendAlert(ctx context.Context, alert *models.Alert) error {
	msg, err := renderAlert(alert)
	if err != nil {
		return fmt.Errorf("failed to render alert message: %w", err)
	}

	return n.sendMessageMarkdown(n.chatID, msg)
}

func (n *Notifier) sendMessageMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("failed to send telegram message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

var alertTemplate = template.Must(template.New("alert").Parse(`{{.Emoji}} *{{.Headline}}*

*Severity:* {{.Severity}}
*Recommendation:* {{.Recommendation}}
*Portfolio impact:* {{.ImpactPct}} ({{.ImpactUSD}})
*Confidence:* {{.Confidence}}
{{- if .Factor}}
*Factor:* {{.Factor}}
{{- end}}
{{- if .Event}}

{{.Event}}
{{- end}}
{{- if .Holdings}}

*Affected holdings:*
{{- range .Holdings}}
{{.}}
{{- end}}
{{- end}}

*Reasoning:*
{{.Reasoning}}
{{- if .SourceCount}}

_{{.SourceCount}} source article{{if gt .SourceCount 1}}s{{end}}_
{{- end}}`))

type alertMessage struct {
	Emoji          string
	Headline       string
	Severity       string
	Recommendation string
	ImpactPct      string
	ImpactUSD      string
	Confidence     string
	Factor         string
	Event          string
	Holdings       []string
	Reasoning      string
	SourceCount    int
}

// renderAlert builds the Markdown body for one alert. Free text coming from
// article titles and LLM reasoning is escaped so it cannot break the parse
// mode.
func renderAlert(alert *models.Alert) (string, error) {
	data := alertMessage{
		Emoji:          severityEmoji(alert.Severity),
		Headline:       escapeMarkdown(alert.Headline),
		Severity:       strings.ToUpper(string(alert.Severity)),
		Recommendation: string(alert.Recommendation),
		ImpactPct:      formatPct(alert.TotalImpactPct),
		ImpactUSD:      formatUSD(alert.TotalImpactUSD),
		Confidence:     fmt.Sprintf("%.0f%%", alert.Confidence*100),
		Factor:         escapeMarkdown(alert.FactorName),
		Event:          escapeMarkdown(alert.EventSummary),
		Reasoning:      escapeMarkdown(trimReasoning(alert.FullReasoning, maxReasoningBytes)),
		SourceCount:    len(alert.Sources),
	}

	for _, h := range alert.Affected {
		data.Holdings = append(data.Holdings, fmt.Sprintf("• %s: %s (%s)",
			escapeMarkdown(h.Ticker), formatPct(h.ImpactPct), formatUSD(h.ImpactUSD)))
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func severityEmoji(s models.Severity) string {
	switch s {
	case models.SeverityHigh:
		return "🚨"
	case models.SeverityMedium:
		return "⚠️"
	default:
		return "📊"
	}
}

func formatPct(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, pct)
}

func formatUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// trimReasoning keeps whole lines up to max bytes. Long propagation chains
// would otherwise push the message over the Telegram length cap.
func trimReasoning(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := strings.LastIndex(s[:max], "\n")
	if cut <= 0 {
		cut = max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}

	return strings.TrimRight(s[:cut], "\n") + "\n…"
}
