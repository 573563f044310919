package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"adbudget/internal/analytics"
)

// Notification describes a proposed budget change worth a human look.
type Notification struct {
	AdID               string
	From               time.Time
	To                 time.Time
	CurrentBudget      decimal.Decimal
	ProposedBudget     decimal.Decimal
	ChangePct          decimal.Decimal
	ThresholdPct       decimal.Decimal
	Action             string
	AverageReturnRatio *float64
	TrendSlope         *float64
	AdditionalMsg      string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the rendered alert to the configured chat.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if err := n.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  renderMessage(note),
		DisableWebPagePreview: true,
	}); err != nil {
		return fmt.Errorf("telegram alert for ad %s: %w", note.AdID, err)
	}

	n.logger.Info().Str("ad_id", note.AdID).
		Str("action", note.Action).
		Str("change_pct", note.ChangePct.StringFixed(1)).
		Msg("budget alert sent (Telegram)")
	return nil
}

// call posts payload to a Bot API method. A body that is not a bot response
// is accepted as long as the status is 2xx.
func (n *TelegramNotifier) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result botResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}
	if !result.OK {
		if result.Description != "" {
			return fmt.Errorf("ok=false: %s", result.Description)
		}
		return errors.New("ok=false")
	}
	return nil
}

// LogNotifier writes alerts to the structured log. It serves as the channel
// of last resort when no chat is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the alert at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().Str("ad_id", note.AdID).
		Str("action", note.Action).
		Str("current", note.CurrentBudget.StringFixed(2)).
		Str("proposed", note.ProposedBudget.StringFixed(2)).
		Str("change_pct", note.ChangePct.StringFixed(1)).
		Msg("budget change above threshold")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Ad Budget Alert]\n")
	builder.WriteString(fmt.Sprintf("Ad: %s\n", note.AdID))
	if !note.From.IsZero() && !note.To.IsZero() {
		builder.WriteString(fmt.Sprintf("Range: %s .. %s\n", note.From.Format(analytics.DateLayout), note.To.Format(analytics.DateLayout)))
	}
	builder.WriteString(fmt.Sprintf("Budget: %s -> %s\n", note.CurrentBudget.StringFixed(2), note.ProposedBudget.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Change: %s%% (threshold %s%%)\n", note.ChangePct.StringFixed(1), note.ThresholdPct.StringFixed(1)))
	if note.Action != "" {
		builder.WriteString(fmt.Sprintf("Action: %s\n", note.Action))
	}
	if note.AverageReturnRatio != nil {
		builder.WriteString(fmt.Sprintf("Avg ROAS: %.3f\n", *note.AverageReturnRatio))
	}
	if note.TrendSlope != nil {
		builder.WriteString(fmt.Sprintf("Trend slope: %.4f/day\n", *note.TrendSlope))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
