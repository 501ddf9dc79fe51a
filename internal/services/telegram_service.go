package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/bakery/internal/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService sends order notifications to the staff chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a new TelegramService. Missing credentials turn
// every notification into a no-op.
func NewTelegramService(botToken, adminChatID string, log *zap.Logger) *TelegramService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPIBase,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log.Named("telegram"),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("bot token not configured, skipping message")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		s.log.Debug("admin chat not configured, skipping message")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice renders amount with two decimals and thousand separators.
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(cents)
	return b.String()
}

// NotifyNewOrder announces a freshly placed order.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order models.Order) error {
	var items strings.Builder
	for i, item := range order.Items {
		lineTotal := decimal.Zero
		if item.LineTotal.Valid {
			lineTotal = item.LineTotal.Decimal
		}
		fmt.Fprintf(&items, "%d. <b>%s</b> (%s)\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.ProductName),
			html.EscapeString(item.ProductCode),
			item.Quantity,
			FormatPrice(item.UnitPriceWithTax),
			FormatPrice(lineTotal),
		)
	}

	delivery := "-"
	if order.DeliveryDate != nil {
		delivery = order.DeliveryDate.Format("2006-01-02")
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>📞 Phone:</b> %s
<b>📅 Delivery:</b> %s
<b>📍 Address:</b> %s
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderNumber,
		html.EscapeString(deref(order.Phone)),
		delivery,
		html.EscapeString(deref(order.DeliveryAddress)),
		items.String(),
		FormatPrice(order.TotalAmount),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyOrderCancelled announces a cancellation.
func (s *TelegramService) NotifyOrderCancelled(ctx context.Context, order models.Order) error {
	message := fmt.Sprintf(`<b>❌ ORDER CANCELLED</b>
<b>📋 Order:</b> %s
<b>💰 Total:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderNumber,
		FormatPrice(order.TotalAmount),
	)
	return s.SendToAdmin(ctx, message)
}

func deref(value *string) string {
	if value == nil || *value == "" {
		return "-"
	}
	return *value
}
