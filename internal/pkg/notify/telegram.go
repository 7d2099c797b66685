package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"groupbuy_backend/internal/pkg/config"
)

// TelegramSender delivers events as bot messages. It needs the recipient's
// telegram chat id, which the resolver looks up from the user id.
type TelegramSender struct {
	token    string
	client   *http.Client
	resolver ChatResolver
}

// ChatResolver maps an internal user id to a telegram chat id.
type ChatResolver interface {
	TelegramID(userID string) (int64, error)
}

// NewTelegramSender builds a sender from the configured bot token.
func NewTelegramSender(resolver ChatResolver) (*TelegramSender, error) {
	token := config.GlobalConfig.Telegram.BotToken
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is missing")
	}
	return &TelegramSender{
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
		resolver: resolver,
	}, nil
}

// Send posts one message through the bot API.
func (s *TelegramSender) Send(event Event) error {
	chatID, err := s.resolver.TelegramID(event.UserID)
	if err != nil {
		return fmt.Errorf("resolve chat id: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"chat_id":    chatID,
		"text":       renderText(event),
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token)
	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned %d", resp.StatusCode)
	}
	return nil
}

// renderText builds the message body for an event type.
func renderText(event Event) string {
	d := event.Data
	switch event.Type {
	case EventGroupJoined:
		return fmt.Sprintf("New participant in your group for %s. Current price: %s", d["product_name"], d["current_price"])
	case EventGroupCompleted:
		return fmt.Sprintf("The group buy for %s is complete! Final price: %s", d["product_name"], d["final_price"])
	case EventGroupFailed:
		return fmt.Sprintf("The group buy for %s did not reach the minimum. Held funds are being released.", d["product_name"])
	case EventGroupExpiring:
		return fmt.Sprintf("The group buy for %s ends soon. %s more participants needed.", d["product_name"], d["people_needed"])
	case EventOrderCreated:
		return fmt.Sprintf("Order %s created. Funds are held until the group resolves.", d["order_no"])
	case EventOrderPaid:
		return fmt.Sprintf("Order %s paid: %s.", d["order_no"], d["amount"])
	case EventOrderShipped:
		return fmt.Sprintf("Order %s shipped. Tracking: %s", d["order_no"], d["tracking_number"])
	case EventOrderDelivered:
		return fmt.Sprintf("Order %s delivered. Enjoy!", d["order_no"])
	case EventOrderCancelled:
		return fmt.Sprintf("Order %s cancelled. Held funds released.", d["order_no"])
	case EventReturnApproved:
		return fmt.Sprintf("Your return for order %s was approved. Please ship the item back.", d["order_no"])
	case EventReturnCompleted:
		return fmt.Sprintf("Return complete. %s refunded to your card.", d["refund_amount"])
	case EventLevelUp:
		return fmt.Sprintf("Level up! You are now %s.", d["level"])
	default:
		return string(event.Type)
	}
}
