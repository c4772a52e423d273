package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// MessageSender is the part of BotService the notifier uses.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Notifier delivers user notifications as Telegram messages.
// The user's external id is the chat id.
type Notifier struct {
	sender   MessageSender
	userRepo user.Repository
	logger   logger.Interface
}

var _ notification.Notifier = (*Notifier)(nil)

func NewNotifier(sender MessageSender, userRepo user.Repository, logger logger.Interface) *Notifier {
	return &Notifier{sender: sender, userRepo: userRepo, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, msg notification.Notification) error {
	u, err := n.userRepo.GetByID(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user for notification: %w", err)
	}
	if u == nil {
		return fmt.Errorf("user %d not found for notification", msg.UserID)
	}

	chatID, err := strconv.ParseInt(u.ExternalID(), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, u.ExternalID())
	}

	text := RenderMessage(msg)
	if text == "" {
		n.logger.Warnw("no telegram template for notification", "kind", msg.Kind)
		return nil
	}

	if err := n.sender.SendMessage(ctx, chatID, text); err != nil {
		if IsBotBlocked(err) {
			n.logger.Infow("user blocked the bot, notification dropped", "user_id", msg.UserID, "kind", msg.Kind)
			return nil
		}
		return err
	}
	return nil
}

// RenderMessage renders the HTML message body for msg.
func RenderMessage(msg notification.Notification) string {
	amount := msg.Amount.StringFixed(2) + " " + html.EscapeString(msg.Currency)
	endDate := msg.EndDate.UTC().Format("2006-01-02")

	var b strings.Builder
	switch msg.Kind {
	case notification.KindRenewalSucceeded:
		b.WriteString("✅ <b>Subscription renewed</b>\n\n")
		fmt.Fprintf(&b, "Charged: %s\nActive until: %s", amount, endDate)
	case notification.KindRetriesExhausted:
		b.WriteString("❌ <b>Renewal payment failed</b>\n\n")
		fmt.Fprintf(&b, "We could not charge %s for your subscription.\n", amount)
		b.WriteString("It will be cancelled at the end of the day unless you pay manually.")
	case notification.KindManualPaymentRequired:
		b.WriteString("💳 <b>Payment required</b>\n\n")
		fmt.Fprintf(&b, "Your subscription renewal needs %s.\n", amount)
		if msg.ConfirmationURL != "" {
			fmt.Fprintf(&b, "<a href=\"%s\">Pay now</a>", html.EscapeString(msg.ConfirmationURL))
		}
	case notification.KindPromotionApplied:
		b.WriteString("🎁 <b>Promo code applied</b>\n\n")
		fmt.Fprintf(&b, "Code <code>%s</code> added %d days.\nActive until: %s",
			html.EscapeString(msg.PromotionCode), msg.BonusDays, endDate)
	case notification.KindSubscriptionActivated:
		b.WriteString("🎉 <b>Subscription activated</b>\n\n")
		fmt.Fprintf(&b, "Active until: %s", endDate)
	case notification.KindRefundIssued:
		b.WriteString("↩️ <b>Refund issued</b>\n\n")
		fmt.Fprintf(&b, "Refunded: %s", amount)
	default:
		return ""
	}
	return b.String()
}
