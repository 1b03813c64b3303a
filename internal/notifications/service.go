package notifications

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/inkforge/studio-backend/pkg/db/models"
	"github.com/inkforge/studio-backend/pkg/logger"
	"github.com/inkforge/studio-backend/pkg/mail"
)

// ServiceParams groups dependencies for the notification service.
type ServiceParams struct {
	Sender mail.Sender
	Logger *logger.Logger
}

// Service sends transactional customer email. Every send is fire-and-forget
// from the caller's perspective: failures are returned for logging and flag
// reporting, never propagated as request errors.
type Service struct {
	sender mail.Sender
	logg   *logger.Logger
}

// NewService builds a notification service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Sender == nil {
		return nil, stdErrors.New("mail sender is required")
	}
	if params.Logger == nil {
		return nil, stdErrors.New("logger is required")
	}
	return &Service{sender: params.Sender, logg: params.Logger}, nil
}

// SendOrderConfirmation emails the payment confirmation for a paid order.
func (s *Service) SendOrderConfirmation(ctx context.Context, user *models.User, order *models.Order) error {
	if user == nil || order == nil {
		return stdErrors.New("user and order are required")
	}

	subject := fmt.Sprintf("Order %s confirmed", order.OrderNumber)
	if err := s.sender.Send(user.Email, subject, confirmationBody(user, order)); err != nil {
		return err
	}

	s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "order confirmation email sent")
	return nil
}

func confirmationBody(user *models.User, order *models.Order) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<h2>Thanks for your order, %s!</h2>", user.Name))
	b.WriteString(fmt.Sprintf("<p>Your payment for order <strong>%s</strong> has been received.</p>", order.OrderNumber))

	b.WriteString("<table><tr><th align=\"left\">Item</th><th align=\"right\">Qty</th><th align=\"right\">Amount</th></tr>")
	for _, item := range order.Items {
		b.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td align=\"right\">%d</td><td align=\"right\">%s</td></tr>",
			item.Name, item.Qty, formatAmount(item.TotalCents, order.Currency.String()),
		))
	}
	b.WriteString("</table>")

	breakdown := order.PriceBreakdown
	b.WriteString("<p>")
	if breakdown.DiscountCents > 0 {
		b.WriteString(fmt.Sprintf("Discount: -%s<br>", formatAmount(breakdown.DiscountCents, order.Currency.String())))
	}
	b.WriteString(fmt.Sprintf("Tax: %s<br>", formatAmount(breakdown.TaxCents, order.Currency.String())))
	b.WriteString(fmt.Sprintf("Shipping: %s<br>", formatAmount(breakdown.ShippingCents, order.Currency.String())))
	b.WriteString(fmt.Sprintf("<strong>Total: %s</strong>", formatAmount(breakdown.TotalCents, order.Currency.String())))
	b.WriteString("</p>")

	return b.String()
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}
