package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

const defaultSMTPPort = 587

type Config struct {
	Host     string
	User     string
	Password string
	From     string
	Port     int
}

// Configured reports whether enough SMTP settings are present to send mail.
func (c Config) Configured() bool {
	return c.Host != "" && c.From != ""
}

var orderConfirmationTemplate = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
    <h2>Your GPU pod is being provisioned</h2>
    <p>Thank you for your order.</p>
    <table>
        <tr><td><strong>Order:</strong></td><td>{{.PartnerOrderID}}</td></tr>
        <tr><td><strong>Offer:</strong></td><td>{{.OfferID}}</td></tr>
        <tr><td><strong>Duration:</strong></td><td>{{.Hours}} h</td></tr>
        <tr><td><strong>Total:</strong></td><td>${{.PriceClient.StringFixed 2}}</td></tr>
        <tr><td><strong>Status:</strong></td><td>{{.Status}}</td></tr>
    </table>
    <p>You can follow the order from your dashboard.</p>
</body>
</html>
`))

func renderOrderConfirmation(order data.Order) (string, error) {
	var buf bytes.Buffer
	if err := orderConfirmationTemplate.Execute(&buf, order); err != nil {
		return "", fmt.Errorf("failed to render order confirmation: %w", err)
	}
	return buf.String(), nil
}

type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailNotifier(cfg Config) *EmailNotifier {
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	return &EmailNotifier{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (n *EmailNotifier) OrderConfirmed(_ context.Context, email string, order data.Order) error {
	body, err := renderOrderConfirmation(order)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", fmt.Sprintf("Order confirmation %s", order.PartnerOrderID))
	m.SetBody("text/html", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogNotifier only logs confirmations. Used when SMTP is not configured.
type LogNotifier struct {
	logger *logging.ZapLogger
}

func NewLogNotifier(logger *logging.ZapLogger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

func (n *LogNotifier) OrderConfirmed(ctx context.Context, email string, order data.Order) error {
	n.logger.InfoCtx(
		ctx,
		"order confirmation (smtp disabled)",
		zap.String("email", email),
		zap.String("partnerOrderID", order.PartnerOrderID),
	)
	return nil
}
