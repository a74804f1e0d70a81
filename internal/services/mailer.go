package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/models"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"github.com/wneessen/go-mail"
)

// Mailer envoie les e-mails transactionnels aux acheteurs.
type Mailer struct {
	client *mail.Client
	from   string
}

// NewMailer renvoie nil quand SMTP_HOST est vide.
func NewMailer(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		slog.Warn("⚠️ SMTP_HOST vide, e-mails désactivés")
		return nil, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("client smtp: %w", err)
	}
	return &Mailer{client: client, from: cfg.From}, nil
}

func (m *Mailer) Enabled() bool { return m != nil && m.client != nil }

func shortRef(o models.Order) string {
	return o.ID.String()[:8]
}

// OrderQRCode encode la référence de la commande pour le retrait ou le suivi.
func OrderQRCode(o models.Order) ([]byte, error) {
	return qrcode.Encode("bookstore:order:"+o.ID.String(), qrcode.Medium, 256)
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}

func (m *Mailer) newMsg(to models.User, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(to.Email); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	return msg, nil
}

func (m *Mailer) buildOrderConfirmation(to models.User, orders []models.Order) (*mail.Msg, error) {
	msg, err := m.newMsg(to, "✅ Confirmation de votre commande - Bookstore")
	if err != nil {
		return nil, err
	}

	data := confirmationData{Name: to.Name}
	total := decimal.Zero
	for _, o := range orders {
		title := o.BookID.String()
		if o.Book != nil {
			title = o.Book.Title
		}
		data.Lines = append(data.Lines, confirmationLine{
			Ref:       shortRef(o),
			Title:     title,
			Quantity:  o.Quantity,
			UnitPrice: formatPrice(o.UnitPrice),
			Total:     formatPrice(o.Total()),
		})
		total = total.Add(o.Total())
	}
	data.Total = formatPrice(total)

	if err := msg.SetBodyHTMLTemplate(confirmationTmpl, data); err != nil {
		return nil, err
	}

	for _, o := range orders {
		png, err := OrderQRCode(o)
		if err != nil {
			return nil, fmt.Errorf("erreur génération QR: %w", err)
		}
		if err := msg.AttachReader(fmt.Sprintf("commande-%s.png", shortRef(o)), bytes.NewReader(png)); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

func (m *Mailer) buildStatusUpdate(to models.User, o models.Order) (*mail.Msg, error) {
	msg, err := m.newMsg(to, statusSubject(o.Status))
	if err != nil {
		return nil, err
	}
	text, color := statusMessage(o.Status)
	data := statusData{Name: to.Name, Ref: shortRef(o), Quantity: o.Quantity, Status: o.Status, Message: text, Color: color}
	if err := msg.SetBodyHTMLTemplate(statusTmpl, data); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, to models.User, orders []models.Order) error {
	if !m.Enabled() || len(orders) == 0 {
		return nil
	}
	msg, err := m.buildOrderConfirmation(to, orders)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "📤 envoi confirmation de commande", "to", to.Email, "orders", len(orders))
	return m.client.DialAndSendWithContext(ctx, msg)
}

func (m *Mailer) SendStatusUpdate(ctx context.Context, to models.User, o models.Order) error {
	if !m.Enabled() {
		return nil
	}
	msg, err := m.buildStatusUpdate(to, o)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "📧 e-mail de statut", "to", to.Email, "status", o.Status)
	return m.client.DialAndSendWithContext(ctx, msg)
}
