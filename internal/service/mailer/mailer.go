package mailer

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templatesFS embed.FS

var orderDetailsTpl = template.Must(template.ParseFS(templatesFS, "templates/order_details.html"))

// deliveryLeadTime is added to the order date to quote an expected delivery date.
const deliveryLeadTime = 10 * 24 * time.Hour

type Config struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	Subject      string
	PhotoBaseURL string
}

func ConfigFromViper() Config {
	return Config{
		Host:         os.Getenv("SMTP_HOST"),
		Port:         viper.GetInt("mail.smtp_port"),
		Username:     os.Getenv("SMTP_USER"),
		Password:     os.Getenv("SMTP_PASSWORD"),
		From:         os.Getenv("SMTP_MAIL_FROM"),
		Subject:      viper.GetString("mail.order_subject"),
		PhotoBaseURL: viper.GetString("mail.photo_base_url"),
	}
}

// Mailer sends order confirmation emails over SMTP.
type Mailer struct {
	client       *mail.Client
	from         string
	subject      string
	photoBaseURL string
}

func New(cfg Config) (*Mailer, error) {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = "Your order"
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &Mailer{
		client:       client,
		from:         cfg.From,
		subject:      cfg.Subject,
		photoBaseURL: cfg.PhotoBaseURL,
	}, nil
}

// SendOrderDetails mails the order summary to the order's contact address.
// Orders without an email are skipped.
func (m *Mailer) SendOrderDetails(ctx context.Context, o order.Order) error {
	if o.Email == "" {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(o.Email); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(m.subject)
	if err := msg.SetBodyHTMLTemplate(orderDetailsTpl, newOrderDetailsView(o, m.photoBaseURL)); err != nil {
		return fmt.Errorf("failed to render order email: %w", err)
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send order email: %w", err)
	}

	return nil
}

// LogMailer only logs; used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) SendOrderDetails(_ context.Context, o order.Order) error {
	slog.Info("Order email skipped, SMTP is not configured", "order_id", o.ID, "email", o.Email)

	return nil
}

type itemView struct {
	Title    string
	Photo    string
	Quantity int
	Price    string
}

type orderDetailsView struct {
	order.DeliveryData
	ID                int64
	Items             []itemView
	Currency          string
	ShippingCost      string
	Promocode         string
	PromocodePercent  int
	PromocodeDiscount string
	Total             string
	ExpectedDelivery  string
	PhotoBaseURL      string
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Amounts are shown in the quoted currency, which is what the customer saw at checkout.
func newOrderDetailsView(o order.Order, photoBaseURL string) orderDetailsView {
	v := orderDetailsView{
		DeliveryData:     o.DeliveryData,
		ID:               o.ID,
		Currency:         o.OriginalCurrency.String(),
		ShippingCost:     money(o.ShippingCostCents),
		Total:            money(o.OriginalTotalCents),
		ExpectedDelivery: o.CreatedAt.Add(deliveryLeadTime).Format("02 January 2006"),
		PhotoBaseURL:     photoBaseURL,
	}
	if o.Promocode != "" && o.PromocodeDiscountCents > 0 && o.PromocodeDiscountPercent > 0 {
		v.Promocode = o.Promocode
		v.PromocodePercent = o.PromocodeDiscountPercent
		v.PromocodeDiscount = money(o.PromocodeDiscountCents)
	}
	for _, it := range o.OrderItems {
		v.Items = append(v.Items, itemView{
			Title:    it.Title,
			Photo:    it.Photo,
			Quantity: it.Quantity,
			Price:    money(it.UnitCents()),
		})
	}

	return v
}

// RenderOrderDetails writes the HTML body of the order email.
func RenderOrderDetails(w io.Writer, o order.Order, photoBaseURL string) error {
	return orderDetailsTpl.Execute(w, newOrderDetailsView(o, photoBaseURL))
}
