package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/berniyo/paycollect/internal/collection"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns pages, outcomes and emails into HTML.
type Renderer struct {
	tmpl            *template.Template
	defaultCurrency string
	now             func() time.Time
}

// Option customizes the renderer.
type Option func(*Renderer)

// WithClock overrides the time source used for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New parses the embedded templates.
func New(defaultCurrency string, opts ...Option) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := &Renderer{tmpl: tmpl, defaultCurrency: defaultCurrency, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Home writes the entry page with the collection form.
func (r *Renderer) Home(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "home.html", struct{ DefaultCurrency string }{r.defaultCurrency})
}

// Confirmation writes the page shown after a verification email went out.
func (r *Renderer) Confirmation(w io.Writer, c collection.Confirmation) error {
	return r.tmpl.ExecuteTemplate(w, "confirmation.html", struct {
		Email     string
		Amount    string
		Currency  string
		SessionID string
	}{
		Email:     c.Session.VerificationEmail,
		Amount:    collection.FormatAmount(c.Session.Amount),
		Currency:  c.Session.Currency,
		SessionID: c.Session.ID,
	})
}

// Outcome writes the result page of a workflow step.
func (r *Renderer) Outcome(w io.Writer, o collection.Outcome) error {
	return r.tmpl.ExecuteTemplate(w, "outcome.html", struct {
		collection.Outcome
		Timestamp string
	}{
		Outcome:   o,
		Timestamp: r.now().Format("2006-01-02 15:04:05 MST"),
	})
}

// VerificationEmail renders the body of the account verification email.
func (r *Renderer) VerificationEmail(d collection.VerificationEmail) (string, error) {
	return r.execute("email_verification.html", d)
}

// PaymentEmail renders the body of the payment link email.
func (r *Renderer) PaymentEmail(d collection.PaymentEmail) (string, error) {
	return r.execute("email_payment.html", d)
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
