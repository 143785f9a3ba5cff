package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/berniyo/paycollect/internal/collection"
	"github.com/berniyo/paycollect/internal/logging"
)

const (
	maxFormBytes = 64 << 10

	// Amounts are bounded so formatting and the upstream payload stay small.
	maxAmountChars = 32
	maxAmountScale = 8
)

var maxAmount = decimal.New(1, 12)

// Collector is the orchestration surface used by the controller.
type Collector interface {
	Start(ctx context.Context, req collection.StartRequest) (collection.Confirmation, error)
	Resume(ctx context.Context, p collection.CallbackParams) collection.Outcome
}

// Pages renders the HTML documents returned to the browser.
type Pages interface {
	Home(w io.Writer) error
	Confirmation(w io.Writer, c collection.Confirmation) error
	Outcome(w io.Writer, o collection.Outcome) error
}

// HostObserver learns the public callback base from inbound requests.
type HostObserver interface {
	ObserveRequest(r *http.Request)
}

// CollectionController serves the entry page, the submission and the hosted-flow callback.
type CollectionController struct {
	collector       Collector
	pages           Pages
	hosts           HostObserver
	defaultCurrency string
	logger          logrus.FieldLogger
}

// NewCollectionController builds a controller that logs through logging.Logger.
func NewCollectionController(collector Collector, pages Pages, hosts HostObserver, defaultCurrency string) *CollectionController {
	return &CollectionController{
		collector:       collector,
		pages:           pages,
		hosts:           hosts,
		defaultCurrency: defaultCurrency,
		logger:          logging.Logger,
	}
}

// startForm fields are validated in declaration order; the first failure is reported.
type startForm struct {
	EmailVerification string `validate:"required"`
	EmailPayment      string `validate:"required"`
	Amount            string `validate:"positive_amount"`
	Currency          string `validate:"required"`
}

var fieldMessages = map[string]string{
	"EmailVerification": "Error: verification email not provided",
	"EmailPayment":      "Error: payment email not provided",
	"Amount":            "Error: amount must be a number greater than 0",
	"Currency":          "Error: currency not provided",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		return validAmount(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register positive_amount: %v", err))
	}
	return v
}

// validAmount accepts finite numbers greater than zero, at most 10^12 and with no
// more than maxAmountScale decimal places.
func validAmount(s string) bool {
	if s == "" || len(s) > maxAmountChars {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f <= 0 {
		return false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return d.IsPositive() && d.Equal(d.Truncate(maxAmountScale)) && d.LessThanOrEqual(maxAmount)
}

// -----------------------------------------------------------------------------
// GET /
// -----------------------------------------------------------------------------
func (c *CollectionController) Home(w http.ResponseWriter, r *http.Request) {
	c.hosts.ObserveRequest(r)
	c.logger.WithField("host", r.Host).Info("serving home page")
	c.writeHTML(w, http.StatusOK, c.pages.Home)
}

// -----------------------------------------------------------------------------
// POST /start
// -----------------------------------------------------------------------------
func (c *CollectionController) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		c.logger.WithError(err).Warn("could not parse submission")
		respondText(w, http.StatusBadRequest, "Error processing request")
		return
	}

	currency := r.PostForm.Get("currency")
	if currency == "" {
		currency = c.defaultCurrency
	}
	form := startForm{
		EmailVerification: strings.TrimSpace(r.PostForm.Get("emailVerification")),
		EmailPayment:      strings.TrimSpace(r.PostForm.Get("emailPayment")),
		Amount:            strings.TrimSpace(r.PostForm.Get("amount")),
		Currency:          strings.TrimSpace(currency),
	}

	if err := validate.Struct(form); err != nil {
		msg := validationMessage(err)
		c.logger.WithError(err).Warn("invalid submission")
		respondText(w, http.StatusBadRequest, msg)
		return
	}

	conf, err := c.collector.Start(r.Context(), collection.StartRequest{
		VerificationEmail: form.EmailVerification,
		PaymentEmail:      form.EmailPayment,
		Amount:            decimal.RequireFromString(form.Amount),
		Currency:          form.Currency,
	})
	if err != nil {
		c.renderOutcome(w, collection.StartFailure(err))
		return
	}

	c.writeHTML(w, http.StatusOK, func(w io.Writer) error { return c.pages.Confirmation(w, conf) })
}

// -----------------------------------------------------------------------------
// GET /callback
// -----------------------------------------------------------------------------
func (c *CollectionController) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := collection.CallbackParams{
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		ReportID:         q.Get("account_verification_report_id"),
		Code:             q.Get("code"),
		PaymentRequestID: q.Get("payment_request_id"),
		SessionID:        q.Get("session"),
	}

	c.logger.WithFields(logrus.Fields{
		"session":     params.SessionID,
		"has_error":   params.Error != "",
		"has_report":  params.ReportID != "",
		"has_code":    params.Code != "",
		"has_payment": params.PaymentRequestID != "",
	}).Info("callback received")

	c.renderOutcome(w, c.collector.Resume(r.Context(), params))
}

func (c *CollectionController) renderOutcome(w http.ResponseWriter, o collection.Outcome) {
	status := o.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	c.writeHTML(w, status, func(w io.Writer) error { return c.pages.Outcome(w, o) })
}

// writeHTML renders into a buffer first so a template failure never leaves a
// half-written response.
func (c *CollectionController) writeHTML(w http.ResponseWriter, status int, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		c.logger.WithError(err).Error("render failed")
		respondText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].StructField()]; ok {
			return msg
		}
	}
	return "Error: invalid submission"
}

func respondText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
