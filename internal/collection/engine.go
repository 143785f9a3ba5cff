package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/berniyo/paycollect/internal/logging"
	"github.com/berniyo/paycollect/internal/notify"
	"github.com/berniyo/paycollect/internal/sessions"
	"github.com/berniyo/paycollect/internal/tink"
)

const (
	verificationSubject = "Verify your account to receive the payment"
	paymentSubject      = "Complete your pending payment"
	defaultHolder       = "Account holder"
)

// ErrMissingAccountData marks a verification report without a usable IBAN.
var ErrMissingAccountData = errors.New("verification report has no IBAN")

// NotificationError wraps an email delivery failure.
type NotificationError struct {
	Recipient string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Recipient, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// API is the subset of the open-banking client used by the engine.
type API interface {
	FetchClientToken(ctx context.Context) (tink.Credential, error)
	FetchUserToken(ctx context.Context, code string) (tink.Credential, error)
	FetchVerificationReport(ctx context.Context, cred tink.Credential, reportID string) (*tink.VerificationReport, error)
	CreatePaymentRequest(ctx context.Context, cred tink.Credential, req tink.PaymentRequest) (string, error)
	FetchPaymentDetail(ctx context.Context, cred tink.Credential, paymentRequestID string) (*tink.PaymentDetail, error)
}

// Notifier delivers email.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// VerificationEmail is the data of the first email, sent to the payer's verification address.
type VerificationEmail struct {
	Link     string
	Amount   string
	Currency string
}

// PaymentEmail is the data of the second email, sent once the account is verified.
type PaymentEmail struct {
	Holder   string
	IBAN     string
	Link     string
	Amount   string
	Currency string
}

// EmailComposer renders email bodies.
type EmailComposer interface {
	VerificationEmail(data VerificationEmail) (string, error)
	PaymentEmail(data PaymentEmail) (string, error)
}

// StartRequest is a validated payment-collection submission.
type StartRequest struct {
	VerificationEmail string
	PaymentEmail      string
	Amount            decimal.Decimal
	Currency          string
}

// Confirmation reports a started collection.
type Confirmation struct {
	Session         sessions.Session
	VerificationURL string
}

// CallbackParams are the query parameters of a hosted-flow redirect.
type CallbackParams struct {
	Error            string
	ErrorDescription string
	ReportID         string
	Code             string
	PaymentRequestID string
	SessionID        string
}

// Engine drives a payment collection across its redirects.
type Engine struct {
	api      API
	store    sessions.Store
	notifier Notifier
	composer EmailComposer
	links    *Links

	fromName    string
	fromAddress string
	logger      logrus.FieldLogger

	syncDelivery bool
	inflight     sync.WaitGroup
}

// Option customizes the engine.
type Option func(*Engine)

// WithSender sets the From identity of outgoing email.
func WithSender(name, address string) Option {
	return func(e *Engine) {
		e.fromName = name
		e.fromAddress = address
	}
}

// WithLogger lets callers supply a custom logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSyncDelivery sends the payment email before Resume returns. Use it where
// the process may be frozen once the response is written, such as Lambda.
func WithSyncDelivery() Option {
	return func(e *Engine) {
		e.syncDelivery = true
	}
}

// NewEngine builds an Engine that emails from an empty sender unless WithSender is given.
func NewEngine(api API, store sessions.Store, notifier Notifier, composer EmailComposer, links *Links, opts ...Option) *Engine {
	e := &Engine{
		api:      api,
		store:    store,
		notifier: notifier,
		composer: composer,
		links:    links,
		logger:   logging.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a session and emails the verification link. A delivery failure
// is returned as a *NotificationError; the session is kept.
func (e *Engine) Start(ctx context.Context, req StartRequest) (Confirmation, error) {
	sess, err := e.store.Create(ctx, sessions.Record{
		VerificationEmail: req.VerificationEmail,
		PaymentEmail:      req.PaymentEmail,
		Amount:            req.Amount,
		Currency:          req.Currency,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("create session: %w", err)
	}

	log := e.logger.WithField("session", sess.ID)
	log.WithFields(logrus.Fields{"amount": FormatAmount(sess.Amount), "currency": sess.Currency}).Info("session created")

	link := e.links.VerificationURL(sess.ID)
	body, err := e.composer.VerificationEmail(VerificationEmail{
		Link:     link,
		Amount:   FormatAmount(sess.Amount),
		Currency: sess.Currency,
	})
	if err != nil {
		return Confirmation{Session: sess}, fmt.Errorf("compose verification email: %w", err)
	}

	if err := e.notifier.Send(ctx, e.message(sess.VerificationEmail, verificationSubject, body)); err != nil {
		log.WithError(err).Error("verification email failed")
		return Confirmation{Session: sess}, &NotificationError{Recipient: sess.VerificationEmail, Err: err}
	}

	log.Info("verification email sent")
	return Confirmation{Session: sess, VerificationURL: link}, nil
}

// Resume handles a redirect back from the hosted flow. An error code wins over a
// report id, which wins over a payment request id.
func (e *Engine) Resume(ctx context.Context, p CallbackParams) Outcome {
	switch {
	case p.Error != "":
		e.logger.WithFields(logrus.Fields{"error": p.Error, "description": p.ErrorDescription}).Warn("hosted flow returned an error")
		return providerErrorOutcome(p.Error, p.ErrorDescription)
	case p.ReportID != "":
		return e.completeVerification(ctx, p)
	case p.PaymentRequestID != "":
		return e.paymentStatus(ctx, p.PaymentRequestID)
	default:
		e.logger.Warn("callback without usable parameters")
		return invalidParametersOutcome()
	}
}

// Wait blocks until every background payment email has been attempted.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) completeVerification(ctx context.Context, p CallbackParams) Outcome {
	log := e.logger.WithFields(logrus.Fields{"session": p.SessionID, "report_id": p.ReportID})

	sess, err := e.store.Get(ctx, p.SessionID)
	if err != nil {
		log.WithError(err).Warn("session lookup failed")
		return sessionExpiredOutcome()
	}

	var cred tink.Credential
	if p.Code != "" {
		log.WithField("code", truncate(p.Code, 8)).Info("exchanging authorization code")
		if cred, err = e.api.FetchUserToken(ctx, p.Code); err != nil {
			return e.fail(log, stepUserToken, err)
		}
	} else {
		log.Info("no authorization code, using client credentials")
		if cred, err = e.api.FetchClientToken(ctx); err != nil {
			return e.fail(log, stepAppToken, err)
		}
	}

	report, err := e.api.FetchVerificationReport(ctx, cred, p.ReportID)
	if err != nil {
		return e.fail(log, stepReport, err)
	}

	acct, err := primaryAccount(report)
	if err != nil {
		log.WithError(err).Error("verification report unusable")
		return missingAccountOutcome()
	}
	log = log.WithField("market", acct.Market)
	log.Info("account data extracted")

	// A user-scoped token cannot create payment requests.
	if cred.Grant != tink.GrantClientCredentials {
		if cred, err = e.api.FetchClientToken(ctx); err != nil {
			return e.fail(log, stepAppToken, err)
		}
	}

	paymentRequestID, err := e.api.CreatePaymentRequest(ctx, cred, tink.PaymentRequest{
		IBAN:       acct.IBAN,
		HolderName: acct.Holder,
		Market:     acct.Market,
		Amount:     sess.Amount,
		Currency:   sess.Currency,
	})
	if err != nil {
		return e.fail(log, stepCreate, err)
	}
	log = log.WithField("payment_request_id", paymentRequestID)
	log.Info("payment request created")

	e.sendPaymentEmail(ctx, log, sess, acct, paymentRequestID)

	return verifiedOutcome(acct, sess.Amount, sess.Currency, paymentRequestID, sess.PaymentEmail)
}

func (e *Engine) paymentStatus(ctx context.Context, paymentRequestID string) Outcome {
	log := e.logger.WithField("payment_request_id", paymentRequestID)

	cred, err := e.api.FetchClientToken(ctx)
	if err != nil {
		return e.fail(log, stepPayToken, err)
	}

	detail, err := e.api.FetchPaymentDetail(ctx, cred, paymentRequestID)
	if err != nil {
		return e.fail(log, stepDetail, err)
	}

	out := paymentStatusOutcome(paymentRequestID, detail)
	log.WithField("status", detail.Status).Info("payment status reported")
	return out
}

// sendPaymentEmail dispatches the payment link in the background. Failures are
// only logged: the payer has already verified the account.
func (e *Engine) sendPaymentEmail(ctx context.Context, log logrus.FieldLogger, sess sessions.Session, acct account, paymentRequestID string) {
	body, err := e.composer.PaymentEmail(PaymentEmail{
		Holder:   acct.Holder,
		IBAN:     acct.IBAN,
		Link:     e.links.PaymentURL(paymentRequestID, acct.Market),
		Amount:   FormatAmount(sess.Amount),
		Currency: sess.Currency,
	})
	if err != nil {
		log.WithError(err).Error("compose payment email")
		return
	}
	msg := e.message(sess.PaymentEmail, paymentSubject, body)

	deliver := func() {
		if err := e.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
			log.WithError(&NotificationError{Recipient: msg.To, Err: err}).Error("payment email failed")
			return
		}
		log.Info("payment email sent")
	}

	if e.syncDelivery {
		deliver()
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		deliver()
	}()
}

func (e *Engine) fail(log logrus.FieldLogger, s step, err error) Outcome {
	log.WithError(err).WithField("step", s.name).Error("collection step failed")
	return stepFailureOutcome(s, err)
}

func (e *Engine) message(to, subject, body string) notify.Message {
	return notify.Message{
		FromName:    e.fromName,
		FromAddress: e.fromAddress,
		To:          to,
		Subject:     subject,
		HTML:        body,
	}
}

// account is the bank account a payment request is created against.
type account struct {
	IBAN   string
	Holder string
	Market string
}

// primaryAccount takes the first provider's first account. The market is the
// IBAN country prefix.
func primaryAccount(report *tink.VerificationReport) (account, error) {
	if report == nil || len(report.UserDataByProvider) == 0 || len(report.UserDataByProvider[0].Accounts) == 0 {
		return account{}, ErrMissingAccountData
	}

	acct := report.UserDataByProvider[0].Accounts[0]
	iban := strings.TrimSpace(acct.IBAN)
	if len(iban) < 2 || !isASCIILetter(iban[0]) || !isASCIILetter(iban[1]) {
		return account{}, ErrMissingAccountData
	}

	holder := acct.HolderName
	if holder == "" {
		holder = acct.Name
	}
	if holder == "" {
		holder = defaultHolder
	}

	return account{IBAN: iban, Holder: holder, Market: iban[:2]}, nil
}

func isASCIILetter(b byte) bool {
	return ('A' <= b && b <= 'Z') || ('a' <= b && b <= 'z')
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
