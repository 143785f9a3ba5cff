package collection

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// LinkConfig describes how hosted-flow links are built.
type LinkConfig struct {
	BaseURL       string
	ClientID      string
	Locale        string
	InputProvider string
	DefaultMarket string

	// PublicBaseURL pins the callback base. When empty the base follows ObserveRequest,
	// starting from FallbackBaseURL.
	PublicBaseURL   string
	FallbackBaseURL string
}

// Links builds the verification and payment URLs that send the payer to the
// hosted flow and back to /callback.
type Links struct {
	cfg LinkConfig

	mu       sync.RWMutex
	callback string
	pinned   bool
}

// NewLinks builds a link builder whose callback starts at PublicBaseURL, or
// FallbackBaseURL until a request is observed.
func NewLinks(cfg LinkConfig) *Links {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	l := &Links{cfg: cfg}

	base := cfg.FallbackBaseURL
	if cfg.PublicBaseURL != "" {
		base = cfg.PublicBaseURL
		l.pinned = true
	}
	if base == "" {
		base = "http://localhost"
	}
	l.callback = strings.TrimSuffix(base, "/") + "/callback"
	return l
}

// ObserveRequest derives the callback base from the inbound Host header unless the
// base is pinned. All links built afterwards use it.
func (l *Links) ObserveRequest(r *http.Request) {
	if l.pinned || r.Host == "" {
		return
	}

	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}

	l.mu.Lock()
	l.callback = scheme + "://" + r.Host + "/callback"
	l.mu.Unlock()
}

// CallbackURL is the redirect target registered with the hosted flow.
func (l *Links) CallbackURL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.callback
}

// VerificationURL sends the payer to account verification; the session id rides
// on the redirect target.
func (l *Links) VerificationURL(sessionID string) string {
	redirect := l.CallbackURL() + "?" + url.Values{"session": {sessionID}}.Encode()

	q := url.Values{
		"client_id":      {l.cfg.ClientID},
		"redirect_uri":   {redirect},
		"market":         {l.cfg.DefaultMarket},
		"locale":         {l.cfg.Locale},
		"input_provider": {l.cfg.InputProvider},
	}
	return l.cfg.BaseURL + "/account-check/?" + q.Encode()
}

// PaymentURL sends the payer to authorize a created payment request.
func (l *Links) PaymentURL(paymentRequestID, market string) string {
	q := url.Values{
		"client_id":          {l.cfg.ClientID},
		"redirect_uri":       {l.CallbackURL()},
		"market":             {market},
		"locale":             {l.cfg.Locale},
		"payment_request_id": {paymentRequestID},
	}
	return l.cfg.BaseURL + "/pay/?" + q.Encode()
}
