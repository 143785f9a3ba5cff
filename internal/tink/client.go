package tink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/berniyo/paycollect/internal/logging"
)

const (
	tokenPath          = "/api/v1/oauth/token"
	reportPath         = "/api/v1/account-verification-reports/"
	paymentRequestPath = "/api/v1/payments/requests"

	defaultPaymentScheme = "SEPA_CREDIT_TRANSFER"
	maxErrorBody         = 4096
)

// APIError surfaces non-successful responses and transport failures.
// StatusCode is zero when no response was received.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("tink api error: %s", e.Message)
	}
	return fmt.Sprintf("tink api error: status=%d body=%s", e.StatusCode, e.Message)
}

// ParseError marks a successful response whose body could not be decoded.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Client talks to the open-banking API. It keeps no state between calls.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	clientSecret  string
	paymentScheme string
	logger        logrus.FieldLogger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPaymentScheme overrides the scheme sent with new payment requests.
func WithPaymentScheme(scheme string) Option {
	return func(c *Client) {
		if scheme = strings.TrimSpace(scheme); scheme != "" {
			c.paymentScheme = scheme
		}
	}
}

// WithLogger lets callers supply a custom logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL, clientID, clientSecret string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("client id and secret are required")
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		clientID:      clientID,
		clientSecret:  clientSecret,
		paymentScheme: defaultPaymentScheme,
		logger:        logging.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchClientToken obtains an application-scoped credential.
func (c *Client) FetchClientToken(ctx context.Context) (Credential, error) {
	form := url.Values{
		"grant_type":    {string(GrantClientCredentials)},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	return c.token(ctx, GrantClientCredentials, form)
}

// FetchUserToken exchanges an authorization code for a user-scoped credential.
func (c *Client) FetchUserToken(ctx context.Context, code string) (Credential, error) {
	if code == "" {
		return Credential{}, errors.New("authorization code is required")
	}
	form := url.Values{
		"grant_type":    {string(GrantAuthorizationCode)},
		"code":          {code},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	return c.token(ctx, GrantAuthorizationCode, form)
}

func (c *Client) token(ctx context.Context, grant Grant, form url.Values) (Credential, error) {
	body, err := c.do(ctx, http.MethodPost, tokenPath, "", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), http.StatusOK)
	if err != nil {
		return Credential{}, err
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return Credential{}, &ParseError{Op: "token", Err: err}
	}
	if tok.AccessToken == "" {
		return Credential{}, &ParseError{Op: "token", Err: errors.New("missing access_token")}
	}

	return Credential{AccessToken: tok.AccessToken, Grant: grant}, nil
}

// FetchVerificationReport loads an account verification report.
func (c *Client) FetchVerificationReport(ctx context.Context, cred Credential, reportID string) (*VerificationReport, error) {
	if reportID == "" {
		return nil, errors.New("report id is required")
	}

	body, err := c.do(ctx, http.MethodGet, reportPath+url.PathEscape(reportID), cred.AccessToken, "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var report VerificationReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, &ParseError{Op: "verification report", Err: err}
	}
	return &report, nil
}

// CreatePaymentRequest registers a payment intent and returns its identifier.
func (c *Client) CreatePaymentRequest(ctx context.Context, cred Credential, req PaymentRequest) (string, error) {
	payload := createPaymentBody{
		Recipient:     Recipient{AccountNumber: req.IBAN, AccountType: "iban"},
		Amount:        json.Number(req.Amount.String()),
		Currency:      req.Currency,
		Market:        req.Market,
		RecipientName: req.HolderName,
		SourceMessage: "Payment confirmation",
		RemittanceInformation: remittanceInformation{
			Type:  "UNSTRUCTURED",
			Value: "Payment",
		},
		PaymentScheme: c.paymentScheme,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode payment request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, paymentRequestPath, cred.AccessToken, "application/json", buf,
		http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", err
	}

	var created createPaymentResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", &ParseError{Op: "payment request", Err: err}
	}
	if created.ID == "" {
		return "", &ParseError{Op: "payment request", Err: errors.New("missing id")}
	}
	return created.ID, nil
}

// FetchPaymentDetail loads a payment request by identifier.
func (c *Client) FetchPaymentDetail(ctx context.Context, cred Credential, paymentRequestID string) (*PaymentDetail, error) {
	if paymentRequestID == "" {
		return nil, errors.New("payment request id is required")
	}

	path := paymentRequestPath + "/" + url.PathEscape(paymentRequestID)
	body, err := c.do(ctx, http.MethodGet, path, cred.AccessToken, "", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var detail PaymentDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, &ParseError{Op: "payment detail", Err: err}
	}
	return &detail, nil
}

// do performs a single request attempt and returns the body when the status is one of accept.
func (c *Client) do(ctx context.Context, method, path, token, contentType string, payload io.Reader, accept ...int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.logger.WithFields(logrus.Fields{"method": method, "path": path})
	log.Debug("tink request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("tink request failed")
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	log = log.WithField("status", resp.StatusCode)
	for _, code := range accept {
		if resp.StatusCode == code {
			log.Debug("tink response")
			return data, nil
		}
	}

	log.Warn("tink responded with unexpected status")
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
}
