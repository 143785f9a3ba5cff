package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berniyo/paycollect/internal/collection"
	"github.com/berniyo/paycollect/internal/render"
	"github.com/berniyo/paycollect/internal/sessions"
)

type fakeCollector struct {
	startFn  func(ctx context.Context, req collection.StartRequest) (collection.Confirmation, error)
	resumeFn func(ctx context.Context, p collection.CallbackParams) collection.Outcome

	starts  []collection.StartRequest
	resumes []collection.CallbackParams
}

func (f *fakeCollector) Start(ctx context.Context, req collection.StartRequest) (collection.Confirmation, error) {
	f.starts = append(f.starts, req)
	if f.startFn == nil {
		return collection.Confirmation{Session: sessions.Session{
			ID: "sess-1",
			Record: sessions.Record{
				VerificationEmail: req.VerificationEmail,
				PaymentEmail:      req.PaymentEmail,
				Amount:            req.Amount,
				Currency:          req.Currency,
			},
		}}, nil
	}
	return f.startFn(ctx, req)
}

func (f *fakeCollector) Resume(ctx context.Context, p collection.CallbackParams) collection.Outcome {
	f.resumes = append(f.resumes, p)
	return f.resumeFn(ctx, p)
}

type hostRecorder struct {
	hosts []string
}

func (h *hostRecorder) ObserveRequest(r *http.Request) {
	h.hosts = append(h.hosts, r.Host)
}

func newController(t *testing.T, c Collector) (*CollectionController, *hostRecorder) {
	t.Helper()
	r, err := render.New("EUR")
	require.NoError(t, err)
	hosts := &hostRecorder{}
	return NewCollectionController(c, r, hosts, "EUR"), hosts
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"emailVerification": {"v@x.com"},
		"emailPayment":      {"p@x.com"},
		"amount":            {"25.5"},
		"currency":          {"EUR"},
	}
}

func TestHomeObservesHost(t *testing.T) {
	ctrl, hosts := newController(t, &fakeCollector{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "pay.example.com"
	rec := httptest.NewRecorder()
	ctrl.Home(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `action="/start"`)
	require.Equal(t, []string{"pay.example.com"}, hosts.hosts)
}

func TestStartSuccess(t *testing.T) {
	fc := &fakeCollector{}
	ctrl, _ := newController(t, fc)

	form := validForm()
	form.Set("emailVerification", "  v@x.com ")
	rec := httptest.NewRecorder()
	ctrl.Start(rec, postForm(form))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "v@x.com")
	require.Contains(t, rec.Body.String(), "25.50 EUR")

	require.Len(t, fc.starts, 1)
	got := fc.starts[0]
	require.Equal(t, "v@x.com", got.VerificationEmail)
	require.Equal(t, "p@x.com", got.PaymentEmail)
	require.Equal(t, "25.5", got.Amount.String())
	require.Equal(t, "EUR", got.Currency)
}

func TestStartDefaultsCurrency(t *testing.T) {
	fc := &fakeCollector{}
	ctrl, _ := newController(t, fc)

	form := validForm()
	form.Del("currency")
	rec := httptest.NewRecorder()
	ctrl.Start(rec, postForm(form))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fc.starts, 1)
	require.Equal(t, "EUR", fc.starts[0].Currency)
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(url.Values)
		want   string
	}{
		{"missing verification email", func(v url.Values) { v.Del("emailVerification") }, "Error: verification email not provided"},
		{"blank payment email", func(v url.Values) { v.Set("emailPayment", "   ") }, "Error: payment email not provided"},
		{"missing amount", func(v url.Values) { v.Del("amount") }, "Error: amount must be a number greater than 0"},
		{"non numeric amount", func(v url.Values) { v.Set("amount", "abc") }, "Error: amount must be a number greater than 0"},
		{"zero amount", func(v url.Values) { v.Set("amount", "0") }, "Error: amount must be a number greater than 0"},
		{"negative amount", func(v url.Values) { v.Set("amount", "-3") }, "Error: amount must be a number greater than 0"},
		{"overflowing amount", func(v url.Values) { v.Set("amount", "1e400") }, "Error: amount must be a number greater than 0"},
		{"huge exponent amount", func(v url.Values) { v.Set("amount", "1e5000000") }, "Error: amount must be a number greater than 0"},
		{"infinite amount", func(v url.Values) { v.Set("amount", "Infinity") }, "Error: amount must be a number greater than 0"},
		{"nan amount", func(v url.Values) { v.Set("amount", "NaN") }, "Error: amount must be a number greater than 0"},
		{"amount above limit", func(v url.Values) { v.Set("amount", "1000000000001") }, "Error: amount must be a number greater than 0"},
		{"amount with too many decimals", func(v url.Values) { v.Set("amount", "0.000000001") }, "Error: amount must be a number greater than 0"},
		{"whitespace currency", func(v url.Values) { v.Set("currency", "  ") }, "Error: currency not provided"},
		{"first failure wins", func(v url.Values) {
			v.Del("emailVerification")
			v.Set("amount", "0")
		}, "Error: verification email not provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCollector{}
			ctrl, _ := newController(t, fc)

			form := validForm()
			tt.mutate(form)
			rec := httptest.NewRecorder()
			ctrl.Start(rec, postForm(form))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.want, rec.Body.String())
			require.Empty(t, fc.starts)
		})
	}
}

func TestStartNotificationFailure(t *testing.T) {
	fc := &fakeCollector{
		startFn: func(ctx context.Context, req collection.StartRequest) (collection.Confirmation, error) {
			return collection.Confirmation{}, &collection.NotificationError{Recipient: req.VerificationEmail, Err: errors.New("sendgrid returned 401")}
		},
	}
	ctrl, _ := newController(t, fc)

	rec := httptest.NewRecorder()
	ctrl.Start(rec, postForm(validForm()))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Email not sent")
	require.Contains(t, rec.Body.String(), "sendgrid returned 401")
}

func TestCallbackPassesQueryAndStatus(t *testing.T) {
	fc := &fakeCollector{
		resumeFn: func(ctx context.Context, p collection.CallbackParams) collection.Outcome {
			return collection.Outcome{
				Title:      "Session expired",
				Status:     collection.StatusError,
				HTTPStatus: http.StatusInternalServerError,
			}
		},
	}
	ctrl, _ := newController(t, fc)

	req := httptest.NewRequest(http.MethodGet,
		"/callback?account_verification_report_id=R1&code=C1&session=S1&error=&payment_request_id=P1", nil)
	rec := httptest.NewRecorder()
	ctrl.Callback(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Session expired")

	require.Equal(t, []collection.CallbackParams{{
		ReportID:         "R1",
		Code:             "C1",
		PaymentRequestID: "P1",
		SessionID:        "S1",
	}}, fc.resumes)
}

func TestCallbackProviderError(t *testing.T) {
	fc := &fakeCollector{
		resumeFn: func(ctx context.Context, p collection.CallbackParams) collection.Outcome {
			require.Equal(t, "access_denied", p.Error)
			require.Equal(t, "User cancelled", p.ErrorDescription)
			return collection.Outcome{Title: "Verification error", Status: collection.StatusError, HTTPStatus: http.StatusOK}
		},
	}
	ctrl, _ := newController(t, fc)

	rec := httptest.NewRecorder()
	ctrl.Callback(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&error_description=User+cancelled", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Verification error")
}

func TestValidAmountAcceptsOrdinaryForms(t *testing.T) {
	for _, s := range []string{"25.5", "0.01", "1e3", "1000000000000", "3.14159265", "25.500000000000"} {
		require.True(t, validAmount(s), s)
	}
}
