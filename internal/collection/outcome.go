package collection

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/berniyo/paycollect/internal/tink"
)

// StatusKind classifies an Outcome.
type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
	StatusPending StatusKind = "pending"
)

const (
	iconSuccess = "✓"
	iconError   = "❌"
	iconWarning = "⚠️"
	iconPending = "⏳"
)

// InfoRow is one label/value line of an Outcome.
type InfoRow struct {
	Label string
	Value string
}

// Outcome is the single result of a workflow step, ready for rendering.
type Outcome struct {
	Icon        string
	Title       string
	Subtitle    string
	Status      StatusKind
	StatusLabel string
	Rows        []InfoRow
	Message     string
	ErrorDetail string
	HTTPStatus  int
}

// FormatAmount renders an amount with two fixed decimals. Display only.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func errorOutcome(icon, title, subtitle, detail, message string, status int) Outcome {
	return Outcome{
		Icon:        icon,
		Title:       title,
		Subtitle:    subtitle,
		Status:      StatusError,
		StatusLabel: "Error",
		ErrorDetail: detail,
		Message:     message,
		HTTPStatus:  status,
	}
}

func providerErrorOutcome(code, description string) Outcome {
	detail := "Code: " + code
	if description != "" {
		detail += " (" + description + ")"
	}
	return errorOutcome(iconError, "Flow error", "Something went wrong", detail, "Cancelled", http.StatusOK)
}

func invalidParametersOutcome() Outcome {
	return errorOutcome(iconWarning, "Invalid parameters", "Incomplete request",
		"Missing parameters", "Please try again", http.StatusBadRequest)
}

func sessionExpiredOutcome() Outcome {
	return errorOutcome(iconError, "Session expired", "Data not found",
		"Session expired", "Please start again", http.StatusInternalServerError)
}

func missingAccountOutcome() Outcome {
	return errorOutcome(iconError, "IBAN not found", "Incomplete verification",
		"No IBAN", "Check your details", http.StatusInternalServerError)
}

// step names a fallible external call and how its failure is presented.
type step struct {
	name     string
	title    string
	subtitle string
	message  string
}

var (
	stepUserToken = step{"user_token", "Authentication error", "Could not obtain user token", "Server error"}
	stepAppToken  = step{"client_token", "Authentication error", "Could not connect to the payment provider", "Server error"}
	stepReport    = step{"verification_report", "Verification error", "Could not retrieve verification data", "Please try again"}
	stepCreate    = step{"create_payment_request", "Payment error", "Could not create the payment request", "Please try again"}
	stepPayToken  = step{"payment_token", "Error", "Could not retrieve payment details", "Please try again"}
	stepDetail    = step{"payment_detail", "Error", "Could not retrieve payment details", "Please try again"}
)

func stepFailureOutcome(s step, err error) Outcome {
	return errorOutcome(iconError, s.title, s.subtitle, err.Error(), s.message, http.StatusInternalServerError)
}

// StartFailure presents a failed submission after validation passed.
func StartFailure(err error) Outcome {
	return errorOutcome(iconError, "Email not sent", "Could not deliver the verification email",
		err.Error(), "Please try again", http.StatusInternalServerError)
}

func verifiedOutcome(acct account, amount decimal.Decimal, currency, paymentRequestID, paymentEmail string) Outcome {
	return Outcome{
		Icon:        iconSuccess,
		Title:       "Account verified",
		Subtitle:    "Ready to pay",
		Status:      StatusSuccess,
		StatusLabel: iconSuccess + " OK",
		Rows: []InfoRow{
			{Label: "IBAN", Value: acct.IBAN},
			{Label: "Holder", Value: acct.Holder},
			{Label: "Amount to receive", Value: FormatAmount(amount) + " " + currency},
			{Label: "Payment ID", Value: paymentRequestID},
		},
		Message:    fmt.Sprintf("Email sent to %s. Check your inbox.", paymentEmail),
		HTTPStatus: http.StatusOK,
	}
}

// paymentStatusOutcome classifies a payment detail as completed or pending.
func paymentStatusOutcome(paymentRequestID string, detail *tink.PaymentDetail) Outcome {
	status := strings.TrimSpace(detail.Status)
	if status == "" {
		status = "UNKNOWN"
	}

	amount := "N/A"
	if detail.Amount.Valid {
		amount = FormatAmount(detail.Amount.Decimal)
	}
	currency := detail.Currency
	if currency == "" {
		currency = "N/A"
	}

	out := Outcome{
		Icon:        iconPending,
		Title:       "Payment in progress",
		Subtitle:    "Status: " + status,
		Status:      StatusPending,
		StatusLabel: iconPending + " " + status,
		Rows: []InfoRow{
			{Label: "Transfer amount", Value: amount + " " + currency},
			{Label: "Payment ID", Value: paymentRequestID},
		},
		Message:    "Payment " + status + ". Your request was processed.",
		HTTPStatus: http.StatusOK,
	}
	if strings.EqualFold(status, "COMPLETED") {
		out.Icon = iconSuccess
		out.Title = "Payment completed"
		out.Status = StatusSuccess
		out.StatusLabel = iconSuccess + " " + status
	}
	return out
}
