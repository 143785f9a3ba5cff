package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Record is the data submitted when a payee requests a payment.
type Record struct {
	VerificationEmail string
	PaymentEmail      string
	Amount            decimal.Decimal
	Currency          string
}

// Session is a stored Record with its identifier.
type Session struct {
	ID string
	Record
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store correlates the asynchronous redirects of one payment collection.
type Store interface {
	Create(ctx context.Context, rec Record) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
}
