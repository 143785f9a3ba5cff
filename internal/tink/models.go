package tink

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Grant records which OAuth exchange produced a credential.
type Grant string

const (
	GrantClientCredentials Grant = "client_credentials"
	GrantAuthorizationCode Grant = "authorization_code"
)

// Credential is a bearer token plus the grant that issued it.
type Credential struct {
	AccessToken string
	Grant       Grant
}

// tokenResponse captures the payload returned by the OAuth token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// VerificationReport is the account verification result for one payer.
type VerificationReport struct {
	ID                 string         `json:"id"`
	UserDataByProvider []ProviderData `json:"userDataByProvider"`
}

// ProviderData groups the accounts a payer linked through one provider.
type ProviderData struct {
	ProviderName string    `json:"providerName"`
	Accounts     []Account `json:"accounts"`
}

// Account is a verified bank account.
type Account struct {
	IBAN         string `json:"iban"`
	HolderName   string `json:"holderName,omitempty"`
	Name         string `json:"name,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// PaymentRequest carries the fields needed to create a payment intent.
type PaymentRequest struct {
	IBAN       string
	HolderName string
	Market     string
	Amount     decimal.Decimal
	Currency   string
}

// PaymentDetail is a payment request as reported by the API.
type PaymentDetail struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	Amount        decimal.NullDecimal `json:"amount"`
	Currency      string              `json:"currency"`
	Market        string              `json:"market,omitempty"`
	RecipientName string              `json:"recipientName,omitempty"`
	Recipient     *Recipient          `json:"recipient,omitempty"`
}

// Recipient identifies the account receiving a payment.
type Recipient struct {
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
}

type remittanceInformation struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type createPaymentBody struct {
	Recipient             Recipient             `json:"recipient"`
	Amount                json.Number           `json:"amount"`
	Currency              string                `json:"currency"`
	Market                string                `json:"market"`
	RecipientName         string                `json:"recipientName"`
	SourceMessage         string                `json:"sourceMessage"`
	RemittanceInformation remittanceInformation `json:"remittanceInformation"`
	PaymentScheme         string                `json:"paymentScheme"`
}

type createPaymentResponse struct {
	ID string `json:"id"`
}
