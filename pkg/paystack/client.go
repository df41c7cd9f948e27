package paystack

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

	"github.com/kasuwa-ng/marketplace-backend/pkg/config"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	"github.com/kasuwa-ng/marketplace-backend/pkg/logger"
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

// Client exposes Paystack primitives with centralized auth, logging, and error mapping.
type Client struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	logger     *logger.Logger
}

// NewClient initializes the Paystack wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		secretKey:  secretKey,
		baseURL:    baseURL,
		logger:     logg,
	}

	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// VerifyTransaction confirms the gateway status of a charge by its reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Charge, error) {
	c.log(ctx, "request", "verify_transaction", map[string]any{"reference": reference})

	var charge Charge
	err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &charge, "verify transaction")
	if err != nil {
		c.log(ctx, "error", "verify_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "verify_transaction", map[string]any{
		"reference": charge.Reference,
		"status":    charge.Status,
	})
	return &charge, nil
}

// CreateTransferRecipient registers a bank account as a payout destination.
func (c *Client) CreateTransferRecipient(ctx context.Context, params TransferRecipientParams) (*TransferRecipient, error) {
	c.log(ctx, "request", "create_transfer_recipient", map[string]any{
		"bank_code":      params.BankCode,
		"account_number": params.AccountNumber,
	})

	body := map[string]any{
		"type":           "nuban",
		"name":           params.Name,
		"account_number": params.AccountNumber,
		"bank_code":      params.BankCode,
		"currency":       params.Currency,
	}
	var recipient TransferRecipient
	err := c.do(ctx, http.MethodPost, "/transferrecipient", body, &recipient, "create transfer recipient")
	if err != nil {
		c.log(ctx, "error", "create_transfer_recipient", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_transfer_recipient", map[string]any{
		"recipient_code": recipient.RecipientCode,
	})
	return &recipient, nil
}

// InitiateTransfer starts a payout to a previously registered recipient.
// Amounts are in kobo.
func (c *Client) InitiateTransfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	c.log(ctx, "request", "initiate_transfer", map[string]any{
		"reference": params.Reference,
		"amount":    params.AmountKobo,
	})

	body := map[string]any{
		"source":    "balance",
		"amount":    params.AmountKobo,
		"recipient": params.RecipientCode,
		"reference": params.Reference,
		"reason":    params.Reason,
	}
	var transfer Transfer
	err := c.do(ctx, http.MethodPost, "/transfer", body, &transfer, "initiate transfer")
	if err != nil {
		c.log(ctx, "error", "initiate_transfer", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "initiate_transfer", map[string]any{
		"transfer_code": transfer.TransferCode,
		"status":        transfer.Status,
	})
	return &transfer, nil
}

// CreateRefund asks the gateway to return funds for a settled charge.
// A zero amount refunds the full charge.
func (c *Client) CreateRefund(ctx context.Context, params RefundParams) (*Refund, error) {
	c.log(ctx, "request", "create_refund", map[string]any{
		"transaction": params.TransactionReference,
		"amount":      params.AmountKobo,
	})

	body := map[string]any{"transaction": params.TransactionReference}
	if params.AmountKobo > 0 {
		body["amount"] = params.AmountKobo
	}
	var refund Refund
	err := c.do(ctx, http.MethodPost, "/refund", body, &refund, "create refund")
	if err != nil {
		c.log(ctx, "error", "create_refund", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_refund", map[string]any{"status": refund.Status})
	return &refund, nil
}

// ListBanks returns the banks supported for the given currency.
func (c *Client) ListBanks(ctx context.Context, currency string) ([]Bank, error) {
	c.log(ctx, "request", "list_banks", map[string]any{"currency": currency})

	path := "/bank"
	if currency != "" {
		path += "?currency=" + url.QueryEscape(currency)
	}
	var banks []Bank
	err := c.do(ctx, http.MethodGet, path, nil, &banks, "list banks")
	if err != nil {
		c.log(ctx, "error", "list_banks", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "list_banks", map[string]any{"count": len(banks)})
	return banks, nil
}

// ResolveAccount looks up the account holder name behind an account number.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	c.log(ctx, "request", "resolve_account", map[string]any{
		"account_number": accountNumber,
		"bank_code":      bankCode,
	})

	query := url.Values{}
	query.Set("account_number", accountNumber)
	query.Set("bank_code", bankCode)
	var account ResolvedAccount
	err := c.do(ctx, http.MethodGet, "/bank/resolve?"+query.Encode(), nil, &account, "resolve account")
	if err != nil {
		c.log(ctx, "error", "resolve_account", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "resolve_account", map[string]any{
		"account_number": account.AccountNumber,
	})
	return &account, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any, op string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("paystack %s failed", op))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("paystack %s failed", op))
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.mapTransportError(err, op)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, err, fmt.Sprintf("paystack %s failed", op))
	}

	var envelope envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, err, fmt.Sprintf("paystack %s returned malformed response", op))
		}
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		return c.mapAPIError(resp.StatusCode, envelope.Message, op)
	}

	if dest != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, err, fmt.Sprintf("paystack %s returned malformed response", op))
		}
	}
	return nil
}

func (c *Client) mapTransportError(err error, op string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, fmt.Sprintf("paystack %s timed out", op))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, fmt.Sprintf("paystack %s timed out", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, err, fmt.Sprintf("paystack %s failed", op))
}

func (c *Client) mapAPIError(status int, message, op string) error {
	if message == "" {
		message = "request rejected"
	}
	cause := fmt.Errorf("paystack: %s", message)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, cause, fmt.Sprintf("paystack %s unauthorized", op))
	case status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, fmt.Sprintf("paystack %s failed", op))
	case status == http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, cause, fmt.Sprintf("paystack %s rate limited", op))
	case status >= 400 && status < 500:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, fmt.Sprintf("paystack %s rejected", op))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeGatewayFailure, cause, fmt.Sprintf("paystack %s failed", op))
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paystack %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paystack %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"account_number", "secret", "token", "authorization", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
