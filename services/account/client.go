// Package account talks to the external account/credential service that owns
// credit limits. Redemption exchanges a voucher for a credit-limit increase on
// one of its accounts.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voucherledger/pkg/config"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("account.client",
	fx.Provide(NewHTTPClient),
)

// ErrInvalidCredential reports a credential the account service rejected.
var ErrInvalidCredential = errors.New("invalid account credential")

// Account is the validated identity behind a redemption credential.
type Account struct {
	ID          string          `json:"account_id"`
	Name        string          `json:"account_name"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// Client is the engine's view of the account service.
type Client interface {
	// ValidateCredential resolves a presented credential to an account.
	// Returns ErrInvalidCredential when the service rejects it.
	ValidateCredential(ctx context.Context, token string) (*Account, error)

	// ApplyCreditIncrease raises the account's credit limit by delta and
	// returns the new limit. The call has at-most-once semantics; callers
	// must not retry it blindly.
	ApplyCreditIncrease(ctx context.Context, accountID string, delta decimal.Decimal) (decimal.Decimal, error)
}

type HTTPClient struct {
	hc           *http.Client
	baseURL      string
	serviceToken string
	log          *zap.Logger
}

type Params struct {
	fx.In
	Config *config.Config
	Logger *zap.Logger
}

func NewHTTPClient(p Params) Client {
	timeout := p.Config.Account.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		hc:           &http.Client{Timeout: timeout},
		baseURL:      p.Config.Account.BaseURL,
		serviceToken: p.Config.Account.ServiceToken,
		log:          p.Logger.Named("account"),
	}
}

func (c *HTTPClient) ValidateCredential(ctx context.Context, token string) (*Account, error) {
	var resp struct {
		Valid   bool    `json:"valid"`
		Account Account `json:"account"`
	}

	status, err := c.post(ctx, "/internal/v1/credentials/validate", map[string]string{"token": token}, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || !resp.Valid {
		return nil, ErrInvalidCredential
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("account service returned status %d", status)
	}

	return &resp.Account, nil
}

func (c *HTTPClient) ApplyCreditIncrease(ctx context.Context, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var resp struct {
		NewCreditLimit decimal.Decimal `json:"new_credit_limit"`
	}

	payload := map[string]string{
		"account_id": accountID,
		"delta":      delta.String(),
	}

	status, err := c.post(ctx, "/internal/v1/accounts/credit-increase", payload, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	if status != http.StatusOK {
		return decimal.Zero, fmt.Errorf("account service returned status %d", status)
	}

	return resp.NewCreditLimit, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	t1 := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		c.log.Error("account service request failed", zap.String("path", path), zap.Error(err))
		return 0, err
	}
	defer res.Body.Close()

	c.log.Debug("account service request completed",
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", time.Since(t1)),
	)

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, err
	}

	if res.StatusCode == http.StatusOK || res.StatusCode == http.StatusUnauthorized {
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return res.StatusCode, fmt.Errorf("decode account service response: %w", err)
			}
		}
	}

	return res.StatusCode, nil
}
