// ABOUTME: Typed endpoint methods for the payment backend
// ABOUTME: Login, registration, merchants, projects, payments, payouts, history, ping

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Authenticate logs the user in and caches the token. It returns
// ErrUserNotFound when the backend answers 404.
func (c *Client) Authenticate(ctx context.Context, userID string) (*User, error) {
	res := c.requestWithRetry(ctx, http.MethodPost, pathLogin, map[string]string{"whatsapp": userID}, "")
	if res.OK {
		var auth authResponse
		if err := decode(res.Body, &auth); err != nil {
			return nil, err
		}
		if auth.Token != "" {
			c.setToken(userID, auth.Token)
			c.logger.Info("authenticated user", "user", userID, "name", auth.User.Nom+" "+auth.User.Prenom)
			return &auth.User, nil
		}
	}
	if res.Status == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	return nil, fmt.Errorf("authentication failed: %w", res.error())
}

// Register creates an account and caches its token under reg.Whatsapp.
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	res := c.requestWithRetry(ctx, http.MethodPost, pathRegister, reg, "")
	if !res.OK {
		return nil, res.error()
	}
	var auth authResponse
	if err := decode(res.Body, &auth); err != nil {
		return nil, err
	}
	if auth.Token == "" {
		return nil, &Error{Status: res.Status, Message: "no token in registration response"}
	}
	c.setToken(reg.Whatsapp, auth.Token)
	c.logger.Info("registered user", "user", reg.Whatsapp, "name", auth.User.Nom+" "+auth.User.Prenom)
	return &auth.User, nil
}

// CheckPhone reports whether a phone number already has an account.
func (c *Client) CheckPhone(ctx context.Context, phone string) (bool, error) {
	res := c.requestWithRetry(ctx, http.MethodPost, pathCheckPhone, map[string]string{"telephone": phone}, "")
	if !res.OK {
		return false, res.error()
	}
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := decode(res.Body, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// CheckMerchant resolves a merchant code.
func (c *Client) CheckMerchant(ctx context.Context, userID, code string) (*Merchant, error) {
	res := c.requestWithRetry(ctx, http.MethodPost, "/afrik/check-merchant", map[string]string{"merchant_code": code}, userID)
	if !res.OK {
		return nil, res.error()
	}
	var m Merchant
	if err := decode(res.Body, &m); err != nil {
		return nil, err
	}
	if m.ID == "" && m.CompanyName == "" {
		return nil, &Error{Status: res.Status, Message: "merchant not found"}
	}
	return &m, nil
}

// Projects lists the user's projects.
func (c *Client) Projects(ctx context.Context, userID string) ([]Project, error) {
	res := c.requestWithRetry(ctx, http.MethodGet, "/afrik/projects", nil, userID)
	if !res.OK {
		return nil, fmt.Errorf("fetching projects: %w", res.error())
	}
	var projects []Project
	if err := decode(res.Body, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject submits a new project with its full schedule.
func (c *Client) CreateProject(ctx context.Context, userID string, req ProjectRequest) error {
	res := c.requestWithRetry(ctx, http.MethodPost, "/afrik/projects/create", req, userID)
	if !res.OK {
		return fmt.Errorf("creating project: %w", res.error())
	}
	return nil
}

// SubmitMerchantPayment initiates a payment and returns its reference.
func (c *Client) SubmitMerchantPayment(ctx context.Context, userID string, req PaymentRequest) (string, error) {
	res := c.requestWithRetry(ctx, http.MethodPost, "/afrik/payments/merchant", req, userID)
	if !res.OK {
		return "", fmt.Errorf("submitting merchant payment: %w", res.error())
	}
	var out paymentResponse
	if err := decode(res.Body, &out); err != nil {
		return "", err
	}
	if out.Reference == "" {
		return "", &Error{Status: res.Status, Message: "no payment reference returned"}
	}
	return out.Reference, nil
}

// PaymentStatus polls the status of a payment reference.
func (c *Client) PaymentStatus(ctx context.Context, userID, reference string) (string, error) {
	res := c.requestWithRetry(ctx, http.MethodGet, "/afrik/status/"+url.PathEscape(reference), nil, userID)
	if !res.OK {
		return "", fmt.Errorf("checking payment status: %w", res.error())
	}
	var out statusResponse
	if err := decode(res.Body, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// SettlePayout forwards a confirmed payment to the merchant.
func (c *Client) SettlePayout(ctx context.Context, userID string, p Payout) error {
	res := c.requestWithRetry(ctx, http.MethodPost, "/afrik/payout/test", p, userID)
	if !res.OK {
		return fmt.Errorf("settling payout: %w", res.error())
	}
	return nil
}

// History returns the user's transactions, most recent first.
func (c *Client) History(ctx context.Context, userID string) ([]Transaction, error) {
	res := c.requestWithRetry(ctx, http.MethodGet, "/afrik/history", nil, userID)
	if !res.OK {
		return nil, fmt.Errorf("fetching history: %w", res.error())
	}
	var txs []Transaction
	if err := decode(res.Body, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// PingResult reports backend reachability.
type PingResult struct {
	Reachable bool          `json:"reachable"`
	Status    int           `json:"status,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	Error     string        `json:"error,omitempty"`
}

// Ping probes the backend with a throwaway phone check. Any HTTP answer
// below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) PingResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	u := c.baseURL + pathCheckPhone + "?telephone=00000000"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return PingResult{Error: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return PingResult{Latency: time.Since(start), Error: err.Error()}
	}
	defer resp.Body.Close()

	return PingResult{
		Reachable: resp.StatusCode < 500,
		Status:    resp.StatusCode,
		Latency:   time.Since(start),
	}
}
