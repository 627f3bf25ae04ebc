package ynab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.ynab.com/v1"
	defaultTimeout = 30 * time.Second

	budgetsPath               = "/budgets"
	accountsPath              = "/budgets/%s/accounts"
	categoriesPath            = "/budgets/%s/categories"
	payeesPath                = "/budgets/%s/payees"
	transactionsPath          = "/budgets/%s/transactions"
	scheduledTransactionsPath = "/budgets/%s/scheduled_transactions"
	monthsPath                = "/budgets/%s/months"
	monthPath                 = "/budgets/%s/months/%s"
)

// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx answer from the YNAB API.
type APIError struct {
	StatusCode int
	ID         string
	Name       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("ynab API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("ynab API error (status %d): %s - %s", e.StatusCode, e.Name, e.Detail)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// Unauthorized reports whether the access token was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// TransportError wraps a failure to obtain any response from the API.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "ynab request failed: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL         string
	AccessToken     string
	Timeout         time.Duration
	RequestsPerHour int
	HTTPClient      *http.Client
}

// Client talks to the YNAB REST API with a personal access token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	// YNAB enforces a rolling hourly quota per token; allow the whole quota
	// as burst and refill evenly.
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerHour > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerHour)/3600), opts.RequestsPerHour)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      opts.AccessToken,
		limiter:    limiter,
	}
}

func (c *Client) GetBudgets(ctx context.Context) (*BudgetsResponse, error) {
	var out BudgetsResponse
	if err := c.get(ctx, budgetsPath, url.Values{"include_accounts": {"false"}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAccounts(ctx context.Context, budgetID string, lastKnowledge *int64) (*AccountsResponse, error) {
	var out AccountsResponse
	if err := c.get(ctx, fmt.Sprintf(accountsPath, url.PathEscape(budgetID)), knowledgeParams(lastKnowledge), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCategories(ctx context.Context, budgetID string, lastKnowledge *int64) (*CategoriesResponse, error) {
	var out CategoriesResponse
	if err := c.get(ctx, fmt.Sprintf(categoriesPath, url.PathEscape(budgetID)), knowledgeParams(lastKnowledge), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPayees(ctx context.Context, budgetID string, lastKnowledge *int64) (*PayeesResponse, error) {
	var out PayeesResponse
	if err := c.get(ctx, fmt.Sprintf(payeesPath, url.PathEscape(budgetID)), knowledgeParams(lastKnowledge), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransactions(ctx context.Context, budgetID string, lastKnowledge *int64) (*TransactionsResponse, error) {
	var out TransactionsResponse
	if err := c.get(ctx, fmt.Sprintf(transactionsPath, url.PathEscape(budgetID)), knowledgeParams(lastKnowledge), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetScheduledTransactions(ctx context.Context, budgetID string, lastKnowledge *int64) (*ScheduledTransactionsResponse, error) {
	var out ScheduledTransactionsResponse
	if err := c.get(ctx, fmt.Sprintf(scheduledTransactionsPath, url.PathEscape(budgetID)), knowledgeParams(lastKnowledge), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMonths(ctx context.Context, budgetID string, lastKnowledge *int64) (*MonthsResponse, error) {
	var out MonthsResponse
	if err := c.get(ctx, fmt.Sprintf(monthsPath, url.PathEscape(budgetID)), knowledgeParams(lastKnowledge), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMonth fetches one month including its per-category figures.
func (c *Client) GetMonth(ctx context.Context, budgetID, month string) (*Month, error) {
	var out MonthResponse
	if err := c.get(ctx, fmt.Sprintf(monthPath, url.PathEscape(budgetID), url.PathEscape(month)), nil, &out); err != nil {
		return nil, err
	}
	return &out.Month, nil
}

func knowledgeParams(lastKnowledge *int64) url.Values {
	if lastKnowledge == nil {
		return nil
	}
	return url.Values{"last_knowledge_of_server": {strconv.FormatInt(*lastKnowledge, 10)}}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil {
			apiErr.ID = errResp.Error.ID
			apiErr.Name = errResp.Error.Name
			apiErr.Detail = errResp.Error.Detail
		}
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
