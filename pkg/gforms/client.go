package gforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://forms.googleapis.com/v1"

// Client is the external form-builder capability the executor consumes.
type Client interface {
	CreateForm(ctx context.Context, title, documentTitle string) (*Form, error)
	GetForm(ctx context.Context, formID string) (*Form, error)
	BatchUpdate(ctx context.Context, formID string, requests []Request) error
}

// Credentials is the refreshable bearer pair a user grants the executor.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Config wires an HTTPClient. BaseURL is overridable for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// HTTPClient implements Client over plain REST calls. Token refresh happens
// transparently through the oauth2 transport; the possibly-refreshed token is
// readable via Token so callers can persist it.
type HTTPClient struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	baseURL     string
}

// NewHTTPClient builds a client bound to one user's credentials.
func NewHTTPClient(ctx context.Context, config Config, credentials Credentials) *HTTPClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	token := &oauth2.Token{
		AccessToken:  credentials.AccessToken,
		RefreshToken: credentials.RefreshToken,
		Expiry:       credentials.Expiry,
	}

	tokenSource := oauthConfig.TokenSource(ctx, token)

	return &HTTPClient{
		httpClient:  oauth2.NewClient(ctx, tokenSource),
		tokenSource: tokenSource,
		baseURL:     baseURL,
	}
}

// Token returns the current (possibly refreshed) token.
func (c *HTTPClient) Token() (*oauth2.Token, error) {
	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain token: %w", err)
	}

	return token, nil
}

// CreateForm creates a blank form carrying only title metadata. Items are
// appended afterwards with BatchUpdate.
func (c *HTTPClient) CreateForm(ctx context.Context, title, documentTitle string) (*Form, error) {
	if documentTitle == "" {
		documentTitle = title
	}

	body := map[string]any{
		"info": Info{Title: title, DocumentTitle: documentTitle},
	}

	var form Form

	err := c.do(ctx, http.MethodPost, c.baseURL+"/forms", body, &form)
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	return &form, nil
}

// GetForm fetches the form resource including its item list.
func (c *HTTPClient) GetForm(ctx context.Context, formID string) (*Form, error) {
	var form Form

	err := c.do(ctx, http.MethodGet, c.baseURL+"/forms/"+formID, nil, &form)
	if err != nil {
		return nil, fmt.Errorf("failed to get form %s: %w", formID, err)
	}

	return &form, nil
}

// BatchUpdate applies the operation list in order.
func (c *HTTPClient) BatchUpdate(ctx context.Context, formID string, requests []Request) error {
	if len(requests) == 0 {
		return nil
	}

	body := map[string]any{"requests": requests}

	err := c.do(ctx, http.MethodPost, c.baseURL+"/forms/"+formID+":batchUpdate", body, nil)
	if err != nil {
		return fmt.Errorf("failed to batch update form %s: %w", formID, err)
	}

	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

		return fmt.Errorf("forms API returned %d: %s", response.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(response.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

var _ Client = (*HTTPClient)(nil)
