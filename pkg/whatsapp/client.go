package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"groupcast/internal/engine"
	"groupcast/internal/errors"
	"groupcast/internal/models"
	"groupcast/pkg/constants"
)

// Client talks to a WAHA-compatible WhatsApp HTTP gateway. It implements
// engine.Transport: jobs that carry only a group name are resolved against
// the gateway's group list at send time.
type Client struct {
	baseURL     string
	apiKey      string
	sessionName string
	httpClient  *http.Client
}

// ClientOptions configures a gateway client.
type ClientOptions struct {
	BaseURL     string
	APIKey      string
	SessionName string
	Timeout     time.Duration
}

// NewClient creates a gateway client.
func NewClient(opts ClientOptions) *Client {
	if opts.SessionName == "" {
		opts.SessionName = "default"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		sessionName: opts.SessionName,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Send delivers a text message to the target group. Targets without a JID
// are resolved by name first; the resolved identity is returned for the
// job's audit record.
func (c *Client) Send(ctx context.Context, target engine.SendTarget, text string) (*engine.SendResult, error) {
	group := models.ResolvedGroup{ID: target.JID, Name: target.Name}

	if group.ID == "" {
		resolved, err := c.ResolveGroup(ctx, target.Name)
		if err != nil {
			return nil, err
		}
		group = *resolved
	}

	if _, err := c.SendText(ctx, group.ID, text); err != nil {
		return nil, err
	}
	return &engine.SendResult{Group: group}, nil
}

// SendText posts a text message to the given chat ID.
func (c *Client) SendText(ctx context.Context, chatID, text string) (*SendMessageResponse, error) {
	payload := sendTextRequest{
		ChatID:  chatID,
		Text:    text,
		Session: c.sessionName,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+APIBase+EndpointSendText, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapRetryable(err, errors.ErrCodeSendFailed, "failed to reach WhatsApp gateway")
	}
	defer resp.Body.Close()

	var result SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &result, errors.NewAPIError("sendText", resp.StatusCode, fmt.Errorf("gateway rejected send: %s", result.Error))
	}

	return &result, nil
}

// Groups fetches the gateway's group list for the configured session.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	url := fmt.Sprintf("%s%s/%s%s", c.baseURL, APIBase, c.sessionName, EndpointGroups)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapRetryable(err, errors.ErrCodeWhatsAppAPI, "failed to reach WhatsApp gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError("groups", resp.StatusCode, fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}

	var groups []Group
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		return nil, fmt.Errorf("failed to decode group list: %w", err)
	}
	return groups, nil
}

// ResolveGroup finds a group by exact name, falling back to a
// case-insensitive match when no exact match exists.
func (c *Client) ResolveGroup(ctx context.Context, name string) (*models.ResolvedGroup, error) {
	if name == "" {
		return nil, errors.New(errors.ErrCodeValidationFailed, "group name is empty")
	}

	groups, err := c.Groups(ctx)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		if g.Name == name {
			return &models.ResolvedGroup{ID: g.JID, Name: g.Name}, nil
		}
	}
	for _, g := range groups {
		if strings.EqualFold(g.Name, name) {
			return &models.ResolvedGroup{ID: g.JID, Name: g.Name}, nil
		}
	}

	return nil, errors.New(errors.ErrCodeGroupNotFound, fmt.Sprintf("no group named %q", name))
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
