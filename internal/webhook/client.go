// Package webhook is the HTTP client for the phone-system webhook API used to
// send messages, place calls, manage sequence enrollment and look up numbers.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"go.uber.org/zap"
)

// Endpoint paths relative to the base URL.
const (
	EndpointSendSMS          = "sms-gateway/send"
	EndpointTwoLeggedCall    = "two-legged-call"
	EndpointSequenceEnroll   = "sequence-enroll"
	EndpointSequenceDisenrol = "sequence-disenroll"
	EndpointLookup           = "lookup"
	EndpointUsers            = "users"
	EndpointRingGroup        = "ring-group/availability"
)

const (
	defaultTimeout = 10 * time.Second
	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// Client calls the webhook API. It never retries.
type Client struct {
	baseURL         string
	apiToken        string
	fromNumber      string
	agentID         string
	userPhoneNumber string
	http            *http.Client
	log             *zap.Logger
}

// NewClient builds a client from the webhook configuration.
func NewClient(cfg config.WebhookConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Named("webhook")
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:        cfg.APIToken,
		fromNumber:      cfg.FromNumber,
		agentID:         cfg.AgentID,
		userPhoneNumber: cfg.UserPhoneNumber,
		http:            &http.Client{Timeout: timeout},
		log:             log,
	}
}

// IsPhoneNumber reports whether a contact identifier should be sent as a
// phone number rather than a platform contact id: it contains '+', or it is
// at least ten characters of digits.
func IsPhoneNumber(identifier string) bool {
	if strings.Contains(identifier, "+") {
		return true
	}
	if len(identifier) < 10 {
		return false
	}
	for _, r := range identifier {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// identify sets the identifier fields shared by enroll and disenroll.
func identify(payload map[string]interface{}, identifier string) {
	if IsPhoneNumber(identifier) {
		payload["source"] = "phone_number"
		payload["phone_number"] = identifier
		return
	}
	payload["source"] = "aloware"
	payload["id"] = identifier
}

// SendSMS sends message (and optional media) to the given number from the
// configured line.
func (c *Client) SendSMS(ctx context.Context, to, message, mediaURL string) error {
	payload := map[string]interface{}{
		"api_token": c.apiToken,
		"from":      c.fromNumber,
		"to":        to,
		"message":   message,
	}
	if mediaURL != "" {
		payload["image_url"] = mediaURL
	}
	return c.post(ctx, EndpointSendSMS, payload, nil)
}

// StartCall rings the agent device first and then bridges to the contact.
// userPhoneNumber falls back to the configured agent device when empty.
func (c *Client) StartCall(ctx context.Context, contactPhoneNumber, userPhoneNumber string) error {
	if userPhoneNumber == "" {
		userPhoneNumber = c.userPhoneNumber
	}
	payload := map[string]interface{}{
		"api_token":            c.apiToken,
		"user_id":              c.agentID,
		"user_phone_number":    userPhoneNumber,
		"contact_phone_number": contactPhoneNumber,
		"line_phone_number":    c.fromNumber,
	}
	return c.post(ctx, EndpointTwoLeggedCall, payload, nil)
}

// EnrollInSequence force-enrolls the contact identified by phone number or
// platform id into sequenceID.
func (c *Client) EnrollInSequence(ctx context.Context, contactIdentifier, sequenceID string) error {
	payload := map[string]interface{}{
		"api_token":    c.apiToken,
		"sequence_id":  sequenceID,
		"force_enroll": true,
	}
	identify(payload, contactIdentifier)
	return c.post(ctx, EndpointSequenceEnroll, payload, nil)
}

// DisenrollFromSequence removes the contact from all sequences.
func (c *Client) DisenrollFromSequence(ctx context.Context, contactIdentifier string) error {
	payload := map[string]interface{}{
		"api_token": c.apiToken,
	}
	identify(payload, contactIdentifier)
	return c.post(ctx, EndpointSequenceDisenrol, payload, nil)
}

// Lookup performs a carrier / LRN lookup of phoneNumber.
func (c *Client) Lookup(ctx context.Context, phoneNumber string) (model.LookupResult, error) {
	var out model.LookupResult
	err := c.post(ctx, EndpointLookup, map[string]interface{}{
		"api_token":    c.apiToken,
		"phone_number": phoneNumber,
	}, &out)
	return out, err
}

// ListUsers returns the agents of the account and their status.
func (c *Client) ListUsers(ctx context.Context) ([]model.Agent, error) {
	var out []model.Agent
	if err := c.get(ctx, EndpointUsers, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Agent{}
	}
	return out, nil
}

// RingGroupAvailability returns how many agents of ringGroupID can take calls.
func (c *Client) RingGroupAvailability(ctx context.Context, ringGroupID string) (model.RingGroupAvailability, error) {
	var out model.RingGroupAvailability
	err := c.get(ctx, EndpointRingGroup, url.Values{"ring_group_id": {ringGroupID}}, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s request: %v", apperrors.ErrWebhook, endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", apperrors.ErrWebhook, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", apperrors.ErrWebhook, endpoint, err)
	}
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	log := logger.FromContextOr(req.Context(), c.log).With(zap.String("endpoint", endpoint))
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observer.ObserveWebhookRequest(endpoint, "error", time.Since(start))
		log.Warn("Webhook request failed", zap.Error(err))
		return fmt.Errorf("%w: %s: %w", apperrors.ErrWebhook, endpoint, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn("Failed to close webhook response body", zap.Error(err))
		}
	}()
	observer.ObserveWebhookRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", apperrors.ErrWebhook, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		log.Warn("Webhook returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", msg),
		)
		return fmt.Errorf("%w: %s returned %d: %s", apperrors.ErrWebhook, endpoint, resp.StatusCode, msg)
	}

	log.Debug("Webhook request succeeded", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", apperrors.ErrWebhook, endpoint, err)
	}
	return nil
}
