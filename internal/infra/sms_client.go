package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSClient talks to a Kavenegar compatible REST endpoint.
type SMSClient struct {
	baseURL    string
	apiKey     string
	sender     string
	httpClient *http.Client
}

func NewSMSClient(baseURL, apiKey, sender string, timeout time.Duration) *SMSClient {
	return &SMSClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		sender:     sender,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var ErrSMSNotConfigured = errors.New("sms api key is not configured")

type smsResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

func (c *SMSClient) Send(ctx context.Context, receptor, message string) error {
	if c.apiKey == "" {
		return ErrSMSNotConfigured
	}

	form := url.Values{}
	form.Set("receptor", receptor)
	form.Set("message", message)
	if c.sender != "" {
		form.Set("sender", c.sender)
	}

	endpoint := fmt.Sprintf("%s/v1/%s/sms/send.json", c.baseURL, url.PathEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out smsResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Return.Message != "" {
			return fmt.Errorf("sms provider returned status %d: %s", resp.StatusCode, out.Return.Message)
		}
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode sms response: %w", decodeErr)
	}
	if out.Return.Status != http.StatusOK {
		return fmt.Errorf("sms provider rejected message: %d %s", out.Return.Status, out.Return.Message)
	}
	return nil
}
