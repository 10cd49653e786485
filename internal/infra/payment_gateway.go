package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	pathpkg "path"
	"strconv"
	"strings"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	zarinpalProductionURL = "https://payment.zarinpal.com"
	zarinpalSandboxURL    = "https://sandbox.zarinpal.com"

	zarinpalCodeSuccess         = 100
	zarinpalCodeAlreadyVerified = 101
)

// PaymentRequest is expressed in the gateway's currency unit.
type PaymentRequest struct {
	Amount      int64
	Description string
	CallbackURL string
	Mobile      string
	Email       string
	OrderNumber string
}

type PaymentSession struct {
	Authority  string
	PaymentURL string
	Fee        int64
}

type PaymentVerification struct {
	Code            int
	RefID           string
	CardPan         string
	AlreadyVerified bool
}

type ZarinpalConfig struct {
	MerchantID string
	Sandbox    bool
	// BaseURL overrides the production/sandbox host.
	BaseURL string
	Timeout time.Duration
}

type ZarinpalClient struct {
	merchantID string
	baseURL    string
	httpClient *http.Client
}

func NewZarinpalClient(cfg ZarinpalConfig) *ZarinpalClient {
	base := cfg.BaseURL
	if base == "" {
		base = zarinpalProductionURL
		if cfg.Sandbox {
			base = zarinpalSandboxURL
		}
	}
	return &ZarinpalClient{
		merchantID: cfg.MerchantID,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient swaps the transport, mainly for tests against a TLS stub.
func (c *ZarinpalClient) WithHTTPClient(hc *http.Client) *ZarinpalClient {
	c.httpClient = hc
	return c
}

type zarinpalEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type zarinpalError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type zarinpalRequestData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	Fee       int64  `json:"fee"`
}

type zarinpalVerifyData struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	RefID   json.Number `json:"ref_id"`
	CardPan string      `json:"card_pan"`
}

func (c *ZarinpalClient) RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if err := c.checkMerchant(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, domain.Validation("payment amount must be positive, got %d", req.Amount)
	}

	metadata := map[string]string{}
	if req.Mobile != "" {
		metadata["mobile"] = req.Mobile
	}
	if req.Email != "" {
		metadata["email"] = req.Email
	}
	if req.OrderNumber != "" {
		metadata["order_id"] = req.OrderNumber
	}
	body := map[string]any{
		"merchant_id":  c.merchantID,
		"amount":       req.Amount,
		"callback_url": req.CallbackURL,
		"description":  req.Description,
		"metadata":     metadata,
	}

	var data zarinpalRequestData
	if err := c.post(ctx, "/pg/v4/payment/request.json", body, &data); err != nil {
		return nil, err
	}
	if data.Code != zarinpalCodeSuccess {
		return nil, gatewayRejected("request", data.Code, data.Message)
	}
	if data.Authority == "" || !strings.HasPrefix(data.Authority, "A") {
		return nil, domain.NewError(domain.KindDependency, fmt.Sprintf("gateway returned malformed authority %q", data.Authority))
	}

	paymentURL := c.baseURL + "/pg/StartPay/" + url.PathEscape(data.Authority)
	if err := validatePaymentURL(paymentURL); err != nil {
		return nil, err
	}
	return &PaymentSession{Authority: data.Authority, PaymentURL: paymentURL, Fee: data.Fee}, nil
}

func (c *ZarinpalClient) VerifyPayment(ctx context.Context, authority string, amount int64) (*PaymentVerification, error) {
	if err := c.checkMerchant(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"merchant_id": c.merchantID,
		"amount":      amount,
		"authority":   authority,
	}

	var data zarinpalVerifyData
	if err := c.post(ctx, "/pg/v4/payment/verify.json", body, &data); err != nil {
		return nil, err
	}
	switch data.Code {
	case zarinpalCodeSuccess, zarinpalCodeAlreadyVerified:
		return &PaymentVerification{
			Code:            data.Code,
			RefID:           data.RefID.String(),
			CardPan:         data.CardPan,
			AlreadyVerified: data.Code == zarinpalCodeAlreadyVerified,
		}, nil
	}
	return nil, gatewayRejected("verify", data.Code, data.Message)
}

func (c *ZarinpalClient) checkMerchant() error {
	if len(c.merchantID) != 36 {
		return domain.NewError(domain.KindConfig, "ZarinPal merchant id is missing or malformed")
	}
	if _, err := uuid.Parse(c.merchantID); err != nil {
		return domain.Wrap(domain.KindConfig, err, "ZarinPal merchant id is not a UUID")
	}
	return nil
}

// post sends a JSON body and decodes the "data" member into out. The v4 API
// returns "data" as an empty array and "errors" as an object on failure.
func (c *ZarinpalClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Wrap(domain.KindDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Wrap(domain.KindDependency, err, "read payment gateway response")
	}

	var env zarinpalEnvelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("payment gateway returned status %d", resp.StatusCode)
		if decodeErr == nil {
			var ge zarinpalError
			if json.Unmarshal(env.Errors, &ge) == nil && ge.Code != 0 {
				msg += fmt.Sprintf(" (code %d: %s)", ge.Code, ge.Message)
			}
		}
		log.Ctx(ctx).Warn().Int("status", resp.StatusCode).Str("path", path).Msg("gateway call failed")
		return domain.NewError(domain.KindDependency, msg)
	}
	if decodeErr != nil {
		return domain.Wrap(domain.KindDependency, decodeErr, "decode payment gateway response")
	}

	if len(env.Data) == 0 || env.Data[0] != '{' {
		var ge zarinpalError
		if err := json.Unmarshal(env.Errors, &ge); err == nil && ge.Code != 0 {
			return gatewayRejected(strings.TrimSuffix(pathpkg.Base(path), ".json"), ge.Code, ge.Message)
		}
		return domain.NewError(domain.KindDependency, "payment gateway response carried no data")
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.Wrap(domain.KindDependency, err, "decode payment gateway data")
	}
	return nil
}

func gatewayRejected(op string, code int, message string) error {
	return domain.Wrap(domain.KindDependency,
		errors.New(message),
		"payment gateway "+op+" rejected with code "+strconv.Itoa(code))
}

func validatePaymentURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Wrap(domain.KindDependency, err, "gateway payment url is invalid")
	}
	if u.Scheme != "https" || u.Host == "" {
		return domain.NewError(domain.KindDependency, fmt.Sprintf("gateway payment url %q is not absolute https", raw))
	}
	return nil
}
