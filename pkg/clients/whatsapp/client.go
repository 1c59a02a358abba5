package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/farmcore/internal/config"
)

const (
	requestTimeout = 15 * time.Second
	retryCount     = 2
)

// Sender delivers plain text messages through the WhatsApp Cloud API.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// APIClient is a resty-backed Sender.
type APIClient struct {
	http          *resty.Client
	phoneNumberID string
}

// NewClient builds a client for the configured business phone number.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	rc := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(requestTimeout).
		SetRetryCount(retryCount).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
		})

	return &APIClient{http: rc, phoneNumberID: cfg.PhoneNumberID}
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendText posts body to the recipient and returns the message id assigned by Meta.
func (c *APIClient) SendText(ctx context.Context, to, body string) (string, error) {
	result := new(sendResponse)
	failure := new(apiError)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(textMessage{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "text",
			Text:             textBody{Body: body},
		}).
		SetResult(result).
		SetError(failure).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.IsError() {
		code := resp.StatusCode()
		if failure.Error.Code != 0 {
			code = failure.Error.Code
		}
		return "", fmt.Errorf("whatsapp api error: code=%d, message=%s", code, failure.Error.Message)
	}

	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}
