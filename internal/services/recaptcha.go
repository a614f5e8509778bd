package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
)

// BotVerifier checks a client-supplied anti-bot token.
type BotVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// RecaptchaVerifier validates tokens against Google's siteverify endpoint.
// With no secret configured every request passes.
type RecaptchaVerifier struct {
	secret     string
	verifyURL  string
	minScore   float64
	httpClient *http.Client
}

func NewRecaptchaVerifier(cfg *config.RecaptchaConfig) *RecaptchaVerifier {
	v := &RecaptchaVerifier{
		verifyURL:  "https://www.google.com/recaptcha/api/siteverify",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if cfg != nil {
		v.secret = cfg.Secret
		v.minScore = cfg.MinScore
		if cfg.VerifyURL != "" {
			v.verifyURL = cfg.VerifyURL
		}
	}
	return v
}

func (v *RecaptchaVerifier) Enabled() bool {
	return v.secret != ""
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"` // v3 only
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return response.NewValidationError("reCAPTCHA verification is required")
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return response.NewUpstreamError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return response.NewUpstreamError(fmt.Errorf("reCAPTCHA verification failed: %w", err))
	}
	defer resp.Body.Close()

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return response.NewUpstreamError(fmt.Errorf("reCAPTCHA verification failed: %w", err))
	}

	if !body.Success {
		logger.Warn().Strs("error_codes", body.ErrorCodes).Msg("[Recaptcha] token rejected")
		return response.NewValidationError("reCAPTCHA verification failed")
	}
	if body.Score != nil && *body.Score < v.minScore {
		logger.Warn().Float64("score", *body.Score).Msg("[Recaptcha] score below threshold")
		return response.NewValidationError("reCAPTCHA verification failed")
	}
	return nil
}
