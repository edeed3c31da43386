package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/types"
	"golang.org/x/time/rate"
)

// maxTranslateText is the longest text accepted for one translation
const maxTranslateText = 5000

// TranslateInput is the body of a translation request
type TranslateInput struct {
	Text string `json:"text" validate:"required,max=5000"`
	From string `json:"from" validate:"omitempty,bcp47_language_tag|eq=auto"`
	To   string `json:"to" validate:"required,bcp47_language_tag"`
}

// TranslateResult is a finished translation
type TranslateResult struct {
	Text        string `json:"text"`
	From        string `json:"from"`
	To          string `json:"to"`
	Translation string `json:"translation"`
}

// Translator calls the public Google Translate endpoint, rate limited and
// behind a circuit breaker
type Translator struct {
	baseURL  string
	limiter  *rate.Limiter
	upstream *upstream
}

// NewTranslator creates a Translator from configuration
func NewTranslator(cfg *config.Config, client *http.Client) *Translator {
	burst := cfg.TranslateBurst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.TranslateRate)
	if cfg.TranslateRate <= 0 {
		limit = rate.Inf
	}
	return &Translator{
		baseURL:  cfg.TranslateURL,
		limiter:  rate.NewLimiter(limit, burst),
		upstream: newUpstream("translate", client),
	}
}

// Translate translates in.Text. An empty From lets the service detect the
// source language, which is then reported in the result.
func (t *Translator) Translate(ctx context.Context, in TranslateInput) (*TranslateResult, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.From == "" {
		in.From = "auto"
	}
	if in.Text == "" {
		return nil, types.BadRequest("text is required", "translate.validation")
	}
	if len(in.Text) > maxTranslateText {
		return nil, types.BadRequest(fmt.Sprintf("text must be at most %d bytes", maxTranslateText), "translate.validation")
	}
	if in.To == "" {
		return nil, types.BadRequest("to is required", "translate.validation")
	}

	if !t.limiter.Allow() {
		return nil, types.NewAppError(http.StatusTooManyRequests, "Too many translation requests", "translate.rate_limited")
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", in.From)
	q.Set("tl", in.To)
	q.Set("dt", "t")
	q.Set("q", in.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create translate request: %w", err)
	}

	body, err := t.upstream.do(req)
	if err != nil {
		return nil, err
	}

	translation, detected, err := parseGoogleTranslation(body)
	if err != nil {
		return nil, types.Wrap(err, http.StatusBadGateway, "translate returned an unreadable response", "upstream")
	}

	from := in.From
	if from == "auto" && detected != "" {
		from = detected
	}
	return &TranslateResult{
		Text:        in.Text,
		From:        from,
		To:          in.To,
		Translation: translation,
	}, nil
}

// parseGoogleTranslation reads the nested array answer of the gtx client:
// [[["segment","source",...],...],null,"detected-language",...]
func parseGoogleTranslation(body []byte) (string, string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", "", err
	}
	if len(root) == 0 {
		return "", "", fmt.Errorf("empty translation response")
	}

	var segments [][]interface{}
	if err := json.Unmarshal(root[0], &segments); err != nil {
		return "", "", fmt.Errorf("translation segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}

	var detected string
	if len(root) > 2 {
		_ = json.Unmarshal(root[2], &detected)
	}
	return sb.String(), detected, nil
}
