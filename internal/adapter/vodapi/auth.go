package vodapi

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// Ensure Client implements port.TokenProvider
var _ port.TokenProvider = (*Client)(nil)

// Sign returns hex(md5(authKey + scope + timestamp + secret))
func Sign(authKey, scope string, timestampMs int64, secret string) string {
	sum := md5.Sum([]byte(authKey + scope + strconv.FormatInt(timestampMs, 10) + secret))
	return hex.EncodeToString(sum[:])
}

// AcquireToken requests a fresh signed token for authKey.
// Every failure is returned as *domain.AuthError.
func (c *Client) AcquireToken(ctx context.Context, authKey string) (domain.Token, error) {
	token, err := c.acquireToken(ctx, authKey)
	if err != nil {
		return "", &domain.AuthError{Key: authKey, Err: err}
	}
	return token, nil
}

func (c *Client) acquireToken(ctx context.Context, authKey string) (domain.Token, error) {
	if authKey == "" {
		return "", fmt.Errorf("%w: empty auth key", domain.ErrInvalidInput)
	}

	timestamp := c.now().UnixMilli()
	form := url.Values{
		"bizId":       {authKey},
		"bizType":     {c.cfg.Scope},
		"contentType": {c.cfg.ContentType},
		"sign":        {Sign(authKey, c.cfg.Scope, timestamp, c.cfg.Secret)},
		"timestamp":   {strconv.FormatInt(timestamp, 10)},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.TokenPath
	if csrf := c.CSRFKey(); csrf != "" {
		endpoint += "?" + url.Values{"csrfKey": {csrf}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	env, err := c.doAPIRequest(req)
	if err != nil {
		return "", err
	}

	var result tokenResult
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			return "", fmt.Errorf("failed to decode token result: %w", err)
		}
	}
	if result.VideoSignDto == nil || result.VideoSignDto.Signature == "" {
		return "", domain.ErrMissingToken
	}

	c.logger.Debug("Acquired token", zap.String("key", authKey))
	return domain.Token(result.VideoSignDto.Signature), nil
}
