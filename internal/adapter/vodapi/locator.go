package vodapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// Ensure Client implements port.ResourceLocator
var _ port.ResourceLocator = (*Client)(nil)

// Resolve looks up the manifest location of rawID using token.
// The first listed video wins. Every failure is returned as
// *domain.ResolutionError.
func (c *Client) Resolve(ctx context.Context, rawID string, token domain.Token) (domain.ManifestLocation, error) {
	location, err := c.resolve(ctx, rawID, token)
	if err != nil {
		return "", &domain.ResolutionError{ID: rawID, Err: err}
	}
	return location, nil
}

func (c *Client) resolve(ctx context.Context, rawID string, token domain.Token) (domain.ManifestLocation, error) {
	if rawID == "" {
		return "", fmt.Errorf("%w: empty video id", domain.ErrInvalidInput)
	}
	if token == "" {
		return "", domain.ErrMissingToken
	}

	u, err := url.Parse(c.cfg.VideoURL)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}
	q := u.Query()
	q.Set("videoId", rawID)
	q.Set("signature", string(token))
	q.Set("clientType", strconv.Itoa(c.cfg.ClientType))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	env, err := c.doAPIRequest(req)
	if err != nil {
		return "", err
	}

	var result videoResult
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			return "", fmt.Errorf("failed to decode video result: %w", err)
		}
	}
	if len(result.Videos) == 0 || result.Videos[0].VideoURL == "" {
		return "", domain.ErrNoLocation
	}

	c.logger.Debug("Resolved manifest",
		zap.String("video_id", rawID),
		zap.Int("renditions", len(result.Videos)))
	return domain.ManifestLocation(result.Videos[0].VideoURL), nil
}
