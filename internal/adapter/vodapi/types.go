package vodapi

import (
	"encoding/json"
	"fmt"
)

// envelope is the common response shape of both services
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// tokenResult is the result payload of the token endpoint
type tokenResult struct {
	VideoSignDto *struct {
		Signature string `json:"signature"`
	} `json:"videoSignDto"`
}

// videoResult is the result payload of the video lookup endpoint
type videoResult struct {
	Videos []Video `json:"videos"`
}

// Video is one rendition returned by the video lookup endpoint
type Video struct {
	VideoURL string `json:"videoUrl"`
}

// APIError represents a non-zero code returned by the remote service
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error code %d", e.Code)
	}
	return fmt.Sprintf("api error code %d: %s", e.Code, e.Message)
}

// cookieEntry is the browser-export cookie shape
type cookieEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
