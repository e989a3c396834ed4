// Package oauth verifies Google ID tokens through the tokeninfo endpoint.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pitchside/pitchside/internal/common"
)

// TokenInfo is the subset of the tokeninfo response the server cares about.
type TokenInfo struct {
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Verifier validates an externally issued identity token and returns the
// identity claims it carries.
type Verifier interface {
	Verify(ctx context.Context, token string) (*TokenInfo, error)
}

type GoogleVerifier struct {
	endpoint string
	client   *http.Client
}

func NewGoogleVerifier(endpoint string) *GoogleVerifier {
	return &GoogleVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*TokenInfo, error) {
	u := fmt.Sprintf("%s?id_token=%s", v.endpoint, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.ErrInvalidToken
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding tokeninfo response: %w", err)
	}

	if info.Email == "" || info.EmailVerified != "true" {
		return nil, common.ErrInvalidToken
	}

	return &info, nil
}
