package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ExchangeAuthCode performs the single token-endpoint call for adapters
// whose providers accept the standard form-encoded exchange. Upstream
// rejections surface as *ExchangeError with the provider's error code and
// description.
func ExchangeAuthCode(ctx context.Context, cfg *oauth2.Config, httpClient *http.Client, provider, code string) (*oauth2.Token, error) {
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, &ExchangeError{
				Provider:    provider,
				Code:        re.ErrorCode,
				Description: re.ErrorDescription,
				Status:      status,
			}
		}
		return nil, fmt.Errorf("%s token exchange: %w", provider, err)
	}

	return token, nil
}

// TruncateCode shortens an upstream authorization code for logging. The
// full code is a live credential and must never reach the log.
func TruncateCode(code string) string {
	const visible = 6
	if len(code) <= visible {
		return code
	}
	return code[:visible] + "..."
}
