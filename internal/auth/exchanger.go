package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/AhoyClubDev/ahoyMiddlewareAPI/internal/fetch"
)

// GrantTypeJWTBearer is the RFC 7523 grant used for the exchange.
const GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// Token is an access token as issued by the token endpoint.
type Token struct {
	AccessToken string
	// ExpiresIn is zero when the endpoint did not say.
	ExpiresIn time.Duration
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchanger trades a signed assertion for an access token.
type Exchanger struct {
	client   *fetch.Client
	tokenURL string
}

func NewExchanger(client *fetch.Client, tokenURL string) *Exchanger {
	return &Exchanger{client: client, tokenURL: tokenURL}
}

func (e *Exchanger) Exchange(ctx context.Context, assertion string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", GrantTypeJWTBearer)
	form.Set("assertion", assertion)

	header := make(http.Header)
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")

	var resp tokenResponse
	err := e.client.DoJSON(ctx, fetch.Request{
		Method:   http.MethodPost,
		URL:      e.tokenURL,
		Header:   header,
		Body:     []byte(form.Encode()),
		Endpoint: "oauth_token",
	}, &resp)
	if err != nil {
		return Token{}, &Error{Stage: StageExchange, StatusCode: fetch.StatusCode(err), Err: err}
	}
	if resp.AccessToken == "" {
		return Token{}, &Error{Stage: StageExchange, Err: errors.New("token endpoint returned no access_token")}
	}
	return Token{
		AccessToken: resp.AccessToken,
		ExpiresIn:   time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}
