package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
)

// OAuth wraps the provider's authorize and token endpoints.
type OAuth struct {
	cfg        oauth2.Config
	scope      string
	httpClient *http.Client
}

// NewOAuth builds an OAuth client from the immutable provider configuration.
func NewOAuth(p config.ProviderConfig) *OAuth {
	return &OAuth{
		cfg: oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  p.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   p.AuthURL(),
				TokenURL:  p.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		scope:      p.Scope,
		httpClient: &http.Client{Timeout: p.Timeout},
	}
}

// AuthCodeURL returns the URL the athlete is redirected to for consent.
func (o *OAuth) AuthCodeURL(state string) string {
	// The provider expects a comma-separated scope, which oauth2.Config.Scopes would
	// join with spaces.
	return o.cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", o.scope),
		oauth2.SetAuthURLParam("approval_prompt", "force"),
	)
}

// Scope is the scope the athlete must grant.
func (o *OAuth) Scope() string { return o.scope }

// Exchange trades an authorization code for the athlete profile and first credential.
func (o *OAuth) Exchange(ctx context.Context, code string) (domain.Athlete, domain.Credential, error) {
	tok, err := o.cfg.Exchange(o.context(ctx), code)
	if err != nil {
		return domain.Athlete{}, domain.Credential{}, retrieveError("token exchange", err)
	}

	var athlete domain.Athlete
	raw, err := json.Marshal(tok.Extra("athlete"))
	if err != nil {
		return domain.Athlete{}, domain.Credential{}, fmt.Errorf("encode athlete: %w", err)
	}
	if err := json.Unmarshal(raw, &athlete); err != nil || athlete.ID == 0 {
		return domain.Athlete{}, domain.Credential{}, &domain.ProviderError{Op: "token exchange", StatusCode: http.StatusOK, Body: "missing athlete in token response"}
	}

	cred := credentialFrom(tok)
	cred.AthleteID = athlete.ID
	return athlete, cred, nil
}

// Refresh performs a refresh_token grant. Failures wrap domain.ErrTokenRefreshFailed.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (domain.Credential, error) {
	src := o.cfg.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, retrieveError("token refresh", err))
	}
	return credentialFrom(tok), nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func credentialFrom(tok *oauth2.Token) domain.Credential {
	return domain.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt(tok),
	}
}

// expiresAt prefers the absolute expiry the provider sends over the one oauth2 derives
// from expires_in.
func expiresAt(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_at").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return tok.Expiry.Unix()
}

func retrieveError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &domain.ProviderError{Op: op, StatusCode: re.Response.StatusCode, Body: string(re.Body)}
	}
	return &domain.ProviderError{Op: op, Body: err.Error()}
}
