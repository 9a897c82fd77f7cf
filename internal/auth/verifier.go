// Package auth verifies bearer tokens issued by an external OIDC identity
// provider. Token issuance, login flows, and session management live with the
// provider; this package only validates tokens and extracts the identity.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Identity represents the authenticated caller extracted from a verified token.
type Identity struct {
	Subject string // "sub" claim - unique user identifier at the provider
	Email   string
	Name    string
}

// Verifier validates a raw bearer token and returns the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// OIDCVerifier validates ID tokens against an OIDC provider's published keys.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier performs OIDC discovery against the issuer and returns a
// verifier that checks signature, issuer, expiry, and audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	if issuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("audience is required")
	}

	if err := validateIssuerURL(issuerURL); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to perform OIDC discovery for %s: %w", issuerURL, err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{
			ClientID: audience,
		}),
	}, nil
}

// Verify validates the raw token and extracts the standard identity claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("token is required")
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	var claims struct {
		Email      string `json:"email"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}

	// Build display name from available claims
	name := claims.Name
	if name == "" && (claims.GivenName != "" || claims.FamilyName != "") {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	return &Identity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    name,
	}, nil
}

// validateIssuerURL requires HTTPS (or HTTP for localhost development).
// This prevents SSRF and ensures secure communication with the provider.
func validateIssuerURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %v", err)
	}

	if parsed.Scheme == "https" {
		return nil
	}

	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
	}

	return fmt.Errorf("issuer URL must use HTTPS scheme (HTTP allowed only for localhost)")
}
