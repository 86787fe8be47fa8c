package sso

import (
	"context"
	"fmt"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Authenticator runs the authorization code flow against an identity provider.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// OIDCProvider implements OpenID Connect sign-in
type OIDCProvider struct {
	config       OIDCConfig
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewOIDCProvider discovers the issuer and creates a provider
func NewOIDCProvider(ctx context.Context, config OIDCConfig) (*OIDCProvider, error) {
	if err := ValidateOIDCConfig(config); err != nil {
		return nil, err
	}

	// Discover OIDC provider
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:        config.ClientID,
		SkipIssuerCheck: config.SkipIssuerCheck,
	})

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  config.RedirectURL,
		Scopes:       config.Scopes,
	}

	return &OIDCProvider{
		config:       config,
		provider:     provider,
		verifier:     verifier,
		oauth2Config: oauth2Config,
	}, nil
}

// AuthCodeURL returns the authorization endpoint URL for state
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the signed-in user's profile
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if p.config.UseUserInfo {
		userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(oauth2Token))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
		}
		var extra map[string]interface{}
		if err := userInfo.Claims(&extra); err != nil {
			return nil, fmt.Errorf("failed to parse userinfo claims: %w", err)
		}
		for k, v := range extra {
			if k == "sub" {
				continue
			}
			claims[k] = v
		}
	}

	profile := ProfileFromClaims(claims, p.config)
	if profile.Subject == "" {
		profile.Subject = idToken.Subject
	}
	return profile, nil
}

// ProfileFromClaims maps ID token and userinfo claims onto a Profile.
func ProfileFromClaims(claims map[string]interface{}, config OIDCConfig) *Profile {
	execClaim := config.ExecutiveGroupsClaim
	if execClaim == "" {
		execClaim = DefaultExecutiveGroupsClaim
	}
	memberClaim := config.MemberGroupsClaim
	if memberClaim == "" {
		memberClaim = DefaultMemberGroupsClaim
	}

	return &Profile{
		Subject:         getStringValue(claims, "sub"),
		Name:            optionalString(claims, "name"),
		Email:           optionalString(claims, "email"),
		ExecutiveGroups: getGroups(claims, execClaim),
		MemberGroups:    getGroups(claims, memberClaim),
	}
}

// ValidateOIDCConfig validates the OIDC configuration
func ValidateOIDCConfig(cfg OIDCConfig) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if cfg.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if cfg.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}

	// Verify "openid" scope is present
	for _, scope := range cfg.Scopes {
		if scope == oidc.ScopeOpenID {
			return nil
		}
	}
	return fmt.Errorf("'openid' scope is required for OIDC")
}

func getStringValue(claims map[string]interface{}, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func optionalString(claims map[string]interface{}, key string) *string {
	s := getStringValue(claims, key)
	if s == "" {
		return nil
	}
	return &s
}

// getGroups reads a list of groups. Entries may be objects with id and name
// or bare ids; anything without a usable id is skipped.
func getGroups(claims map[string]interface{}, key string) []Group {
	raw, ok := claims[key].([]interface{})
	if !ok {
		return nil
	}

	groups := make([]Group, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case map[string]interface{}:
			id, ok := toInt64(v["id"])
			if !ok {
				continue
			}
			name, _ := v["name"].(string)
			groups = append(groups, Group{ID: id, Name: name})
		default:
			if id, ok := toInt64(v); ok {
				groups = append(groups, Group{ID: id})
			}
		}
	}
	return groups
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
