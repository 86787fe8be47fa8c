package sso

import "time"

// Group is an identity-provider group the user belongs to.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Profile is what the identity provider asserts about a user at sign-in.
type Profile struct {
	Subject         string
	Name            *string
	Email           *string
	ExecutiveGroups []Group
	MemberGroups    []Group
}

// OIDCConfig holds OpenID Connect configuration
type OIDCConfig struct {
	IssuerURL       string   `yaml:"issuer_url"`
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	RedirectURL     string   `yaml:"redirect_url"`
	Scopes          []string `yaml:"scopes"`
	SkipIssuerCheck bool     `yaml:"skip_issuer_check"`
	// UseUserInfo merges claims from the userinfo endpoint over the ID token.
	UseUserInfo bool `yaml:"use_userinfo"`
	// ExecutiveGroupsClaim and MemberGroupsClaim name the claims holding
	// [{id, name}] group lists.
	ExecutiveGroupsClaim string `yaml:"executive_groups_claim"`
	MemberGroupsClaim    string `yaml:"member_groups_claim"`
}

// Default claim names for group membership.
const (
	DefaultExecutiveGroupsClaim = "execInGroups"
	DefaultMemberGroupsClaim    = "memberInGroups"
)

// Session is a signed-in browser session. Only the token hash is stored.
type Session struct {
	TokenHash  string    `json:"-"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
