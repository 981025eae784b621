// Package claims builds the two claim sets Stone Banking accepts: the client
// assertion used to obtain access tokens and the consent request embedded in
// the consent redirect URL.
package claims

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zarvd/stonebanking-jwt/internal/config"
)

// Authentication is the payload of a client assertion.
type Authentication struct {
	Audience  string `json:"aud"`
	ClientID  string `json:"clientId"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
	NotBefore int64  `json:"nbf"`
	ID        string `json:"jti"`
	Realm     string `json:"realm"`
	Subject   string `json:"sub"`
}

// Consent is the payload of a consent request token.
type Consent struct {
	Type            string            `json:"type"`
	Audience        string            `json:"aud"`
	ClientID        string            `json:"client_id"`
	Issuer          string            `json:"iss"`
	ExpiresAt       int64             `json:"exp"`
	IssuedAt        int64             `json:"iat"`
	NotBefore       int64             `json:"nbf"`
	ID              string            `json:"jti"`
	RedirectURI     string            `json:"redirect_uri"`
	SessionMetadata map[string]string `json:"session_metadata,omitempty"`
}

// ConsentOptions are the call-time overrides of a consent token.
type ConsentOptions struct {
	// RedirectURL replaces the configured default redirect URL when not blank.
	RedirectURL string
	// Metadata is embedded as session_metadata when not empty.
	Metadata map[string]string
}

// NewAuthentication builds the client assertion claims issued at now.
func NewAuthentication(s *config.Settings, now time.Time) Authentication {
	iat := now.Unix()
	return Authentication{
		Audience:  s.Environment.AuthenticationAudience(),
		ClientID:  s.ClientID,
		ExpiresAt: iat + int64(s.AuthenticationExpiresInSeconds),
		IssuedAt:  iat,
		NotBefore: iat,
		ID:        strconv.FormatInt(iat, 10),
		Realm:     config.Realm,
		Subject:   s.ClientID,
	}
}

// NewConsent builds the consent claims issued at now.
func NewConsent(s *config.Settings, now time.Time, opts ConsentOptions) Consent {
	iat := now.Unix()

	redirectURI := s.ConsentDefaultRedirectURL
	if strings.TrimSpace(opts.RedirectURL) != "" {
		redirectURI = opts.RedirectURL
	}

	c := Consent{
		Type:        config.ConsentType,
		Audience:    config.ConsentAudience,
		ClientID:    s.ClientID,
		Issuer:      s.ClientID,
		ExpiresAt:   iat + int64(s.ConsentExpiresInSeconds),
		IssuedAt:    iat,
		NotBefore:   iat,
		ID:          strconv.FormatInt(iat, 10),
		RedirectURI: redirectURI,
	}
	if len(opts.Metadata) > 0 {
		c.SessionMetadata = make(map[string]string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			c.SessionMetadata[k] = v
		}
	}
	return c
}

// MapClaims renders the claim set in the form the token codec signs.
func (c Authentication) MapClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"aud":      c.Audience,
		"clientId": c.ClientID,
		"exp":      c.ExpiresAt,
		"iat":      c.IssuedAt,
		"nbf":      c.NotBefore,
		"jti":      c.ID,
		"realm":    c.Realm,
		"sub":      c.Subject,
	}
}

func (c Consent) MapClaims() jwt.MapClaims {
	m := jwt.MapClaims{
		"type":         c.Type,
		"aud":          c.Audience,
		"client_id":    c.ClientID,
		"iss":          c.Issuer,
		"exp":          c.ExpiresAt,
		"iat":          c.IssuedAt,
		"nbf":          c.NotBefore,
		"jti":          c.ID,
		"redirect_uri": c.RedirectURI,
	}
	if len(c.SessionMetadata) > 0 {
		metadata := make(map[string]any, len(c.SessionMetadata))
		for k, v := range c.SessionMetadata {
			metadata[k] = v
		}
		m["session_metadata"] = metadata
	}
	return m
}
