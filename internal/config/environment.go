package config

import (
	"fmt"
	"strings"
)

// Environment selects which Stone Banking deployment the broker talks to.
type Environment int

const (
	Sandbox Environment = iota
	Production
)

const (
	accountsSandbox    = "https://sandbox-accounts.openbank.stone.com.br"
	accountsProduction = "https://accounts.openbank.stone.com.br"

	// Realm is the identity provider realm carried in authentication assertions.
	Realm = "stone_bank"

	// ConsentAudience is the fixed audience of consent tokens.
	ConsentAudience = "accounts-hubid@openbank.stone.com.br"

	// ConsentType is the value of the "type" claim of consent tokens.
	ConsentType = "consent"
)

func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sandbox":
		return Sandbox, nil
	case "production":
		return Production, nil
	default:
		return Sandbox, fmt.Errorf("unknown environment %q", s)
	}
}

func (e Environment) String() string {
	if e == Production {
		return "production"
	}
	return "sandbox"
}

func (e Environment) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Environment) UnmarshalText(text []byte) error {
	env, err := ParseEnvironment(string(text))
	if err != nil {
		return err
	}
	*e = env
	return nil
}

// AccountsURL is the accounts base URL, without a trailing slash.
func (e Environment) AccountsURL() string {
	if e == Production {
		return accountsProduction
	}
	return accountsSandbox
}

// AuthenticationAudience is the "aud" claim of authentication assertions.
func (e Environment) AuthenticationAudience() string {
	return e.AccountsURL() + "/auth/realms/" + Realm
}

// TokenURL is the endpoint that exchanges an assertion for an access token.
func (e Environment) TokenURL() string {
	return e.AuthenticationAudience() + "/protocol/openid-connect/token"
}

// ConsentURL is the page users are redirected to for granting consent.
func (e Environment) ConsentURL() string {
	return e.AccountsURL() + "/consentimento"
}
