// Package token signs and verifies RS256 compact tokens with the client key pair.
package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zarvd/stonebanking-jwt/internal/key"
)

// Codec signs claim sets with the private key and decodes tokens with the public key.
// Keys are parsed on first use, so a broken key surfaces as an error of the call that needs it.
type Codec struct {
	privateKey func() (*rsa.PrivateKey, error)
	publicKey  func() (*rsa.PublicKey, error)
	parser     *jwt.Parser
}

func NewCodec(material key.Material) *Codec {
	return &Codec{
		privateKey: sync.OnceValues(func() (*rsa.PrivateKey, error) {
			k, err := key.DecodeRSAPrivateKey(material.PrivatePEM)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSigningKey, err)
			}
			return k, nil
		}),
		publicKey: sync.OnceValues(func() (*rsa.PublicKey, error) {
			k, err := key.DecodeRSAPublicKey(material.PublicPEM)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrVerificationKey, err)
			}
			return k, nil
		}),
		// Time claims are left to the caller: any token we can verify decodes, expired or not.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithJSONNumber(),
		),
	}
}

// Sign produces a compact RS256 token carrying claims.
func (c *Codec) Sign(claims jwt.Claims) (string, error) {
	privateKey, err := c.privateKey()
	if err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// SignPayload signs an already base64url-encoded JSON payload.
func (c *Codec) SignPayload(encodedClaims string) (*SignedToken, error) {
	if _, err := base64.RawURLEncoding.DecodeString(encodedClaims); err != nil {
		return nil, fmt.Errorf("%w: claims are not base64url encoded: %v", ErrMalformedToken, err)
	}

	privateKey, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	keyID, err := c.keyID()
	if err != nil {
		return nil, err
	}

	header := map[string]string{
		"alg": jwt.SigningMethodRS256.Alg(),
		"typ": "JWT",
		"kid": keyID,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	headerB64 := base64.RawURLEncoding.EncodeToString(headerJSON)

	signature, err := jwt.SigningMethodRS256.Sign(headerB64+"."+encodedClaims, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return &SignedToken{
		KeyID:     keyID,
		Header:    headerB64,
		Payload:   encodedClaims,
		Signature: base64.RawURLEncoding.EncodeToString(signature),
	}, nil
}

// PublicKey returns the verification key in PKIX DER form.
func (c *Codec) PublicKey() (*PublicKey, error) {
	publicKey, err := c.publicKey()
	if err != nil {
		return nil, err
	}
	der, err := key.MarshalPublicKeyDER(publicKey)
	if err != nil {
		return nil, err
	}
	return &PublicKey{KeyID: thumbprint(der), Key: der}, nil
}

func (c *Codec) keyID() (string, error) {
	pub, err := c.PublicKey()
	if err != nil {
		return "", err
	}
	return pub.KeyID, nil
}

// Decode verifies token and returns its payload as a tree of maps, slices and scalars.
func (c *Codec) Decode(token string) (map[string]any, error) {
	if strings.Count(token, ".") != 2 {
		return nil, fmt.Errorf("%w: expected three segments", ErrMalformedToken)
	}

	parsed, err := c.parser.Parse(token, func(*jwt.Token) (any, error) {
		return c.publicKey()
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrVerificationKey):
		return nil, err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedToken)
	}
	return normalizeObject(claims), nil
}

func normalizeObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = normalize(v)
	}
	return out
}

// normalize maps a value decoded with json.Number onto natural Go types.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return normalizeObject(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return v
	}
}

func thumbprint(der []byte) string {
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
