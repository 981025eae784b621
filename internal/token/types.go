package token

import "errors"

var (
	ErrSigningKey       = errors.New("could not read RSA private key")
	ErrVerificationKey  = errors.New("could not read RSA public key")
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrMalformedToken   = errors.New("token is malformed")
)

// SignedToken is a compact RS256 token split into its base64url segments.
type SignedToken struct {
	KeyID     string
	Header    string
	Payload   string
	Signature string
}

func (t *SignedToken) String() string {
	return t.Header + "." + t.Payload + "." + t.Signature
}

// PublicKey is the PKIX DER encoding of the verification key.
type PublicKey struct {
	KeyID string
	Key   []byte
}
