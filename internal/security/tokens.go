package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// clockSkew is tolerated on exp/nbf/iat checks.
const clockSkew = 30 * time.Second

// AccessClaims holds JWT claims of a caller access token issued by the identity provider.
// sub is the user id, sid the identity provider session.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
	OrgID     string `json:"org_id,omitempty"`
}

// Identity is the caller resolved from a verified access token.
type Identity struct {
	UserID    string
	SessionID string
	OrgID     string
}

// Verifier validates access tokens (RS256 or ES256) against the identity provider's public key.
type Verifier struct {
	publicKey crypto.PublicKey
	parser    *jwt.Parser
}

// NewVerifier returns a Verifier that accepts tokens signed for publicKey with the given issuer and audience.
func NewVerifier(publicKey crypto.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		publicKey: publicKey,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// Verify parses and validates the access token (signature, exp, iss, aud, sub).
// Any failure returns ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := &AccessClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, SessionID: claims.SessionID, OrgID: claims.OrgID}, nil
}

// Issuer signs access tokens. In production tokens come from the identity provider; Issuer exists
// for local development (actionctl token) and tests.
type Issuer struct {
	privateKey crypto.Signer
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewIssuer returns an Issuer that signs with the given private key (RS256 or ES256).
func NewIssuer(privateKey crypto.Signer, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{privateKey: privateKey, issuer: issuer, audience: audience, ttl: ttl}
}

// IssueAccess issues an access JWT for the given user, session and org.
// Returns the token string and its expiration time.
func (p *Issuer) IssueAccess(userID, sessionID, orgID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		OrgID:     orgID,
	}
	token, err = p.sign(claims)
	return token, expiresAt, err
}

func (p *Issuer) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidKey
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
