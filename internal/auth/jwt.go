// AngelaMos | 2026
// jwt.go

package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

const DefaultAccessTokenTTL = 15 * time.Minute

const (
	claimRole      = "role"
	claimStamp     = "sst"
	claimTokenType = "type"

	tokenTypeAccess = "access"
)

// JWTManager mints and parses short-lived ES256 access tokens. Revocation is
// not its concern; see Service.VerifyAccessToken.
type JWTManager struct {
	signer   jwk.Key
	verifier jwk.Key
	jwks     []byte
	keyID    string
	cfg      config.JWTConfig
	clock    core.Clock
}

func NewJWTManager(cfg config.JWTConfig, clock core.Clock) (*JWTManager, error) {
	if cfg.AccessTokenExpire <= 0 {
		cfg.AccessTokenExpire = DefaultAccessTokenTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}

	signer, keyID, err := loadSigningKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	verifier, err := signer.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := verifier.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(verifier); err != nil {
		return nil, fmt.Errorf("build jwks: %w", err)
	}
	jwks, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode jwks: %w", err)
	}

	return &JWTManager{
		signer:   signer,
		verifier: verifier,
		jwks:     jwks,
		keyID:    keyID,
		cfg:      cfg,
		clock:    clock,
	}, nil
}

// loadSigningKey reads a PEM encoded P-256 private key. Keys without a kid
// get a random one for the lifetime of the process.
func loadSigningKey(path string) (jwk.Key, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read private key: %w", err)
	}

	key, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		return nil, "", fmt.Errorf("parse private key: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, "", fmt.Errorf("set algorithm: %w", err)
	}

	var keyID string
	if err := key.Get(jwk.KeyIDKey, &keyID); err != nil || keyID == "" {
		keyID = uuid.NewString()[:8]
		if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
			return nil, "", fmt.Errorf("set key id: %w", err)
		}
	}

	return key, keyID, nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM files. The private
// key is readable by the owner only.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	files := []struct {
		path string
		key  jwk.Key
		mode os.FileMode
	}{
		{path: privateKeyPath, key: private, mode: 0o600},
		{path: publicKeyPath, key: public, mode: 0o644},
	}

	for _, f := range files {
		pem, err := jwk.Pem(f.key)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, pem, f.mode); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
	}

	return nil
}

type AccessTokenRequest struct {
	UserID        string
	Role          string
	SecurityStamp string
}

type AccessToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// CreateAccessToken embeds a digest of the security stamp rather than the
// stamp itself, so a leaked token cannot be used to forge reset links.
func (m *JWTManager) CreateAccessToken(req AccessTokenRequest) (*AccessToken, error) {
	issuedAt := m.clock.Now().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.cfg.AccessTokenExpire)
	id := uuid.NewString()

	token, err := jwt.NewBuilder().
		JwtID(id).
		Issuer(m.cfg.Issuer).
		Audience([]string{m.cfg.Audience}).
		Subject(req.UserID).
		IssuedAt(issuedAt).
		NotBefore(issuedAt).
		Expiration(expiresAt).
		Claim(claimRole, req.Role).
		Claim(claimStamp, core.HashToken(req.SecurityStamp)).
		Claim(claimTokenType, tokenTypeAccess).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signer))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AccessToken{Token: string(signed), ID: id, ExpiresAt: expiresAt}, nil
}

// ParseAccessToken verifies the signature first and only then looks at the
// claims. An expired but otherwise authentic token yields ErrTokenExpired;
// every other failure is ErrTokenInvalid.
func (m *JWTManager) ParseAccessToken(raw string) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.ES256(), m.verifier),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", core.ErrTokenInvalid)
	}

	expiresAt, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf("access token has no exp: %w", core.ErrTokenInvalid)
	}
	if !m.clock.Now().Before(expiresAt) {
		return nil, fmt.Errorf("access token: %w", core.ErrTokenExpired)
	}

	if err := jwt.Validate(token,
		jwt.WithClock(jwt.ClockFunc(m.clock.Now)),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
	); err != nil {
		return nil, fmt.Errorf("validate access token: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{ExpiresAt: expiresAt}
	claims.UserID, _ = token.Subject()
	claims.TokenID, _ = token.JwtID()

	var tokenType string
	for name, dst := range map[string]*string{
		claimRole:      &claims.Role,
		claimStamp:     &claims.StampHash,
		claimTokenType: &tokenType,
	} {
		if err := token.Get(name, dst); err != nil {
			return nil, fmt.Errorf("access token claim %q: %w", name, core.ErrTokenInvalid)
		}
	}

	if tokenType != tokenTypeAccess || claims.UserID == "" || claims.TokenID == "" {
		return nil, fmt.Errorf("malformed access token: %w", core.ErrTokenInvalid)
	}

	return claims, nil
}

// JWKSHandler serves the public verification key so other services can check
// access tokens without calling back here.
func (m *JWTManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(m.jwks)
	}
}

func (m *JWTManager) KeyID() string {
	return m.keyID
}
