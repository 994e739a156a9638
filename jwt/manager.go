package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType tags a token with its intended use. Verification rejects any
// token whose type does not match the expected one: an access token is
// never accepted where a refresh token is required, and vice versa.
type TokenType string

const (
	// TypeAccess marks short-lived request-authorizing tokens.
	TypeAccess TokenType = "access"
	// TypeRefresh marks longer-lived rotation-only tokens.
	TypeRefresh TokenType = "refresh"
)

// SigningMethod selects the signature algorithm for the deployment's
// single key set.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrExpired is returned when a structurally valid token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrTypeMismatch is returned when the typ claim does not match the expected use.
	ErrTypeMismatch = errors.New("token type mismatch")
	// ErrInvalid is returned for any other verification failure.
	ErrInvalid = errors.New("token invalid")
)

// Config holds the signing parameters shared by both token kinds.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Claims is the decoded payload of an access or refresh token. Role is
// only populated on access tokens; refresh tokens carry just the subject.
type Claims struct {
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies token pairs. It is a pure function over its
// configuration: no I/O, safe for any number of concurrent callers.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid refresh TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// CreateAccess mints a short-lived access token for the subject carrying
// its role.
func (m *Manager) CreateAccess(subject, role string) (string, time.Time, error) {
	return m.create(subject, role, TypeAccess, m.config.AccessTTL)
}

// CreateRefresh mints a refresh token for the subject. The jti claim makes
// every minted token unique, so two rotations within the same second never
// produce byte-identical tokens.
func (m *Manager) CreateRefresh(subject string) (string, time.Time, error) {
	return m.create(subject, "", TypeRefresh, m.config.RefreshTTL)
}

func (m *Manager) create(subject, role string, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Role:      role,
		TokenType: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.getMethod(), claims)

	signKey, err := m.getSignKey()
	if err != nil {
		return "", time.Time{}, err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccess verifies tokenStr as an access token.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, TypeAccess)
}

// ParseRefresh verifies tokenStr as a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, TypeRefresh)
}

func (m *Manager) parse(tokenStr string, expect TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.getVerifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if !strings.EqualFold(claims.TokenType, string(expect)) {
		return nil, ErrTypeMismatch
	}
	if claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(m.config.PrivateKey)
	default:
		return m.config.PrivateKey, nil
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(m.config.PublicKey)
	default:
		return m.config.PrivateKey, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
