package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
	"github.com/shieldops/backend/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrRefreshMalformed     = errors.New("refresh token is malformed")
	ErrRefreshFailed        = errors.New("refresh failed")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// TokenService mints and validates bearer tokens. Raw tokens are never
// stored: the session row keeps only the refresh token's fingerprint and the
// jti of the current access token.
type TokenService struct {
	jwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	sessionTTL   time.Duration
	sessions     storage.SessionStore
	cache        storage.SessionCache
}

// NewTokenService wires the issuer to its session store. cache may be nil;
// when set, VerifyAccessToken reads sessions through it, trading a
// revocation-latency window of at most the cache TTL for one fewer store
// lookup per request.
func NewTokenService(cfg *util.TokenConfig, sessions storage.SessionStore, cache storage.SessionCache) *TokenService {
	return &TokenService{
		jwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		sessionTTL:   cfg.SessionTTL,
		sessions:     sessions,
		cache:        cache,
	}
}

type jwtClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID    int64
	SessionID string
	TokenID   string
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    int64
}

// IssueTokenPair creates a fresh session for the user and mints both
// credentials. Creating the session supersedes any prior active session for
// the same user.
//
// The refresh token is "<session_id>.<verifier>": the session id lets the
// server find the row without storing the token, the verifier is 32 random
// bytes whose SHA-256 hex digest is persisted as the fingerprint.
func (ts *TokenService) IssueTokenPair(ctx context.Context, userID int64, meta models.UserMetadata) (*TokenPair, error) {
	sessionID := uuid.NewString()

	refreshToken, fingerprint, err := newRefreshToken(sessionID)
	if err != nil {
		return nil, err
	}

	jti := uuid.NewString()
	now := time.Now()

	session := models.Session{
		SessionID:           sessionID,
		UserID:              userID,
		RefreshFingerprint:  fingerprint,
		ActiveAccessTokenID: jti,
		IsActive:            true,
		IPAddress:           meta.IPAddress,
		UserAgent:           meta.UserAgent,
		CreatedAt:           now,
		LastActivityAt:      now,
		ExpiresAt:           now.Add(ts.sessionTTL),
	}
	if err := ts.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	accessToken, err := ts.signAccessToken(userID, sessionID, jti, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		ExpiresIn:    int64(ts.accessTTL.Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The session's
// active token id rotates, so every access token issued before this call
// stops verifying as soon as the rotation is visible.
//
// Concurrent refreshes for one session may both return a token; the rotation
// is a single atomic write, so exactly one of them stays valid and the other
// caller sees a revoked-token failure on its next request.
func (ts *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	sessionID, fingerprint, err := splitRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	session, err := ts.sessions.ValidateAndTouch(ctx, sessionID, fingerprint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	// The refresh token's own lifetime can be shorter than the session's:
	// past it, the session dies even though expires_at has not arrived.
	if ts.refreshTTL > 0 && !session.CreatedAt.Add(ts.refreshTTL).After(time.Now()) {
		if err := ts.sessions.Deactivate(ctx, sessionID); err != nil {
			return "", fmt.Errorf("deactivate session: %w", err)
		}
		ts.invalidateCache(ctx, sessionID)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, storage.ErrSessionExpired)
	}

	jti := uuid.NewString()
	if err := ts.sessions.RotateAccessToken(ctx, sessionID, jti); err != nil {
		return "", fmt.Errorf("rotate access token: %w", err)
	}
	ts.invalidateCache(ctx, sessionID)

	accessToken, err := ts.signAccessToken(session.UserID, sessionID, jti, time.Now())
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// VerifyAccessToken checks structure, signature and expiry, then confirms
// the token's jti is still the session's active one. A mismatch means the
// token was superseded by a later refresh or killed by logout.
func (ts *TokenService) VerifyAccessToken(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwtClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.jwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok || claims.UserID == "" || claims.SessionID == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	session, err := ts.lookupSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionInvalid) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !session.IsActive || !session.ExpiresAt.After(time.Now()) {
		return nil, ErrTokenRevoked
	}
	if session.ActiveAccessTokenID != claims.ID {
		return nil, ErrTokenRevoked
	}
	if session.UserID != userID {
		return nil, ErrTokenInvalid
	}

	return &Claims{UserID: userID, SessionID: claims.SessionID, TokenID: claims.ID}, nil
}

// Logout deactivates the session. Idempotent.
func (ts *TokenService) Logout(ctx context.Context, sessionID string) error {
	if err := ts.sessions.Deactivate(ctx, sessionID); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	ts.invalidateCache(ctx, sessionID)
	return nil
}

func (ts *TokenService) AccessTTL() time.Duration { return ts.accessTTL }

func (ts *TokenService) signAccessToken(userID int64, sessionID, jti string, now time.Time) (string, error) {
	claims := &jwtClaims{
		UserID:    strconv.FormatInt(userID, 10),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signedToken, nil
}

func (ts *TokenService) lookupSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if ts.cache != nil {
		if session, err := ts.cache.GetSession(ctx, sessionID); err == nil && session != nil {
			return session, nil
		}
	}

	session, err := ts.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ts.cache != nil {
		// Best effort; verification already has the authoritative row.
		_ = ts.cache.SetSession(ctx, session)
	}
	return session, nil
}

func (ts *TokenService) invalidateCache(ctx context.Context, sessionID string) {
	if ts.cache == nil {
		return
	}
	_ = ts.cache.InvalidateSession(ctx, sessionID)
}

func newRefreshToken(sessionID string) (token, fingerprint string, err error) {
	raw := make([]byte, util.RawVerifierLength)
	if _, err = rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))

	return sessionID + "." + verifier, hex.EncodeToString(digest[:]), nil
}

func splitRefreshToken(token string) (sessionID, fingerprint string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != util.TokenPartsExpected || parts[0] == "" || parts[1] == "" {
		return "", "", ErrRefreshMalformed
	}

	digest := sha256.Sum256([]byte(parts[1]))
	return parts[0], hex.EncodeToString(digest[:]), nil
}
