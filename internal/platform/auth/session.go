package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	DefaultSessionTTL    = 24 * time.Hour
	DefaultSessionIssuer = "clinic"
)

// ErrInvalidSession is returned for any token that is malformed, expired,
// signed with another key or revoked.
var ErrInvalidSession = errors.New("invalid session")

// SessionClaims identify an authenticated patient.
type SessionClaims struct {
	jwt.RegisteredClaims
	PatientID string `json:"patient_id"`
	LoginID   string `json:"login_id"`
}

// SessionService issues and verifies patient session tokens. Tokens are
// HS256 JWTs whose jti is tracked in a SessionStore.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  SessionStore
	now    func() time.Time
}

func NewSessionService(secret []byte, ttl time.Duration, store SessionStore) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &SessionService{
		secret: secret,
		ttl:    ttl,
		issuer: DefaultSessionIssuer,
		store:  store,
		now:    time.Now,
	}
}

func (s *SessionService) TTL() time.Duration { return s.ttl }

func (s *SessionService) Issue(ctx context.Context, patientID uuid.UUID, loginID string) (string, error) {
	now := s.now()
	jti := uuid.NewString()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   patientID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		PatientID: patientID.String(),
		LoginID:   loginID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	if err := s.store.Put(ctx, patientID.String(), jti, s.ttl); err != nil {
		return "", err
	}
	return signed, nil
}

func (s *SessionService) Verify(ctx context.Context, token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	if _, err := uuid.Parse(claims.PatientID); err != nil {
		return nil, ErrInvalidSession
	}
	live, err := s.store.Exists(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func (s *SessionService) RevokeAll(ctx context.Context, patientID uuid.UUID) error {
	return s.store.RevokeAll(ctx, patientID.String())
}

// PatientSessionMiddleware requires a valid patient session bearer token.
func (s *SessionService) PatientSessionMiddleware(skipper func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}
			token, err := bearerToken(c)
			if err != nil {
				return err
			}
			claims, err := s.Verify(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, ErrInvalidSession) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired session")
				}
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}
			id, _ := uuid.Parse(claims.PatientID)
			ctx := context.WithValue(c.Request().Context(), PatientIDKey, id)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// PatientIDFromContext returns the authenticated patient, if any.
func PatientIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(PatientIDKey).(uuid.UUID)
	return id, ok
}
