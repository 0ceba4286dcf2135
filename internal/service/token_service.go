package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose distingue tokens de sesion de tokens de accion (verificacion, reset).
type TokenPurpose string

const (
	PurposeSession TokenPurpose = "session"
	PurposeAction  TokenPurpose = "action"
)

const (
	defaultSessionTTL = 1000 * time.Hour
	defaultActionTTL  = 10 * time.Minute
)

type Claims struct {
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService emite y valida tokens JWT firmados con HS256.
// No guarda estado: un token vale hasta que expira.
type TokenService struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	actionTTL  time.Duration
	now        func() time.Time
}

func NewTokenService(secret, issuer string, sessionTTL, actionTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if actionTTL <= 0 {
		actionTTL = defaultActionTTL
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "credential-service"
	}
	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		sessionTTL: sessionTTL,
		actionTTL:  actionTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *TokenService) ActionTTL() time.Duration {
	return s.actionTTL
}

func (s *TokenService) IssueSession(subject string) (string, error) {
	return s.Issue(subject, PurposeSession, s.sessionTTL)
}

func (s *TokenService) IssueAction(subject string) (string, error) {
	return s.Issue(subject, PurposeAction, s.actionTTL)
}

func (s *TokenService) Issue(subject string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject is required")
	}
	if !validPurpose(purpose) {
		return "", errors.New("unknown token purpose")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := s.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryAt(now, ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// expiryAt redondea hacia arriba al segundo: exp se serializa en segundos enteros
// y el token debe vivir al menos ttl desde el instante real de emision.
func expiryAt(issued time.Time, ttl time.Duration) time.Time {
	exp := issued.Add(ttl)
	if truncated := exp.Truncate(time.Second); truncated.Before(exp) {
		return truncated.Add(time.Second)
	}
	return exp
}

// Verify valida firma, expiracion y forma, en ese orden.
// Todos los errores devueltos envuelven ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenMalformed
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, ErrTokenTampered
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		default:
			return Claims{}, ErrTokenMalformed
		}
	}

	if strings.TrimSpace(claims.Subject) == "" || !validPurpose(claims.Purpose) || claims.Issuer != s.issuer {
		return Claims{}, ErrTokenMalformed
	}
	return claims, nil
}

func validPurpose(p TokenPurpose) bool {
	return p == PurposeSession || p == PurposeAction
}
