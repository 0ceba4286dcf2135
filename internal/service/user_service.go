package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"credential-service/internal/domain"
	"credential-service/internal/email"
	"credential-service/internal/metrics"
	"credential-service/internal/repository"
)

const (
	eventRegister       = "register"
	eventLogin          = "login"
	eventVerifyEmail    = "verify_email"
	eventResend         = "resend_verification"
	eventResetRequest   = "password_reset_request"
	eventResetPassword  = "password_reset"
	eventEmailDelivered = "email_send"
)

// UserServiceConfig agrupa dependencias opcionales de UserService.
type UserServiceConfig struct {
	RedirectBaseURI string
	// RegistrationMailer entrega el correo de verificacion del alta; si es nil se usa el mailer principal.
	RegistrationMailer email.Sender
	Metrics            *metrics.Metrics
}

// UserService coordina registro, login y los flujos de verificacion y reset.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	hasher      PasswordHasher
	tokens      *TokenService
	mailer      email.Sender
	regMailer   email.Sender
	redirectURI string
	metrics     *metrics.Metrics
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	mailer email.Sender,
	cfg UserServiceConfig,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	regMailer := cfg.RegistrationMailer
	if regMailer == nil {
		regMailer = mailer
	}
	return &UserService{
		logger:      logger,
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		mailer:      mailer,
		regMailer:   regMailer,
		redirectURI: strings.TrimRight(strings.TrimSpace(cfg.RedirectBaseURI), "/"),
		metrics:     cfg.Metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	UserName  string
	Email     string
	Password  string
}

// Register crea la cuenta, emite su token de sesion y dispara el correo de verificacion.
// El token se firma antes de persistir la cuenta. Un fallo de entrega se registra pero no invalida el alta.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (user domain.User, sessionToken string, err error) {
	defer func() { s.metrics.Observe(eventRegister, err) }()

	if s.users == nil || s.hasher == nil || s.tokens == nil {
		return domain.User{}, "", errors.New("user service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	userName := strings.TrimSpace(input.UserName)

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.User{}, "", ErrDuplicateAccount
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, "", fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.users.GetByUserName(ctx, userName); err == nil {
		return domain.User{}, "", ErrDuplicateAccount
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, "", fmt.Errorf("lookup user name: %w", err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user = domain.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		UserName:     userName,
		Email:        emailAddr,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sessionToken, err = s.tokens.IssueSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session token: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return domain.User{}, "", ErrDuplicateAccount
		}
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}

	_ = s.sendVerification(ctx, user, s.regMailer)
	return user, sessionToken, nil
}

// Authenticate no distingue entre usuario inexistente y contraseña incorrecta.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (user domain.User, err error) {
	defer func() { s.metrics.Observe(eventLogin, err) }()

	if s.users == nil || s.hasher == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err = s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Mismo coste de bcrypt que una contraseña incorrecta.
			s.hasher.Verify(password, s.placeholderHash())
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// IsUserNameAvailable indica si ninguna cuenta usa ese nombre (sin distinguir mayusculas).
func (s *UserService) IsUserNameAvailable(ctx context.Context, userName string) (bool, error) {
	if s.users == nil {
		return false, errors.New("user service not configured")
	}
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return false, nil
	}
	_, err := s.users.GetByUserName(ctx, userName)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	return false, fmt.Errorf("lookup user name: %w", err)
}

// GetUser resuelve el sujeto de un token de sesion.
func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUnknownSubject
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// resolveActionSubject valida un token de accion y carga la cuenta a la que apunta.
func (s *UserService) resolveActionSubject(ctx context.Context, token string) (domain.User, error) {
	if s.tokens == nil {
		return domain.User{}, errors.New("token service not configured")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	if claims.Purpose != PurposeAction {
		return domain.User{}, ErrTokenInvalid
	}
	return s.GetUser(ctx, claims.Subject)
}

func (s *UserService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn("placeholder hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *UserService) link(path, token string) string {
	return s.redirectURI + path + "?token=" + token
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
