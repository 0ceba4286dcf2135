package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"credential-service/internal/email"
)

// RequestPasswordReset envia un enlace de reset si el email existe.
// Para un email desconocido devuelve nil sin emitir token ni enviar correo.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) (err error) {
	defer func() { s.metrics.Observe(eventResetRequest, err) }()

	if s.users == nil || s.tokens == nil {
		return errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	token, err := s.tokens.IssueAction(user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	return s.deliver(ctx, s.mailer, email.Message{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: email.TemplateResetPassword,
		Data: map[string]string{
			"name":       user.FirstName,
			"link":       s.link("/reset-password", token),
			"expires_in": s.tokens.ActionTTL().String(),
		},
	})
}

// ResetPassword canjea un token de reset y reemplaza el hash.
// El token sigue siendo valido hasta que expira.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.metrics.Observe(eventResetPassword, err) }()

	user, err := s.resolveActionSubject(ctx, token)
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, passwordHash, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnknownSubject
		}
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}
