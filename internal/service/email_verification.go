package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"credential-service/internal/domain"
	"credential-service/internal/email"
)

// InitiateVerification emite un token de accion y lo envia al email de la cuenta.
// No persiste nada: un fallo de entrega no deja estado que revertir.
func (s *UserService) InitiateVerification(ctx context.Context, user domain.User) error {
	return s.sendVerification(ctx, user, s.mailer)
}

// VerifyEmail canjea un token de verificacion. Canjearlo de nuevo no es error.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (user domain.User, err error) {
	defer func() { s.metrics.Observe(eventVerifyEmail, err) }()

	user, err = s.resolveActionSubject(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsEmailVerified {
		return user, nil
	}

	now := s.now()
	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUnknownSubject
		}
		return domain.User{}, fmt.Errorf("mark email verified: %w", err)
	}
	user.IsEmailVerified = true
	user.UpdatedAt = now
	return user, nil
}

// ResendVerification reenvia el correo solo si la cuenta sigue sin verificar.
// Devuelve false, sin enviar nada, si ya estaba verificada.
func (s *UserService) ResendVerification(ctx context.Context, userID string) (sent bool, err error) {
	defer func() { s.metrics.Observe(eventResend, err) }()

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsEmailVerified {
		return false, nil
	}
	if err := s.sendVerification(ctx, user, s.mailer); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) sendVerification(ctx context.Context, user domain.User, sender email.Sender) error {
	if s.tokens == nil {
		return errors.New("token service not configured")
	}
	token, err := s.tokens.IssueAction(user.ID)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	return s.deliver(ctx, sender, email.Message{
		To:       user.Email,
		Subject:  "Verify your email address",
		Template: email.TemplateVerifyEmail,
		Data: map[string]string{
			"name":       user.FirstName,
			"link":       s.link("/verify-email", token),
			"expires_in": s.tokens.ActionTTL().String(),
		},
	})
}

func (s *UserService) deliver(ctx context.Context, sender email.Sender, msg email.Message) error {
	if sender == nil {
		s.metrics.Observe(eventEmailDelivered, ErrEmailSendFailure)
		return ErrEmailSendFailure
	}
	if err := sender.Send(ctx, msg); err != nil {
		s.metrics.Observe(eventEmailDelivered, err)
		s.logger.Warn("send email failed",
			zap.Error(err),
			zap.String("email", msg.To),
			zap.String("template", msg.Template),
		)
		return fmt.Errorf("%w: %v", ErrEmailSendFailure, err)
	}
	s.metrics.Observe(eventEmailDelivered, nil)
	return nil
}
