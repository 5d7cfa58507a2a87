package email

import (
	"context"
	"fmt"
	"net/url"

	"github.com/redmonkez12/growth-api/internal/logging"
)

// Service "delivers" one-time links by writing a log line. No mail is sent.
//
// Links embed the plaintext token, so they are only written when revealLinks is
// set (development). Otherwise the line records that a link was issued.
type Service struct {
	logger      *logging.Logger
	frontendURL string
	publicURL   string
	revealLinks bool
}

func NewService(logger *logging.Logger, frontendURL, publicURL string, revealLinks bool) *Service {
	return &Service{
		logger:      logger,
		frontendURL: frontendURL,
		publicURL:   publicURL,
		revealLinks: revealLinks,
	}
}

// SendVerificationEmail hands out the email verification link
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/api/verify-email?token=%s", s.publicURL, url.QueryEscape(token))
	s.deliver(ctx, "verification", toEmail, link)
	return nil
}

// SendPasswordResetEmail hands out the password reset link
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/reset-password.html?token=%s", s.frontendURL, url.QueryEscape(token))
	s.deliver(ctx, "password_reset", toEmail, link)
	return nil
}

func (s *Service) deliver(ctx context.Context, kind, toEmail, link string) {
	if s.revealLinks {
		s.logger.InfoContext(ctx, "email delivery stubbed", "kind", kind, "email", toEmail, "link", link)
		return
	}
	s.logger.InfoContext(ctx, "email delivery stubbed", "kind", kind, "email", toEmail)
}
