package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidMagicLink = errors.New("invalid or expired token")
	ErrInvalidToken     = errors.New("invalid token")
)

type magicLink struct {
	email     string
	expiresAt time.Time
}

type AuthService struct {
	mu         sync.Mutex
	tokens     map[string]magicLink // one-time token -> pending login
	jwtSecret  []byte
	tokenTTL   time.Duration
	linkTTL    time.Duration
	smtpConfig SMTPConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthService(cfg AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		tokens:     make(map[string]magicLink),
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		linkTTL:    cfg.MagicLinkTTL,
		smtpConfig: cfg.SMTP,
		logger:     logger,
		now:        time.Now,
	}
}

// GenerateMagicLink creates a one-time token and emails the login link when
// SMTP is configured. The link is returned for development use.
func (s *AuthService) GenerateMagicLink(email string, baseURL string) (string, error) {
	token, err := s.generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.mu.Lock()
	s.pruneLocked()
	s.tokens[token] = magicLink{email: strings.ToLower(email), expiresAt: s.now().Add(s.linkTTL)}
	s.mu.Unlock()

	link := fmt.Sprintf("%s/api/auth/magic-link?token=%s", baseURL, token)

	if s.smtpConfig.Host != "" {
		if err := s.sendMagicLinkEmail(email, link); err != nil {
			s.logger.Warn("Failed to send magic link email", zap.String("email", email), zap.Error(err))
		}
	}

	return link, nil
}

// VerifyMagicLinkToken consumes a one-time token and returns its email.
func (s *AuthService) VerifyMagicLinkToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.tokens[token]
	if !exists {
		return "", ErrInvalidMagicLink
	}
	delete(s.tokens, token)
	if s.now().After(link.expiresAt) {
		return "", ErrInvalidMagicLink
	}
	return link.email, nil
}

// pruneLocked drops expired magic links. Callers hold s.mu.
func (s *AuthService) pruneLocked() {
	now := s.now()
	for token, link := range s.tokens {
		if now.After(link.expiresAt) {
			delete(s.tokens, token)
		}
	}
}

// CreateJWT generates a JWT token for a user
func (s *AuthService) CreateJWT(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   s.now().Add(s.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT verifies a JWT token and returns the email
func (s *AuthService) VerifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", fmt.Errorf("%w: email claim missing", ErrInvalidToken)
	}
	return email, nil
}

func (s *AuthService) generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *AuthService) sendMagicLinkEmail(to, link string) error {
	if s.smtpConfig.Host == "" || s.smtpConfig.Port == "" ||
		s.smtpConfig.Username == "" || s.smtpConfig.Password == "" {
		return errors.New("SMTP not fully configured")
	}

	auth := smtp.PlainAuth("", s.smtpConfig.Username, s.smtpConfig.Password, s.smtpConfig.Host)

	from := s.smtpConfig.From
	if from == "" {
		from = s.smtpConfig.Username
	}

	subject := "Your dealerdesk sign-in link"
	body := fmt.Sprintf("Use the link below to sign in to the dealership back office:\n\n%s\n\nThe link expires in %s. If you didn't request it, you can ignore this email.", link, s.linkTTL)
	message := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\n%s", from, to, subject, body)

	addr := fmt.Sprintf("%s:%s", s.smtpConfig.Host, s.smtpConfig.Port)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
