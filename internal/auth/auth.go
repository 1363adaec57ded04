// Package auth registers and authenticates practice accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ent0n29/speakwell/internal/policy"
	"github.com/ent0n29/speakwell/internal/store"
)

const (
	DefaultAdminEmail    = "coach@example.com"
	DefaultAdminPassword = "practice123"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")

	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	letterPattern = regexp.MustCompile(`[A-Za-z]`)
	digitPattern  = regexp.MustCompile(`[0-9]`)
)

// ValidationError lists every problem found in a form, in display order.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, " ")
}

// ValidateEmail returns a problem message or "".
func ValidateEmail(email string) string {
	if email == "" {
		return "Email is required."
	}
	if !emailPattern.MatchString(email) {
		return "Enter a valid email address."
	}
	return ""
}

func ValidatePassword(password string) []string {
	if password == "" {
		return []string{"Password is required."}
	}
	var problems []string
	if len(password) < 8 {
		problems = append(problems, "Password must be at least 8 characters long.")
	}
	if !letterPattern.MatchString(password) {
		problems = append(problems, "Password must include at least one letter.")
	}
	if !digitPattern.MatchString(password) {
		problems = append(problems, "Password must include at least one number.")
	}
	return problems
}

type Service struct {
	users store.UserStore
	log   logrus.FieldLogger
	cost  int
}

func NewService(users store.UserStore, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{users: users, log: log.WithField("component", "auth"), cost: bcrypt.DefaultCost}
}

// Register creates a user account. All form problems are reported together.
func (s *Service) Register(ctx context.Context, email, password, confirm string) (store.User, error) {
	email = strings.TrimSpace(email)

	var problems []string
	if p := ValidateEmail(email); p != "" {
		problems = append(problems, p)
	}
	if email != "" {
		if _, err := s.users.GetUser(ctx, email); err == nil {
			problems = append(problems, "An account with this email already exists.")
		} else if !errors.Is(err, store.ErrNotFound) {
			return store.User{}, err
		}
	}
	problems = append(problems, ValidatePassword(password)...)
	switch {
	case confirm == "":
		problems = append(problems, "Please confirm your password.")
	case password != confirm:
		problems = append(problems, "Passwords do not match.")
	}
	if len(problems) > 0 {
		return store.User{}, &ValidationError{Problems: problems}
	}

	u, err := s.save(ctx, email, password, store.RoleUser)
	if err != nil {
		return store.User{}, err
	}
	s.log.WithField("email", policy.MaskEmail(u.Email)).Info("account registered")
	return u, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (store.User, error) {
	u, err := s.users.GetUser(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Bootstrap installs the admin account, replacing any stored password so
// the configured credentials always work after a restart.
func (s *Service) Bootstrap(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.save(ctx, email, password, store.RoleAdmin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if email == DefaultAdminEmail && password == DefaultAdminPassword {
		s.log.Warn("default admin credentials in use; set APP_ADMIN_EMAIL and APP_ADMIN_PASSWORD")
	}
	return nil
}

func (s *Service) save(ctx context.Context, email, password string, role store.Role) (store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := store.User{
		Email:        store.NormalizeEmail(email),
		PasswordHash: string(hash),
		Role:         role,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.users.PutUser(ctx, u); err != nil {
		return store.User{}, err
	}
	return u, nil
}
