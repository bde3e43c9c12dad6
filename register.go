package ledgerauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	internalaudit "github.com/pennyledger/ledgerauth/internal/audit"
)

// RegisterInput carries the fields of a registration request. Locale and
// Timezone are optional.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Locale   string
	Timezone string
}

// Register creates an account, its default personal workspace, and the first
// token pair. The breach screen fails open: an unreachable corpus never blocks
// registration. A welcome email is triggered fire-and-forget.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	if s == nil || s.users == nil {
		return nil, ErrServiceNotReady
	}

	email := normalizeEmail(input.Email)
	if len(input.Password) < s.config.Password.MinLength {
		return nil, ErrPasswordPolicy
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("register: lookup: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	if s.isBreached(ctx, email, input.Password) {
		return nil, ErrPasswordBreached
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash: %w", err)
	}

	user, err := s.users.CreateUser(ctx, CreateUserInput{
		UserID:        uuid.NewString(),
		Email:         email,
		Name:          input.Name,
		PasswordHash:  hash,
		Locale:        input.Locale,
		Timezone:      input.Timezone,
		WorkspaceName: defaultWorkspaceName(input.Name),
	})
	if err != nil {
		// A concurrent registration can win the race past the lookup above.
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register: create: %w", err)
	}

	pair, err := s.issuePair(ctx, user.UserID, email)
	if err != nil {
		return nil, err
	}

	_ = s.email.SendWelcome(ctx, email, input.Name)
	s.emit(ctx, internalaudit.EventRegister, user.UserID, email, true, nil, nil)

	return &RegisterResult{UserID: user.UserID, Tokens: pair}, nil
}

func defaultWorkspaceName(name string) string {
	if name == "" {
		return "Personal"
	}
	return name + "'s Workspace"
}
