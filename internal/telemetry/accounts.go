package telemetry

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/AquaSenseApp/aquasense/internal/apperr"
	"github.com/AquaSenseApp/aquasense/internal/auth"
	"github.com/AquaSenseApp/aquasense/internal/crypto"
	"github.com/AquaSenseApp/aquasense/internal/model"
	"github.com/AquaSenseApp/aquasense/internal/repository"
)

const minPasswordLength = 8

type RegisterAccountInput struct {
	Username         string
	FullName         string
	Email            string
	Password         string
	OrganizationType string
}

type LoginResult struct {
	Token     string
	AccountID string
}

type AccountService struct {
	cfg  Config
	deps Deps
}

func (s *AccountService) Register(ctx context.Context, in RegisterAccountInput) (model.Account, error) {
	username := strings.TrimSpace(in.Username)
	fullName := strings.TrimSpace(in.FullName)
	email := normalizeEmail(in.Email)
	orgType := model.OrganizationType(strings.TrimSpace(in.OrganizationType))

	if username == "" || fullName == "" || email == "" || in.Password == "" || orgType == "" {
		return model.Account{}, apperr.Validation("missing_fields")
	}
	if !validEmail(email) {
		return model.Account{}, apperr.Validation("invalid_email")
	}
	if len(in.Password) < minPasswordLength {
		return model.Account{}, apperr.Validation("password_too_short")
	}
	if !orgType.Valid() {
		return model.Account{}, apperr.Validation("invalid_organization_type")
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return model.Account{}, apperr.Store("server_error", err)
	}
	now := s.deps.Now()
	account := model.Account{
		ID:               s.deps.NewID(),
		Username:         username,
		FullName:         fullName,
		Email:            email,
		PasswordHash:     hash,
		OrganizationType: orgType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.deps.Store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Account{}, apperr.Conflict("email_taken", err)
		}
		return model.Account{}, storeFailure(err)
	}
	s.deps.Logger.Info("account registered", zap.String("account_id", account.ID), zap.String("organization_type", string(orgType)))
	return account, nil
}

// Login exchanges credentials for an access token. Unknown emails and wrong
// passwords fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, apperr.Validation("missing_fields")
	}
	account, err := s.deps.Store.GetAccountByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, apperr.Auth("invalid_credentials")
	}
	if err != nil {
		return LoginResult{}, storeFailure(err)
	}
	if err := crypto.CheckPassword(account.PasswordHash, password); err != nil {
		return LoginResult{}, apperr.Auth("invalid_credentials")
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		AccountID: account.ID,
		Email:     account.Email,
	})
	if err != nil {
		return LoginResult{}, apperr.Store("server_error", err)
	}
	return LoginResult{Token: token, AccountID: account.ID}, nil
}

// DeleteAccount removes the caller's account with all its sensors, readings
// and alerts.
func (s *AccountService) DeleteAccount(ctx context.Context, callerID string) error {
	if callerID == "" {
		return apperr.Auth("unauthenticated")
	}
	deleted, err := s.deps.Store.DeleteAccount(ctx, callerID)
	if err != nil {
		return storeFailure(err)
	}
	if !deleted {
		return apperr.NotFound("account_not_found")
	}
	s.deps.Logger.Info("account deleted", zap.String("account_id", callerID))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
