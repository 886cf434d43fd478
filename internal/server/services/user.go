// Package services contains server-side business logic. This file implements
// UserService: registration (with or without a VIP record), login, logout
// and the authenticated membership views.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/vipclub/internal/common"
	"github.com/dmitrijs2005/vipclub/internal/dbx"
	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/vips"
	"github.com/dmitrijs2005/vipclub/internal/server/revocation"
)

// Auth outcome labels.
const (
	opLogin    = "login"
	opLogout   = "logout"
	opRegister = "register"
	opGate     = "authenticate"

	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// TokenTypeBearer is the token_type reported with every issued token.
const TokenTypeBearer = "bearer"

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// Dashboard is the authenticated membership view.
type Dashboard struct {
	Username string      `json:"username"`
	VIP      *models.VIP `json:"vip"`
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.Hasher
	tokens      *auth.TokenManager
	revocations revocation.Store
	gate        *auth.Gate
	log         logging.Logger
	metrics     *metrics.Metrics
}

func NewUserService(
	db *sql.DB,
	rm repomanager.RepositoryManager,
	hasher auth.Hasher,
	tokens *auth.TokenManager,
	revocations revocation.Store,
	log logging.Logger,
	m *metrics.Metrics,
) *UserService {
	return &UserService{
		db:          db,
		repomanager: rm,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		gate:        auth.NewGate(revocations, tokens),
		log:         log.With("module", "users"),
		metrics:     m,
	}
}

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(username) > models.MaxUserNameLength {
		return fmt.Errorf("%w: username longer than %d characters", ErrInvalidInput, models.MaxUserNameLength)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	return nil
}

// Register creates a credential. A username already present yields
// auth.ErrUsernameTaken and leaves the existing credential untouched.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.GetUserByLogin(ctx, username)
	switch {
	case err == nil:
		s.metrics.AuthOutcome(opRegister, outcomeRejected)
		return nil, auth.ErrUsernameTaken
	case !errors.Is(err, common.ErrorNotFound):
		s.metrics.AuthOutcome(opRegister, outcomeError)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	u, err := repo.Create(ctx, &models.User{UserName: username, PasswordHash: digest})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, common.ErrorAlreadyExists) {
			s.metrics.AuthOutcome(opRegister, outcomeRejected)
			return nil, auth.ErrUsernameTaken
		}
		s.metrics.AuthOutcome(opRegister, outcomeError)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.metrics.AuthOutcome(opRegister, outcomeOK)
	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Signup registers a credential together with its VIP record in a single
// transaction. vip.ID is overwritten with the new user's ID.
func (s *UserService) Signup(ctx context.Context, username, password string, vip *models.VIP) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	if vip == nil || strings.TrimSpace(vip.Code) == "" {
		return nil, fmt.Errorf("%w: membership code is required", ErrInvalidInput)
	}
	if strings.TrimSpace(vip.Phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{UserName: username, PasswordHash: digest})
		if err != nil {
			return err
		}
		vip.ID = u.ID
		if _, err := s.repomanager.VIPs(tx).Create(ctx, vip); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			s.metrics.AuthOutcome(opRegister, outcomeRejected)
			return nil, auth.ErrUsernameTaken
		case errors.Is(err, vips.ErrCodeTaken):
			s.metrics.AuthOutcome(opRegister, outcomeRejected)
			return nil, ErrMembershipCodeTaken
		}
		s.metrics.AuthOutcome(opRegister, outcomeError)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.metrics.AuthOutcome(opRegister, outcomeOK)
	s.log.Info(ctx, "user and vip registered", "user_id", user.ID)
	return user, nil
}

// Login verifies the password and issues a token. Unknown users and wrong
// passwords both yield auth.ErrInvalidCredentials; the unknown-user path
// still pays for one bcrypt comparison.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.metrics.AuthOutcome(opLogin, outcomeError)
			return nil, fmt.Errorf("%w: %w", auth.ErrUnavailable, err)
		}
		if _, err := s.hasher.Verify(ctx, password, s.hasher.DummyDigest()); err != nil {
			s.metrics.AuthOutcome(opLogin, outcomeError)
			return nil, err
		}
		s.metrics.AuthOutcome(opLogin, outcomeRejected)
		return nil, auth.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		s.metrics.AuthOutcome(opLogin, outcomeError)
		return nil, err
	}
	if !ok {
		s.metrics.AuthOutcome(opLogin, outcomeRejected)
		return nil, auth.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.UserName)
	if err != nil {
		s.metrics.AuthOutcome(opLogin, outcomeError)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.metrics.AuthOutcome(opLogin, outcomeOK)
	return &LoginResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

// Authenticate runs the auth gate on token.
func (s *UserService) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	id, err := s.gate.Authenticate(ctx, token)
	switch {
	case err == nil:
		s.metrics.AuthOutcome(opGate, outcomeOK)
	case auth.IsTokenRejection(err):
		s.metrics.AuthOutcome(opGate, outcomeRejected)
	default:
		s.metrics.AuthOutcome(opGate, outcomeError)
	}
	return id, err
}

// Logout authenticates token and revokes it until it can no longer verify,
// which is its expiry plus the verifier's leeway. Logging out twice with the same token fails the second time with auth.ErrRevoked.
func (s *UserService) Logout(ctx context.Context, token string) error {
	id, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	if err := s.revocations.Revoke(ctx, token, id.ExpiresAt.Add(s.tokens.Leeway())); err != nil {
		s.metrics.AuthOutcome(opLogout, outcomeError)
		return fmt.Errorf("%w: %w", auth.ErrUnavailable, err)
	}

	s.metrics.Revoked()
	s.metrics.AuthOutcome(opLogout, outcomeOK)
	s.log.Info(ctx, "user logged out", "token_id", id.TokenID)
	return nil
}

// Dashboard loads the membership view for username.
func (s *UserService) Dashboard(ctx context.Context, username string) (*Dashboard, error) {
	user, vip, err := s.loadMember(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) && user != nil {
			return nil, ErrVIPNotFound
		}
		return nil, err
	}
	return &Dashboard{Username: user.UserName, VIP: vip}, nil
}

// Membership returns the VIP record carrying a membership code.
func (s *UserService) Membership(ctx context.Context, username string) (*models.VIP, error) {
	user, vip, err := s.loadMember(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) && user != nil {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	if strings.TrimSpace(vip.Code) == "" {
		return nil, ErrMembershipNotFound
	}
	return vip, nil
}

// loadMember returns the user and VIP record. A missing VIP record comes
// back as common.ErrorNotFound with user set.
func (s *UserService) loadMember(ctx context.Context, username string) (*models.User, *models.VIP, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	vip, err := s.repomanager.VIPs(s.db).GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return user, nil, common.ErrorNotFound
		}
		return user, nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return user, vip, nil
}
