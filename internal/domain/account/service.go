package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	apperrors "github.com/yanqian/user-accounts/pkg/errors"
)

// Service exposes account workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (View, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Authenticate(ctx context.Context, token string) (Session, error)
	Logout(ctx context.Context, id int64, token string) error
	LogoutAll(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (View, error)
	List(ctx context.Context) ([]View, error)
	Update(ctx context.Context, id int64, patch Patch) (View, error)
	SetAvatar(ctx context.Context, id int64, raw []byte) error
	ClearAvatar(ctx context.Context, id int64) error
	Avatar(ctx context.Context, id int64) ([]byte, error)
	Delete(ctx context.Context, id int64) (View, error)
}

type service struct {
	repo       Repository
	avatars    AvatarStore
	hasher     Hasher
	issuer     TokenIssuer
	transcoder Transcoder
	logger     *slog.Logger
}

// NewService constructs a Service instance.
func NewService(repo Repository, avatars AvatarStore, hasher Hasher, issuer TokenIssuer, transcoder Transcoder, logger *slog.Logger) Service {
	return &service{
		repo:       repo,
		avatars:    avatars,
		hasher:     hasher,
		issuer:     issuer,
		transcoder: transcoder,
		logger:     logger.With("component", "account.service"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (View, error) {
	req = normalizeRegister(req)
	if err := validateRegister(req); err != nil {
		return View{}, err
	}
	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return View{}, apperrors.Wrap("account_error", "failed to hash password", err)
	}
	acc, err := s.repo.Create(ctx, NewAccount{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashed,
		Age:          req.Age,
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return View{}, apperrors.Wrap("email_exists", "email already registered", err)
		}
		return View{}, apperrors.Wrap("account_error", "failed to create account", err)
	}
	s.logger.Info("account registered", "account_id", acc.ID)
	return ToView(acc), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	acc, err := s.findByCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	token, err := s.issuer.Issue(acc.ID)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("account_error", "failed to issue token", err)
	}
	acc, err = s.repo.AppendToken(ctx, acc.ID, token)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("account_error", "failed to store session", err)
	}
	return LoginResponse{User: ToView(acc), Token: token}, nil
}

// findByCredentials fails with the same error whether the email is unknown or
// the password does not match.
func (s *service) findByCredentials(ctx context.Context, email, password string) (Account, error) {
	invalid := apperrors.Wrap("invalid_credentials", "invalid email/password", nil)
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Account{}, invalid
	}
	acc, found, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return Account{}, apperrors.Wrap("account_error", "failed to fetch account", err)
	}
	if !found {
		return Account{}, invalid
	}
	if !s.hasher.Verify(strings.TrimSpace(password), acc.PasswordHash) {
		return Account{}, invalid
	}
	return acc, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (Session, error) {
	unauthorized := apperrors.Wrap("unauthorized", "please authenticate", nil)
	if strings.TrimSpace(token) == "" {
		return Session{}, unauthorized
	}
	id, err := s.issuer.Verify(token)
	if err != nil {
		return Session{}, unauthorized
	}
	acc, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, apperrors.Wrap("unauthorized", "please authenticate", err)
	}
	if !found || !acc.Tokens.Contains(token) {
		return Session{}, unauthorized
	}
	return Session{Account: acc, Token: token}, nil
}

func (s *service) Logout(ctx context.Context, id int64, token string) error {
	if _, err := s.repo.RemoveToken(ctx, id, token); err != nil {
		return s.mapStoreErr(err, "failed to end session")
	}
	return nil
}

func (s *service) LogoutAll(ctx context.Context, id int64) error {
	if _, err := s.repo.ClearTokens(ctx, id); err != nil {
		return s.mapStoreErr(err, "failed to end sessions")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id int64) (View, error) {
	acc, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return ToView(acc), nil
}

func (s *service) List(ctx context.Context) ([]View, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap("account_error", "failed to list accounts", err)
	}
	views := make([]View, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, ToView(acc))
	}
	return views, nil
}

// Update applies a validated patch. The stored hash only changes when the
// patch carries a password.
func (s *service) Update(ctx context.Context, id int64, patch Patch) (View, error) {
	patch = normalizePatch(patch)
	if err := validatePatch(patch); err != nil {
		return View{}, err
	}
	acc, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if patch.Name != nil {
		acc.Name = *patch.Name
	}
	if patch.Email != nil {
		acc.Email = *patch.Email
	}
	if patch.Age != nil {
		age := *patch.Age
		acc.Age = &age
	}
	if patch.Password != nil {
		hashed, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return View{}, apperrors.Wrap("account_error", "failed to hash password", err)
		}
		acc.PasswordHash = hashed
	}
	updated, err := s.repo.Update(ctx, acc)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return View{}, apperrors.Wrap("email_exists", "email already registered", err)
		}
		return View{}, s.mapStoreErr(err, "failed to update account")
	}
	return ToView(updated), nil
}

func (s *service) SetAvatar(ctx context.Context, id int64, raw []byte) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	encoded, err := s.transcoder.Transcode(raw)
	if err != nil {
		return apperrors.Wrap("unsupported_media", "could not process image", err)
	}
	if err := s.avatars.PutAvatar(ctx, id, encoded); err != nil {
		return s.mapStoreErr(err, "failed to store avatar")
	}
	return nil
}

func (s *service) ClearAvatar(ctx context.Context, id int64) error {
	if err := s.avatars.DeleteAvatar(ctx, id); err != nil {
		return s.mapStoreErr(err, "failed to remove avatar")
	}
	return nil
}

func (s *service) Avatar(ctx context.Context, id int64) ([]byte, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	image, found, err := s.avatars.GetAvatar(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap("account_error", "failed to load avatar", err)
	}
	if !found || len(image) == 0 {
		return nil, apperrors.Wrap("not_found", "avatar not found", nil)
	}
	return image, nil
}

// Delete removes the account permanently and returns its last state.
func (s *service) Delete(ctx context.Context, id int64) (View, error) {
	acc, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return View{}, apperrors.Wrap("account_error", "failed to delete account", err)
	}
	if !deleted {
		return View{}, apperrors.Wrap("not_found", "account not found", nil)
	}
	if err := s.avatars.DeleteAvatar(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to remove avatar of deleted account", "account_id", id, "error", err)
	}
	s.logger.Info("account deleted", "account_id", id)
	return ToView(acc), nil
}

func (s *service) load(ctx context.Context, id int64) (Account, error) {
	acc, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Account{}, apperrors.Wrap("account_error", "failed to load account", err)
	}
	if !found {
		return Account{}, apperrors.Wrap("not_found", "account not found", nil)
	}
	return acc, nil
}

func (s *service) mapStoreErr(err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.Wrap("not_found", "account not found", err)
	}
	return apperrors.Wrap("account_error", message, err)
}
