package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bond-service/internal/auth"
	apperrors "github.com/bond-service/internal/errors"
	"github.com/bond-service/internal/logging"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/storage"
)

const (
	maxUsernameLength = 150
	maxNameLength     = 150
	maxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserService handles registration, credentials and account administration
type UserService struct {
	userRepo UserRepository
	hasher   PasswordHasher
}

// NewUserService creates a new user service
func NewUserService(userRepo UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// RegisterInput represents a self-service sign-up
type RegisterInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UpdateUserInput represents changes to an account. Nil fields are left unchanged.
type UpdateUserInput struct {
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Password    *string `json:"password,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// Register creates a regular user
func (s *UserService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	errs := fieldErrors{}
	validateUsername(errs, input.Username)
	validateProfile(errs, input.Email, input.FirstName, input.LastName)
	if input.Password == "" {
		errs.add("password", "This field may not be blank.")
	} else if input.Password != input.Password2 {
		errs.add("password", "Password fields didn't match.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:  input.Username,
		Email:     strings.TrimSpace(input.Email),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}
	if err := s.create(ctx, user, input.Password); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("userId", user.ID).Info("User registered")
	return user, nil
}

// CreateSuperuser creates an administrative account
func (s *UserService) CreateSuperuser(ctx context.Context, username, email, password string) (*models.User, error) {
	errs := fieldErrors{}
	validateUsername(errs, username)
	validateProfile(errs, email, "", "")
	if password == "" {
		errs.add("password", "This field may not be blank.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    username,
		Email:       strings.TrimSpace(email),
		IsSuperuser: true,
	}
	if err := s.create(ctx, user, password); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithField("userId", user.ID).Info("Superuser created")
	return user, nil
}

// Authenticate checks a username and password pair
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewUnauthorizedError(auth.ErrInvalidCredentials.Error())
	}
	if err != nil {
		return nil, storageError("get user", "user", username, err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		logging.FromContext(ctx).WithField("username", username).Warn("Failed login attempt")
		return nil, apperrors.NewUnauthorizedError(auth.ErrInvalidCredentials.Error())
	}
	return user, nil
}

// ListUsers returns every account; superusers only
func (s *UserService) ListUsers(ctx context.Context, principal *auth.Principal) ([]*models.User, error) {
	if err := auth.RequireSuperuser(principal).Err(); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, storageError("list users", "user", "", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// GetUser retrieves an account visible to the principal
func (s *UserService) GetUser(ctx context.Context, id string, principal *auth.Principal) (*models.User, error) {
	return s.accessibleUser(ctx, id, principal)
}

// UpdateUser modifies an account. Only superusers may grant or revoke superuser status.
func (s *UserService) UpdateUser(ctx context.Context, id string, input *UpdateUserInput, partial bool, principal *auth.Principal) (*models.User, error) {
	user, err := s.accessibleUser(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	if input.IsSuperuser != nil && *input.IsSuperuser != user.IsSuperuser && !principal.IsSuperuser {
		return nil, auth.Forbidden.Err()
	}

	errs := fieldErrors{}
	switch {
	case input.Username != nil:
		validateUsername(errs, *input.Username)
		user.Username = *input.Username
	case !partial:
		errs.add("username", msgRequired)
	}
	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	validateProfile(errs, user.Email, user.FirstName, user.LastName)
	if input.Password != nil && *input.Password == "" {
		errs.add("password", "This field may not be blank.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to hash password", err)
		}
		user.PasswordHash = hash
	}
	if input.IsSuperuser != nil {
		user.IsSuperuser = *input.IsSuperuser
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, storageError("update user", "user", id, err)
	}
	return user, nil
}

// DeleteUser removes an account with its portfolios and bonds
func (s *UserService) DeleteUser(ctx context.Context, id string, principal *auth.Principal) error {
	if _, err := s.accessibleUser(ctx, id, principal); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return storageError("delete user", "user", id, err)
	}

	logging.FromContext(ctx).WithField("userId", id).Info("User deleted")
	return nil
}

func (s *UserService) create(ctx context.Context, user *models.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperrors.NewInternalError("failed to hash password", err)
	}
	user.PasswordHash = hash

	if err := s.userRepo.Create(ctx, user); err != nil {
		return storageError("create user", "user", user.ID, err)
	}
	return nil
}

// accessibleUser resolves an account that is the principal's own, or any account for superusers
func (s *UserService) accessibleUser(ctx context.Context, id string, principal *auth.Principal) (*models.User, error) {
	if err := auth.RequireAuthenticated(principal).Err(); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get user", "user", id, err)
	}
	if err := auth.Authorize(principal, user.ID).Err(); err != nil {
		return nil, err
	}
	return user, nil
}

func validateUsername(errs fieldErrors, username string) {
	errs.text("username", username, maxUsernameLength)
	if strings.TrimSpace(username) != "" && !usernamePattern.MatchString(username) {
		errs.add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
}

func validateProfile(errs fieldErrors, email, firstName, lastName string) {
	if len(email) > maxEmailLength {
		errs.add("email", "Ensure this field has no more than 254 characters.")
	} else if email != "" && !strings.Contains(email, "@") {
		errs.add("email", "Enter a valid email address.")
	}
	if len(firstName) > maxNameLength {
		errs.add("first_name", "Ensure this field has no more than 150 characters.")
	}
	if len(lastName) > maxNameLength {
		errs.add("last_name", "Ensure this field has no more than 150 characters.")
	}
}
