package blog

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/thoughtnest/thoughtnest/internal/database"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything after 72 bytes
	maxPasswordBytes  = 72
	maxUsernameLength = 150
	maxBioLength      = 500
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// RegisterInput holds the fields of the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
}

// ProfileInput holds the fields of the profile settings form.
// An empty Email keeps the current address.
type ProfileInput struct {
	FirstName          string
	LastName           string
	Email              string
	Bio                string
	Location           string
	Website            string
	Twitter            string
	GitHub             string
	LinkedIn           string
	EmailNotifications bool
}

// ChangePasswordInput holds the fields of the change password form.
type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// Register creates a user and its profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*database.User, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AllowRegistration {
		return nil, ErrRegistrationDisabled
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if in.Username == "" || in.Email == "" || in.Password == "" || in.PasswordConfirm == "" {
		return nil, validationf("Please fill in all required fields.")
	}
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, validationf("Enter a valid email address.")
	}
	if in.Password != in.PasswordConfirm {
		return nil, validationf("Passwords do not match.")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	taken, err := s.db.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validationf("Username is already taken.")
	}
	taken, err = s.db.EmailExists(ctx, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validationf("Email is already registered.")
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateJoined:   s.now(),
	}
	if err := s.db.CreateUser(ctx, user, database.NewProfile()); err != nil {
		if database.IsDuplicate(err) {
			return nil, validationf("Username or email is already taken.")
		}
		return nil, err
	}
	log.Info("Registered user", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// dummyHash is compared against when the username does not exist so both
// failure paths take the same time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("thoughtnest-dummy-password"), bcrypt.DefaultCost)

// Authenticate checks the credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if database.IsNotFound(err) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		log.Debug("failed login attempt", "username", username)
		return nil, errInvalidCredentials
	}

	now := s.now()
	if err := s.db.SetLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("failed to record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

// GetUser returns the user with its profile.
func (s *Service) GetUser(ctx context.Context, userID uint) (*database.User, error) {
	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "User", userID)
	}
	return user, nil
}

// UpdateProfile updates the account names, email and the profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*database.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	in.Email = strings.TrimSpace(in.Email)
	in.Bio = strings.TrimSpace(in.Bio)
	if utf8.RuneCountInString(in.Bio) > maxBioLength {
		return nil, validationf("Bio must be at most %d characters.", maxBioLength)
	}
	if in.Email != "" && !strings.EqualFold(in.Email, user.Email) {
		if !emailPattern.MatchString(in.Email) {
			return nil, validationf("Enter a valid email address.")
		}
		taken, err := s.db.EmailExists(ctx, in.Email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, validationf("This email is already used by another account.")
		}
	}

	user.FirstName = strings.TrimSpace(in.FirstName)
	user.LastName = strings.TrimSpace(in.LastName)
	if in.Email != "" {
		user.Email = in.Email
	}

	profile := user.Profile
	if profile == nil {
		profile = database.NewProfile()
		profile.UserID = user.ID
	}
	profile.Bio = in.Bio
	profile.Location = strings.TrimSpace(in.Location)
	profile.Website = strings.TrimSpace(in.Website)
	profile.Twitter = strings.TrimSpace(in.Twitter)
	profile.GitHub = strings.TrimSpace(in.GitHub)
	profile.LinkedIn = strings.TrimSpace(in.LinkedIn)
	profile.EmailNotifications = in.EmailNotifications

	err = s.db.Transaction(ctx, func(tx database.DB) error {
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		return tx.UpdateProfile(ctx, profile)
	})
	if err != nil {
		if database.IsDuplicate(err) {
			return nil, validationf("This email is already used by another account.")
		}
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// ChangePassword replaces the password after checking the old one.
// Sessions only carry the user id, so the caller stays logged in.
func (s *Service) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return validationf("Please fill in all password fields.")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.OldPassword)) != nil {
		return &AuthenticationError{Message: "Your old password is incorrect."}
	}
	if in.NewPassword != in.ConfirmPassword {
		return validationf("New passwords do not match.")
	}
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	hash, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return wrapNotFound(err, "User", userID)
	}
	log.Info("Changed password", "user_id", user.ID)
	return nil
}

// BootstrapAdmin creates a staff superuser unless the username already exists.
// It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, username, email, password string) (bool, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return false, validationf("Administrator username, email and password are required.")
	}

	exists, err := s.db.UsernameExists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := validateUsername(username); err != nil {
		return false, err
	}
	if !emailPattern.MatchString(email) {
		return false, validationf("Enter a valid email address.")
	}
	if len(password) > maxPasswordBytes {
		return false, validationf("Password must be at most %d bytes long.", maxPasswordBytes)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return false, err
	}
	user := &database.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
		DateJoined:   s.now(),
	}
	if err := s.db.CreateUser(ctx, user, database.NewProfile()); err != nil {
		if database.IsDuplicate(err) {
			// the username lost a race, or the email belongs to another account
			if exists, checkErr := s.db.UsernameExists(ctx, username); checkErr == nil && exists {
				return false, nil
			}
			return false, validationf("Email is already registered.")
		}
		return false, err
	}
	return true, nil
}

// DeleteUser removes a user and everything they own. Staff cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actor *database.User, userID uint) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if actor.ID == userID {
		return validationf("You cannot delete your own account.")
	}
	target, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.IsSuperuser && !actor.IsSuperuser {
		return permissionf("Only superusers can delete superusers.")
	}
	if err := s.db.DeleteUser(ctx, userID); err != nil {
		return wrapNotFound(err, "User", userID)
	}
	log.Info("Deleted user", "user_id", userID, "username", target.Username, "by", actor.Username)
	return nil
}

// SetStaff grants or revokes the staff flag. Only superusers may do this.
func (s *Service) SetStaff(ctx context.Context, actor *database.User, userID uint, staff bool) error {
	if actor == nil || !actor.IsSuperuser {
		return permissionf("Only superusers can change staff status.")
	}
	if actor.ID == userID && !staff {
		return validationf("You cannot remove your own staff status.")
	}
	if err := s.db.SetStaff(ctx, userID, staff); err != nil {
		return wrapNotFound(err, "User", userID)
	}
	log.Info("Changed staff status", "user_id", userID, "staff", staff, "by", actor.Username)
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", validationf("Password must be at most %d bytes long.", maxPasswordBytes)
		}
		return "", err
	}
	return string(hash), nil
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return validationf("Username must be at most %d characters.", maxUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return validationf("Username may only contain letters, digits and @/./+/-/_ characters.")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return validationf("Password must be at least %d characters long.", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return validationf("Password must be at most %d bytes long.", maxPasswordBytes)
	}
	return nil
}
