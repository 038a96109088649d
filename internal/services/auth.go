package services

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/citizone/authserver/internal/otp"
	"github.com/citizone/authserver/internal/password"
	"github.com/citizone/authserver/internal/store"
	"github.com/citizone/authserver/types"
)

const minAge = 18

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// UserRepository defines the credential store operations the auth service
// depends on.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByPhone(ctx context.Context, phone string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// OTPSender delivers a one-time code to a phone number. Implementations are
// delivery collaborators (SMS gateway, message queue); the auth service only
// hands codes over.
type OTPSender interface {
	Send(ctx context.Context, phone, code string) error
}

// AuthService orchestrates registration, login, and the OTP lifecycle
// against the credential store, password hasher, and OTP manager.
type AuthService struct {
	repo   UserRepository
	otp    *otp.Manager
	sender OTPSender
	now    func() time.Time
}

func NewAuthService(repo UserRepository, otpManager *otp.Manager, sender OTPSender) *AuthService {
	return &AuthService{
		repo:   repo,
		otp:    otpManager,
		sender: sender,
		now:    time.Now,
	}
}

// RegisterInput carries the seven required email-registration fields.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Age             int
	Gender          string
	Email           string
	Password        string
	ConfirmPassword string
}

// RegisterByEmail creates a user with a hashed password and the default
// role. The returned user never includes the password digest in responses.
func (s *AuthService) RegisterByEmail(ctx context.Context, in RegisterInput) (types.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Email = normalizeEmail(in.Email)

	if in.FirstName == "" || in.LastName == "" || in.Age == 0 || in.Gender == "" ||
		in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return types.User{}, validationError("all fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return types.User{}, validationError("passwords do not match")
	}
	if in.Age < minAge {
		return types.User{}, validationError("age must be at least 18")
	}
	if !validGender(in.Gender) {
		return types.User{}, validationError("gender must be male, female, or other")
	}
	if !validEmail(in.Email) {
		return types.User{}, validationError("invalid email address")
	}

	_, err := s.repo.GetByEmail(ctx, in.Email)
	if err == nil {
		return types.User{}, conflictError("user already exists with this email")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, s.internal("register: lookup failed", err)
	}

	digest, err := password.Hash(in.Password)
	if err != nil {
		return types.User{}, s.internal("register: hash failed", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Age:          in.Age,
		Gender:       in.Gender,
		Email:        in.Email,
		PasswordHash: digest,
		Role:         types.RoleUser,
	})
	if err != nil {
		// Concurrent registrations for the same email can both pass the
		// existence check; the store's unique index decides the loser.
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, conflictError("user already exists with this email")
		}
		return types.User{}, s.internal("register: create failed", err)
	}
	return user, nil
}

// LoginByEmail verifies an email/password pair. Unknown email and wrong
// password return the same message so callers cannot enumerate accounts.
func (s *AuthService) LoginByEmail(ctx context.Context, email, pass string) (types.User, error) {
	email = normalizeEmail(email)
	if email == "" || pass == "" {
		return types.User{}, validationError("email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, authenticationError("invalid credentials")
		}
		return types.User{}, s.internal("login: lookup failed", err)
	}
	if user.IsBlocked {
		return types.User{}, authorizationError("account is blocked, contact administrator")
	}
	if !password.Compare(pass, user.PasswordHash) {
		return types.User{}, authenticationError("invalid credentials")
	}

	return s.touchLastLogin(ctx, user)
}

// MobileAuth issues a fresh OTP for the phone, creating the user on first
// contact. Delivery failures are logged but never surfaced: the caller gets
// the same acknowledgement either way.
func (s *AuthService) MobileAuth(ctx context.Context, name, phone string) error {
	phone = strings.TrimSpace(phone)
	name = strings.TrimSpace(name)
	if !phonePattern.MatchString(phone) {
		return validationError("valid 10-digit phone number is required")
	}

	code, issued, err := s.otp.Issue(s.now())
	if err != nil {
		return s.internal("send-otp: issue failed", err)
	}

	user, err := s.repo.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if name == "" {
			return validationError("user name is required")
		}
		_, err = s.repo.Create(ctx, types.User{
			FirstName:      name,
			Phone:          phone,
			PhoneOTPHash:   issued.Digest,
			PhoneOTPExpiry: &issued.ExpiresAt,
			Role:           types.RoleUser,
		})
		if errors.Is(err, store.ErrConflict) {
			// Lost a concurrent first-signup race; the winner's OTP stands.
			return conflictError("user already exists with this phone")
		}
		if err != nil {
			return s.internal("send-otp: create failed", err)
		}
	case err != nil:
		return s.internal("send-otp: lookup failed", err)
	default:
		// Re-issue overwrites any pending digest/expiry pair. Two concurrent
		// issuances race on these fields; last write wins.
		user.PhoneOTPHash = issued.Digest
		user.PhoneOTPExpiry = &issued.ExpiresAt
		if _, err := s.repo.Update(ctx, user); err != nil {
			return s.internal("send-otp: update failed", err)
		}
	}

	if err := s.sender.Send(ctx, phone, code); err != nil {
		log.Printf("WARN: OTP delivery to %s failed: %v", maskPhone(phone), err)
	}
	return nil
}

// VerifyOTP consumes a pending one-time code. Unknown phone and missing
// pending code are indistinguishable to the caller. An expired code is
// consumed by the failed attempt; a mismatched code is not.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (types.User, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return types.User{}, validationError("phone and OTP are required")
	}

	user, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, authenticationError("invalid or expired OTP")
		}
		return types.User{}, s.internal("verify-otp: lookup failed", err)
	}
	if !user.HasPendingOTP() {
		return types.User{}, authenticationError("invalid or expired OTP")
	}

	now := s.now()
	if now.After(*user.PhoneOTPExpiry) {
		user.PhoneOTPHash = ""
		user.PhoneOTPExpiry = nil
		if _, err := s.repo.Update(ctx, user); err != nil {
			return types.User{}, s.internal("verify-otp: clear failed", err)
		}
		return types.User{}, expiredError("OTP expired")
	}

	if !otp.Verify(code, user.PhoneOTPHash, *user.PhoneOTPExpiry, now) {
		return types.User{}, authenticationError("incorrect OTP")
	}

	user.PhoneOTPHash = ""
	user.PhoneOTPExpiry = nil
	return s.touchLastLogin(ctx, user)
}

// Refresh reloads the user behind a bearer token so the handler can mint a
// fresh grant. Blocked and deleted accounts cannot refresh.
func (s *AuthService) Refresh(ctx context.Context, userID int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, authenticationError("invalid session")
		}
		return types.User{}, s.internal("refresh: lookup failed", err)
	}
	if user.IsBlocked {
		return types.User{}, authorizationError("account is blocked, contact administrator")
	}
	return user, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, user types.User) (types.User, error) {
	now := s.now()
	user.LastLogin = &now
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, s.internal("update last login failed", err)
	}
	return updated, nil
}

func (s *AuthService) internal(op string, err error) error {
	log.Printf("ERROR: %s: %v", op, err)
	return &Error{Kind: KindInternal, Message: "internal server error"}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validGender(gender string) bool {
	switch gender {
	case types.GenderMale, types.GenderFemale, types.GenderOther:
		return true
	}
	return false
}

func maskPhone(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	return "******" + phone[len(phone)-4:]
}
