package types

import "time"

// Gender values accepted at registration.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Role values. Accounts always start as RoleUser; elevation is an
// administrative action outside the auth API.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User represents an identity record.
// A user registered by email carries a password hash; a user created through
// the phone flow carries no password and authenticates with one-time codes.
type User struct {
	// ID is the store-assigned identifier of the user.
	ID int64 `json:"id"`

	// FirstName and LastName form the user's display name. A phone-flow
	// signup stores the provided name in FirstName.
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName,omitempty"`

	// Age must be at least 18.
	Age int `json:"age,omitempty"`

	// Gender is one of male, female, or other.
	Gender string `json:"gender,omitempty"`

	// Email is unique across users when present, stored lowercased.
	Email string `json:"email,omitempty"`

	// Phone is unique across users when present, exactly 10 digits.
	Phone string `json:"phone,omitempty"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// Present only for email registrations, never exposed in responses.
	PasswordHash string `json:"-"`

	// PhoneOTPHash and PhoneOTPExpiry hold the pending one-time code.
	// They are set and cleared together: both present while a code is
	// outstanding, both nil after the code is consumed or expires.
	PhoneOTPHash   string     `json:"-"`
	PhoneOTPExpiry *time.Time `json:"-"`

	// Role is the authorization level. Registration always assigns RoleUser.
	Role string `json:"role"`

	// IsBlocked prevents any authentication when set.
	IsBlocked bool `json:"isBlocked"`

	// RegisteredAt is set at creation and never changes.
	RegisteredAt time.Time `json:"registeredAt"`

	// LastLogin records the most recent successful authentication.
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// HasPendingOTP reports whether the user holds an outstanding one-time code.
func (u User) HasPendingOTP() bool {
	return u.PhoneOTPHash != "" && u.PhoneOTPExpiry != nil
}

// Name returns the user's display name.
func (u User) Name() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
