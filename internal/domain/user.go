package domain

import "time"

// Verification channels through which a one-time code can be delivered.
const (
	ChannelEmail = "email"
	ChannelPhone = "phone"
	// ChannelLogin is a request purpose, not a storage channel: a login OTP is
	// stored under whichever contact channel it is actually delivered on.
	ChannelLogin = "login"
)

type User struct {
	UserID         string          `json:"id" dynamodbav:"user_id"`
	FullName       string          `json:"full_name" dynamodbav:"full_name"`
	Username       string          `json:"username" dynamodbav:"username"`
	Email          *string         `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Phone          *string         `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	PasswordHash   string          `json:"-" dynamodbav:"password_hash"`
	DateOfBirth    time.Time       `json:"date_of_birth" dynamodbav:"date_of_birth"`
	Verified       bool            `json:"verified" dynamodbav:"verified"`
	EmailVerified  bool            `json:"email_verified" dynamodbav:"email_verified"`
	PhoneVerified  bool            `json:"phone_verified" dynamodbav:"phone_verified"`
	TrustedDevices []TrustedDevice `json:"-" dynamodbav:"trusted_devices"`
	AuthProvider   string          `json:"auth_provider,omitempty" dynamodbav:"auth_provider"` // "local" | "google"
	GoogleSub      string          `json:"-" dynamodbav:"google_sub,omitempty"`
	CreatedAt      time.Time       `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time       `json:"updated" dynamodbav:"updated_at"`
}

// TrustedDevice is a remembered client. Only the bcrypt hash of the device
// secret is stored; the plaintext secret is returned to the caller exactly
// once, at verification time.
type TrustedDevice struct {
	TokenHash string    `json:"-" dynamodbav:"token_hash"`
	ExpiresAt time.Time `json:"-" dynamodbav:"expires_at"`
}

// RecomputeVerified derives the overall verified flag from the per-channel
// flags. It is never set independently, so the flags cannot drift.
func (u *User) RecomputeVerified() {
	u.Verified = u.EmailVerified || u.PhoneVerified
}

// ContactMethod returns the user's deliverable channel and recipient,
// preferring email. ok is false when the user has neither.
func (u *User) ContactMethod() (channel, recipient string, ok bool) {
	if u.Email != nil && *u.Email != "" {
		return ChannelEmail, *u.Email, true
	}
	if u.Phone != nil && *u.Phone != "" {
		return ChannelPhone, *u.Phone, true
	}
	return "", "", false
}

type SignupRequest struct {
	FullName    string  `json:"full_name" validate:"required"`
	Username    string  `json:"username" validate:"required,handle,min=3,max=30"`
	DateOfBirth string  `json:"date_of_birth" validate:"required"` // YYYY-MM-DD
	Password    string  `json:"password" validate:"required,password,min=8,max=72"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,e164"`
}

type VerifyOTPRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	OTP            string `json:"otp" validate:"required,len=6,numeric"`
	OTPToken       string `json:"otp_token" validate:"required"`
	RememberDevice bool   `json:"remember_device"`
}

type ResendOTPRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Purpose  string `json:"purpose" validate:"required,oneof=email phone login"`
	OTPToken string `json:"otp_token" validate:"required"`
}

type LoginRequest struct {
	Identifier  string  `json:"identifier" validate:"required"`
	Password    string  `json:"password" validate:"required"`
	DeviceToken *string `json:"device_token"`
}
