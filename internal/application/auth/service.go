package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linkfolio-api/internal/application/dispatch"
	"github.com/linkfolio-api/internal/domain"
	googleinfra "github.com/linkfolio-api/internal/infrastructure/google"
	jwtinfra "github.com/linkfolio-api/internal/infrastructure/jwt"
	"github.com/linkfolio-api/internal/pkg/id"
	"github.com/linkfolio-api/internal/pkg/otp"
	pkgtoken "github.com/linkfolio-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// SignupResult is returned when an account was created and its first OTP
// dispatched.
type SignupResult struct {
	UserID           string
	VerificationType string
	OTPToken         string
}

// VerifyResult carries the minted access token. DeviceToken is the plaintext
// device secret, set only when the caller asked to be remembered — this is
// the single time it ever leaves the service.
type VerifyResult struct {
	Token       string
	DeviceToken string
	User        *domain.User
}

type ResendResult struct {
	UserID        string
	ContactMethod string
	OTPToken      string
}

// LoginResult is either a finished authentication (OTPRequired false, Token
// set) or a pending one (OTPRequired true, pre-auth fields set).
type LoginResult struct {
	OTPRequired   bool
	Token         string
	User          *domain.User
	ContactMethod string
	OTPToken      string
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*SignupResult, error)
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*VerifyResult, error)
	ResendOTP(ctx context.Context, req domain.ResendOTPRequest) (*ResendResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByLoginIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	AppendTrustedDevice(ctx context.Context, userID string, d domain.TrustedDevice) error
}

type verificationStore interface {
	Put(ctx context.Context, v *domain.VerificationChallenge) error
	FindLive(ctx context.Context, userID string) ([]domain.VerificationChallenge, error)
	DeleteAll(ctx context.Context, userID string) error
}

type otpSessionStore interface {
	Reset(ctx context.Context, userID string, expiresAt int64) error
	Increment(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID string) error
}

type tokenIssuer interface {
	SignPreAuth(userID string) (string, error)
	SignAccess(u *domain.User) (string, error)
	VerifyPreAuth(token string) (*jwtinfra.Claims, error)
}

// GoogleVerifier validates Google ID tokens. Exported so the router can pass
// a nil verifier cleanly when Google sign-in is not configured.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*googleinfra.Payload, error)
}

type service struct {
	userRepo         userStore
	verificationRepo verificationStore
	otpSessionRepo   otpSessionStore
	dispatcher       dispatch.Dispatcher
	tokens           tokenIssuer
	google           GoogleVerifier
	otpTTL           time.Duration
	preAuthTTL       time.Duration
	attemptLimit     int
	deviceTrustTTL   time.Duration
}

type ServiceDeps struct {
	UserRepo         userStore
	VerificationRepo verificationStore
	OTPSessionRepo   otpSessionStore
	Dispatcher       dispatch.Dispatcher
	Tokens           tokenIssuer
	GoogleVerifier   GoogleVerifier
	OTPTTL           time.Duration
	PreAuthTTL       time.Duration
	AttemptLimit     int
	DeviceTrustTTL   time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:         deps.UserRepo,
		verificationRepo: deps.VerificationRepo,
		otpSessionRepo:   deps.OTPSessionRepo,
		dispatcher:       deps.Dispatcher,
		tokens:           deps.Tokens,
		google:           deps.GoogleVerifier,
		otpTTL:           deps.OTPTTL,
		preAuthTTL:       deps.PreAuthTTL,
		attemptLimit:     deps.AttemptLimit,
		deviceTrustTTL:   deps.DeviceTrustTTL,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*SignupResult, error) {
	if (req.Email == nil || *req.Email == "") && (req.Phone == nil || *req.Phone == "") {
		return nil, fmt.Errorf("email or phone is required: %w", domain.ErrBadRequest)
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("date_of_birth must be YYYY-MM-DD: %w", domain.ErrBadRequest)
	}

	// Pre-check for friendly conflict messages. The transactional create
	// below still catches the race where another signup lands in between.
	if err := s.checkAvailability(ctx, req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		FullName:     req.FullName,
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		DateOfBirth:  dob,
		AuthProvider: "local",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	channel, recipient, _ := u.ContactMethod()
	if err := s.issueOTP(ctx, u, channel, recipient); err != nil {
		// The account exists; signup is resumable through resend-otp.
		return nil, err
	}

	otpToken, err := s.startOTPSession(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	return &SignupResult{UserID: u.UserID, VerificationType: channel, OTPToken: otpToken}, nil
}

func (s *service) checkAvailability(ctx context.Context, req domain.SignupRequest) error {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return fmt.Errorf("username already registered: %w", domain.ErrConflict)
	}
	if req.Email != nil && *req.Email != "" {
		if _, err := s.userRepo.GetByEmail(ctx, *req.Email); err == nil {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
	}
	if req.Phone != nil && *req.Phone != "" {
		if _, err := s.userRepo.GetByPhone(ctx, *req.Phone); err == nil {
			return fmt.Errorf("phone already registered: %w", domain.ErrConflict)
		}
	}
	return nil
}

// issueOTP generates a code, stores its hash under (user, channel) and
// delivers the plaintext. The plaintext never outlives this call.
func (s *service) issueOTP(ctx context.Context, u *domain.User, channel, recipient string) error {
	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	codeHash, err := otp.HashCode(code)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.verificationRepo.Put(ctx, &domain.VerificationChallenge{
		UserID:    u.UserID,
		Channel:   channel,
		CodeHash:  codeHash,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.otpTTL).Unix(),
	}); err != nil {
		return err
	}
	if err := s.dispatcher.Deliver(ctx, channel, recipient, code); err != nil {
		slog.Error("otp delivery failed", "user_id", u.UserID, "channel", channel, "err", err)
		return fmt.Errorf("verification code could not be delivered, retry with resend-otp: %w", domain.ErrUnavailable)
	}
	return nil
}

// startOTPSession resets the attempt counter and mints the pre-auth token
// that gates verify-otp.
func (s *service) startOTPSession(ctx context.Context, userID string) (string, error) {
	if err := s.otpSessionRepo.Reset(ctx, userID, time.Now().Add(s.preAuthTTL).Unix()); err != nil {
		return "", err
	}
	return s.tokens.SignPreAuth(userID)
}

func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*VerifyResult, error) {
	claims, err := s.tokens.VerifyPreAuth(req.OTPToken)
	if err != nil {
		return nil, fmt.Errorf("otp session expired or invalid: %w", domain.ErrUnauthorized)
	}
	if claims.UserID != req.UserID {
		return nil, fmt.Errorf("otp session does not match user: %w", domain.ErrUnauthorized)
	}

	attempts, err := s.otpSessionRepo.Increment(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if attempts > s.attemptLimit {
		return nil, fmt.Errorf("too many attempts, request a new code: %w", domain.ErrRateLimited)
	}

	challenges, err := s.verificationRepo.FindLive(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(challenges) == 0 {
		return nil, fmt.Errorf("otp expired or not found: %w", domain.ErrBadRequest)
	}

	matched, err := otp.Match(req.OTP, challenges, time.Now())
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	switch matched.Channel {
	case domain.ChannelEmail:
		u.EmailVerified = true
	case domain.ChannelPhone:
		u.PhoneVerified = true
	}
	u.RecomputeVerified()
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		"email_verified": u.EmailVerified,
		"phone_verified": u.PhoneVerified,
		"verified":       u.Verified,
	}); err != nil {
		return nil, err
	}

	var deviceToken string
	if req.RememberDevice {
		deviceToken, err = s.rememberDevice(ctx, u)
		if err != nil {
			return nil, err
		}
	}

	if err := s.verificationRepo.DeleteAll(ctx, u.UserID); err != nil {
		return nil, err
	}
	if err := s.otpSessionRepo.Delete(ctx, u.UserID); err != nil {
		slog.Warn("failed to delete otp session", "user_id", u.UserID, "err", err)
	}

	token, err := s.tokens.SignAccess(u)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Token: token, DeviceToken: deviceToken, User: u}, nil
}

// rememberDevice mints a fresh device secret, stores only its hash with the
// trust expiry, and returns the plaintext for one-time delivery to the client.
func (s *service) rememberDevice(ctx context.Context, u *domain.User) (string, error) {
	secret, err := pkgtoken.NewDeviceSecret()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := s.userRepo.AppendTrustedDevice(ctx, u.UserID, domain.TrustedDevice{
		TokenHash: string(hash),
		ExpiresAt: time.Now().Add(s.deviceTrustTTL),
	}); err != nil {
		return "", err
	}
	return secret, nil
}

func (s *service) ResendOTP(ctx context.Context, req domain.ResendOTPRequest) (*ResendResult, error) {
	// Same gate as VerifyOTP: the pre-auth token is checked before any
	// storage is touched, so a bare user id cannot trigger dispatch or
	// reset the attempt counter.
	claims, err := s.tokens.VerifyPreAuth(req.OTPToken)
	if err != nil {
		return nil, fmt.Errorf("otp session expired or invalid: %w", domain.ErrUnauthorized)
	}
	if claims.UserID != req.UserID {
		return nil, fmt.Errorf("otp session does not match user: %w", domain.ErrUnauthorized)
	}

	u, err := s.userRepo.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var channel, recipient string
	switch req.Purpose {
	case domain.ChannelEmail:
		if u.Email == nil || *u.Email == "" {
			return nil, fmt.Errorf("no email on account: %w", domain.ErrBadRequest)
		}
		channel, recipient = domain.ChannelEmail, *u.Email
	case domain.ChannelPhone:
		if u.Phone == nil || *u.Phone == "" {
			return nil, fmt.Errorf("no phone on account: %w", domain.ErrBadRequest)
		}
		channel, recipient = domain.ChannelPhone, *u.Phone
	case domain.ChannelLogin:
		var ok bool
		channel, recipient, ok = u.ContactMethod()
		if !ok {
			return nil, fmt.Errorf("no valid contact method: %w", domain.ErrBadRequest)
		}
	default:
		return nil, fmt.Errorf("unknown purpose %q: %w", req.Purpose, domain.ErrBadRequest)
	}

	if err := s.issueOTP(ctx, u, channel, recipient); err != nil {
		return nil, err
	}
	otpToken, err := s.startOTPSession(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	return &ResendResult{UserID: u.UserID, ContactMethod: channel, OTPToken: otpToken}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	// Same error whether the identifier or the password was wrong. A store
	// failure is not a credential miss and surfaces as-is.
	u, err := s.userRepo.GetByLoginIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrBadRequest)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrBadRequest)
	}

	if req.DeviceToken != nil && *req.DeviceToken != "" && s.matchTrustedDevice(u, *req.DeviceToken) {
		token, err := s.tokens.SignAccess(u)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Token: token, User: u}, nil
	}

	channel, recipient, ok := u.ContactMethod()
	if !ok {
		return nil, fmt.Errorf("no valid contact method: %w", domain.ErrBadRequest)
	}
	if err := s.issueOTP(ctx, u, channel, recipient); err != nil {
		return nil, err
	}
	otpToken, err := s.startOTPSession(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{OTPRequired: true, User: u, ContactMethod: channel, OTPToken: otpToken}, nil
}

// matchTrustedDevice reports whether the presented secret matches any
// unexpired remembered-device hash.
func (s *service) matchTrustedDevice(u *domain.User, secret string) bool {
	now := time.Now()
	for _, d := range u.TrustedDevices {
		if d.ExpiresAt.Before(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(d.TokenHash), []byte(secret)) == nil {
			return true
		}
	}
	return false
}

func (s *service) GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error) {
	if s.google == nil {
		return nil, fmt.Errorf("google sign-in not configured: %w", domain.ErrBadRequest)
	}
	p, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if p.Email == "" || !p.EmailVerified {
		return nil, fmt.Errorf("google account has no verified email: %w", domain.ErrUnauthorized)
	}

	u, err := s.userRepo.GetByEmail(ctx, p.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		u, err = s.createGoogleUser(ctx, p)
		if err != nil {
			return nil, err
		}
	} else if u.GoogleSub == "" {
		if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
			"google_sub":     p.Sub,
			"email_verified": true,
			"verified":       true,
		}); err != nil {
			return nil, err
		}
		u.GoogleSub = p.Sub
		u.EmailVerified = true
		u.RecomputeVerified()
	}

	token, err := s.tokens.SignAccess(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: u}, nil
}

func (s *service) createGoogleUser(ctx context.Context, p *googleinfra.Payload) (*domain.User, error) {
	local := strings.SplitN(p.Email, "@", 2)[0]
	username := sanitizeHandle(local)
	// The ULID suffix keeps generated handles from colliding.
	username = fmt.Sprintf("%s_%s", username, strings.ToLower(id.New()[20:]))

	now := time.Now().UTC()
	email := p.Email
	u := &domain.User{
		UserID:        id.New(),
		FullName:      p.FullName,
		Username:      username,
		Email:         &email,
		EmailVerified: true,
		Verified:      true,
		AuthProvider:  "google",
		GoogleSub:     p.Sub,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func sanitizeHandle(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
