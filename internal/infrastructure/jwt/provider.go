package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/linkfolio-api/internal/config"
	"github.com/linkfolio-api/internal/domain"
)

// Token purposes. A pre-auth token only proves that signup/login was
// initiated; it is never accepted where an access token is required, and
// vice versa.
const (
	PurposeAccess = "access"
	PurposeOTP    = "otp"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID        string `json:"user_id"`
	Purpose       string `json:"purpose"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Verified      bool   `json:"verified,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	PhoneVerified bool   `json:"phone_verified,omitempty"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs for both token kinds.
type Provider struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	accessExpiry  time.Duration
	preAuthExpiry time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey:    privKey,
		publicKey:     pubKey,
		accessExpiry:  cfg.AccessTokenTTL,
		preAuthExpiry: cfg.PreAuthTokenTTL,
	}, nil
}

// SignPreAuth mints the short-lived token required before an OTP can be
// checked or resent. It carries only the user id and the otp purpose tag.
func (p *Provider) SignPreAuth(userID string) (string, error) {
	claims := Claims{
		UserID:  userID,
		Purpose: PurposeOTP,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.preAuthExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

// SignAccess mints the long-lived bearer token issued after verification.
func (p *Provider) SignAccess(u *domain.User) (string, error) {
	claims := Claims{
		UserID:        u.UserID,
		Purpose:       PurposeAccess,
		Username:      u.Username,
		Verified:      u.Verified,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if u.Email != nil {
		claims.Email = *u.Email
	}
	if u.Phone != nil {
		claims.Phone = *u.Phone
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

// VerifyPreAuth validates signature, expiry and the otp purpose tag.
// Any failure maps to domain.ErrUnauthorized before the ledger is touched.
func (p *Provider) VerifyPreAuth(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, PurposeOTP)
}

// VerifyAccess validates signature, expiry and the access purpose tag.
func (p *Provider) VerifyAccess(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, PurposeAccess)
}

func (p *Provider) verify(tokenStr, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("wrong token purpose: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}
