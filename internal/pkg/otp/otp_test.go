package otp

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/linkfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_SixDigits(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestHashCode_NeverEqualsPlaintext(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	hash, err := HashCode(code)
	require.NoError(t, err)
	assert.NotEqual(t, code, hash)
	assert.NotContains(t, hash, code)
}

func TestMatch_RoundTrip(t *testing.T) {
	code, err := GenerateCode()
	require.NoError(t, err)
	hash, err := HashCode(code)
	require.NoError(t, err)

	now := time.Now()
	challenges := []domain.VerificationChallenge{{
		UserID:    "u1",
		Channel:   domain.ChannelEmail,
		CodeHash:  hash,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
	}}

	matched, err := Match(code, challenges, now)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelEmail, matched.Channel)
}

func TestMatch_WrongCode(t *testing.T) {
	hash, err := HashCode("123456")
	require.NoError(t, err)

	now := time.Now()
	challenges := []domain.VerificationChallenge{{
		UserID:    "u1",
		Channel:   domain.ChannelEmail,
		CodeHash:  hash,
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
	}}

	_, err = Match("654321", challenges, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestMatch_ExpiredNeverValidates(t *testing.T) {
	hash, err := HashCode("123456")
	require.NoError(t, err)

	now := time.Now()
	challenges := []domain.VerificationChallenge{{
		UserID:    "u1",
		Channel:   domain.ChannelPhone,
		CodeHash:  hash,
		ExpiresAt: now.Add(-time.Second).Unix(),
	}}

	// Exact correct code, but the challenge is past expiry.
	_, err = Match("123456", challenges, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestMatch_PicksMatchingChannelAmongSeveral(t *testing.T) {
	emailHash, err := HashCode("111111")
	require.NoError(t, err)
	phoneHash, err := HashCode("222222")
	require.NoError(t, err)

	now := time.Now()
	challenges := []domain.VerificationChallenge{
		{UserID: "u1", Channel: domain.ChannelEmail, CodeHash: emailHash, ExpiresAt: now.Add(time.Minute).Unix()},
		{UserID: "u1", Channel: domain.ChannelPhone, CodeHash: phoneHash, ExpiresAt: now.Add(time.Minute).Unix()},
	}

	matched, err := Match("222222", challenges, now)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelPhone, matched.Channel)
}
