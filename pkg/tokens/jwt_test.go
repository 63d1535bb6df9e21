package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperToken_RoundTrip(t *testing.T) {
	tg := NewTokenGenerator("test-secret", "tenderflow-ingest", time.Hour)

	token, err := tg.GenerateScraperToken("t1", "goszakup-daily")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tg.ValidateScraper(token)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, "goszakup-daily", claims.ScraperID)
	assert.Equal(t, TypeScraper, claims.TokenType)
	assert.Equal(t, "tenderflow-ingest", claims.Issuer)
}

func TestValidate_RejectsWrongSecret(t *testing.T) {
	tg := NewTokenGenerator("secret-a", "tenderflow-ingest", time.Hour)
	other := NewTokenGenerator("secret-b", "tenderflow-ingest", time.Hour)

	token, err := tg.GenerateScraperToken("t1", "s1")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsGarbage(t *testing.T) {
	tg := NewTokenGenerator("test-secret", "tenderflow-ingest", time.Hour)

	_, err := tg.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tg.Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsExpired(t *testing.T) {
	tg := NewTokenGenerator("test-secret", "tenderflow-ingest", time.Hour)
	tg.ttl = -time.Minute

	token, err := tg.GenerateScraperToken("t1", "s1")
	require.NoError(t, err)

	_, err = tg.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateScraper_RejectsUserToken(t *testing.T) {
	tg := NewTokenGenerator("test-secret", "tenderflow-ingest", time.Hour)

	token, err := tg.GenerateUserToken("t1", "alice")
	require.NoError(t, err)

	// A user token is valid, just not for ingestion.
	claims, err := tg.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, TypeUser, claims.TokenType)

	_, err = tg.ValidateScraper(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}
