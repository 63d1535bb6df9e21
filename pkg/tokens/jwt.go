package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Token types carried in the claims. Only scraper tokens may use the
// ingestion endpoints; dashboard user tokens are rejected with 403.
const (
	TypeScraper = "scraper"
	TypeUser    = "user"
)

type Claims struct {
	TenantID  string `json:"tenant_id"`
	ScraperID string `json:"scraper_id,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type TokenGenerator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenGenerator(secret, issuer string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenGenerator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// GenerateScraperToken mints a scraper-typed token scoped to a tenant.
func (tg *TokenGenerator) GenerateScraperToken(tenantID, scraperID string) (string, error) {
	claims := Claims{
		TenantID:  tenantID,
		ScraperID: scraperID,
		TokenType: TypeScraper,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    tg.issuer,
			Subject:   scraperID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

// GenerateUserToken mints a dashboard user token. User tokens carry no
// scraper identity and are rejected by the ingestion endpoints.
func (tg *TokenGenerator) GenerateUserToken(tenantID, userID string) (string, error) {
	claims := Claims{
		TenantID:  tenantID,
		TokenType: TypeUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    tg.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

// Validate parses and verifies a token and returns its claims.
func (tg *TokenGenerator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateScraper verifies a token and additionally requires the scraper
// token type.
func (tg *TokenGenerator) ValidateScraper(tokenString string) (*Claims, error) {
	claims, err := tg.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TypeScraper {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
