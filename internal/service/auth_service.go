package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"annonces-api/internal/model"
	"annonces-api/internal/validate"
	"annonces-api/pkg/apierror"
)

const bcryptCost = 12

type UserStore interface {
	Create(ctx context.Context, u model.User) error
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Count(ctx context.Context) (int, error)
}

type TokenStore interface {
	Revoke(ctx context.Context, jti string, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService mints and verifies the session token pair and owns the
// credential checks around it. Tokens are stateless HS256 assertions of
// {id, role}; the access and refresh tokens are signed with two distinct
// secrets so one can be rotated without the other.
type AuthService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	users         UserStore
	tokens        TokenStore
}

func NewAuthService(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration, users UserStore, tokens TokenStore) (*AuthService, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, fmt.Errorf("both signing secrets are required")
	}

	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	return &AuthService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
		tokens:        tokens,
	}, nil
}

// Register creates a user account with the fixed `user` role and logs the
// caller in. Admin accounts are seeded at startup, never self-registered.
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (model.TokenPair, error) {
	req := model.RegisterRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := validate.Struct(req); err != nil {
		return model.TokenPair{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserAlreadyExists) {
			return model.TokenPair{}, apierror.New("ALREADY_EXISTS", "username or email already taken", "", http.StatusBadRequest)
		}
		return model.TokenPair{}, err
	}

	return s.issueTokenPair(user)
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return model.TokenPair{}, apierror.New("BAD_REQUEST", "username and password are required", "", http.StatusBadRequest)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, model.ErrInvalidCredentials
		}
		return model.TokenPair{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	return s.issueTokenPair(user)
}

// Refresh verifies the refresh token against the refresh secret and the
// revocation denylist, then mints a fresh access token without touching
// credentials.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.ValidateRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", model.ErrTokenRevoked
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return "", model.ErrTokenInvalid
		}
		return "", err
	}

	return s.signToken(user, "access", s.accessSecret, s.accessTTL)
}

// Logout revokes the presented refresh token until its natural expiry.
// Access tokens stay valid until they expire on their own.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, expiresAt, err := s.parse(refreshToken, "refresh", s.refreshSecret)
	if err != nil {
		return err
	}

	return s.tokens.Revoke(ctx, claims.TokenID, claims.UserID, expiresAt)
}

func (s *AuthService) ValidateAccess(token string) (*model.AuthClaims, error) {
	claims, _, err := s.parse(token, "access", s.accessSecret)
	return claims, err
}

func (s *AuthService) ValidateRefresh(token string) (*model.AuthClaims, error) {
	claims, _, err := s.parse(token, "refresh", s.refreshSecret)
	return claims, err
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.AuthUser{}, err
	}
	return authUser(user), nil
}

// EnsureAdmin seeds the moderation account when the users table is empty.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string, email string, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}

	slog.Info("seeded admin account", "username", username)
	return nil
}

func (s *AuthService) issueTokenPair(user model.User) (model.TokenPair, error) {
	accessToken, err := s.signToken(user, "access", s.accessSecret, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.signToken(user, "refresh", s.refreshSecret, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         authUser(user),
	}, nil
}

func (s *AuthService) signToken(user model.User, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"typ":      typ,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *AuthService) parse(tokenString string, expectedType string, secret []byte) (*model.AuthClaims, time.Time, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, time.Time{}, model.ErrTokenInvalid
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, time.Time{}, model.ErrTokenInvalid
	}

	typ, _ := claimsMap["typ"].(string)
	if typ != expectedType {
		return nil, time.Time{}, model.ErrTokenInvalid
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Username, _ = claimsMap["username"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" || claims.TokenID == "" {
		return nil, time.Time{}, model.ErrTokenInvalid
	}

	var expiresAt time.Time
	if exp, ok := claimsMap["exp"].(float64); ok {
		expiresAt = time.Unix(int64(exp), 0).UTC()
	}

	return claims, expiresAt, nil
}

func authUser(u model.User) model.AuthUser {
	return model.AuthUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
