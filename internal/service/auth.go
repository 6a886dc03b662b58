package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshCookieName = "slatrack_refresh"
	minLoginIDLength  = 3
	minPasswordLength = 8
)

// authRepo - users and refresh tokens
type authRepo interface {
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
	GetUserByLoginID(ctx context.Context, loginID string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role model.Role) error
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RotateRefreshToken(ctx context.Context, oldTokenID int64, userID int64, newTokenHash string, newExpiresAt time.Time) error
}

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

type AuthService struct {
	repo        authRepo
	jwtSecret   []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	allowSignup bool
	cookieCfg   CookieConfig
}

type authClaims struct {
	LoginID string     `json:"loginId"`
	Role    model.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(repo authRepo, cfg config.AuthConfig) (*AuthService, error) {
	settings, err := loadAuthSettings(cfg)
	if err != nil {
		return nil, err
	}
	settings.repo = repo
	return settings, nil
}

// loadAuthSettings turns the raw AUTH_* / JWT_* strings into a service
// without a repository. Every failure wraps ErrMisconfigured.
func loadAuthSettings(cfg config.AuthConfig) (*AuthService, error) {
	misconfigured := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrMisconfigured}, args...)...)
	}

	if cfg.JWTSecret == "" {
		return nil, misconfigured("JWT_SECRET is required")
	}
	accessTTL, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil || accessTTL <= 0 {
		return nil, misconfigured("invalid JWT_ACCESS_TTL %q", cfg.JWTAccessTTL)
	}
	refreshTTL, err := time.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil || refreshTTL <= 0 {
		return nil, misconfigured("invalid JWT_REFRESH_TTL %q", cfg.JWTRefreshTTL)
	}
	allowSignup, err := parseBool(cfg.AllowSignup, false)
	if err != nil {
		return nil, misconfigured("invalid ALLOW_SIGNUP %q", cfg.AllowSignup)
	}

	cookie := CookieConfig{
		Name:   refreshCookieName,
		Path:   strings.TrimSpace(cfg.CookiePath),
		Domain: cfg.CookieDomain,
		MaxAge: int(refreshTTL.Seconds()),
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.Secure, err = parseBool(cfg.CookieSecure, true); err != nil {
		return nil, misconfigured("invalid AUTH_COOKIE_SECURE %q", cfg.CookieSecure)
	}
	if cookie.SameSite, err = parseSameSite(cfg.CookieSameSite); err != nil {
		return nil, misconfigured("invalid AUTH_COOKIE_SAMESITE %q", cfg.CookieSameSite)
	}
	if cookie.SameSite == http.SameSiteNoneMode && !cookie.Secure {
		return nil, misconfigured("SameSite=None requires a Secure cookie")
	}

	return &AuthService{
		jwtSecret:   []byte(cfg.JWTSecret),
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		allowSignup: allowSignup,
		cookieCfg:   cookie,
	}, nil
}

// EnsureAdmin creates the bootstrap IT lead account when it does not exist.
// An existing account keeps its password and role.
func (s *AuthService) EnsureAdmin(ctx context.Context, loginID, password, email string) error {
	if strings.TrimSpace(loginID) == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: ADMIN_USERNAME/ADMIN_PASSWORD are required", ErrMisconfigured)
	}

	_, err := s.repo.GetUserByLoginID(ctx, loginID)
	switch {
	case err == nil:
		return nil
	case !db.IsNoRows(err):
		return fmt.Errorf("lookup admin: %w", err)
	}

	user, err := s.createAccount(ctx, loginID, password, email, model.RoleITLead)
	if err != nil {
		return err
	}
	slog.Info("[Auth] bootstrap admin created", "login_id", user.LoginID, "role", user.Role)
	return nil
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

// Register creates a technician account. Roles are raised by an IT lead or
// manager through UpdateRole.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (string, string, int64, error) {
	if !s.allowSignup {
		return "", "", 0, fmt.Errorf("%w: signup is disabled", ErrForbidden)
	}
	if err := validateRequest(req); err != nil {
		return "", "", 0, err
	}

	user, err := s.createAccount(ctx, req.ID, req.Password, req.Email, model.RoleTechnician)
	if err != nil {
		return "", "", 0, err
	}
	return s.issueTokens(ctx, user)
}

// createAccount hashes the password and stores a user with role. A taken
// login id is ErrConflict.
func (s *AuthService) createAccount(ctx context.Context, loginID, password, email string, role model.Role) (*model.User, error) {
	if err := validateCredentials(loginID, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, model.User{
		LoginID:      strings.TrimSpace(loginID),
		PasswordHash: string(hash),
		Role:         role,
		Email:        strings.TrimSpace(email),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: login id %q is taken", ErrConflict, loginID)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, loginID, password string) (string, string, int64, error) {
	if err := validateCredentials(loginID, password); err != nil {
		return "", "", 0, err
	}

	user, err := s.repo.GetUserByLoginID(ctx, loginID)
	if err != nil {
		if db.IsNoRows(err) {
			return "", "", 0, ErrUnauthorized
		}
		return "", "", 0, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", 0, ErrUnauthorized
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, string, int64, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", "", 0, ErrUnauthorized
	}

	hash := hashRefreshToken(refreshToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if db.IsNoRows(err) {
			return "", "", 0, ErrUnauthorized
		}
		return "", "", 0, err
	}

	if record.RevokedAt != nil || time.Now().After(record.ExpiresAt) {
		return "", "", 0, ErrUnauthorized
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		return "", "", 0, err
	}

	newRefreshToken, newHash, err := newRefreshToken()
	if err != nil {
		return "", "", 0, err
	}

	if err := s.repo.RotateRefreshToken(ctx, record.ID, record.UserID, newHash, time.Now().Add(s.refreshTTL)); err != nil {
		return "", "", 0, err
	}

	accessToken, expiresIn, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", 0, err
	}

	return accessToken, newRefreshToken, expiresIn, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	hash := hashRefreshToken(refreshToken)
	return s.repo.RevokeRefreshTokenByHash(ctx, hash)
}

func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &model.AuthUser{
		ID:      userID,
		LoginID: claims.LoginID,
		Role:    claims.Role,
	}, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *AuthService) UpdateRole(ctx context.Context, userID int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := s.repo.UpdateUserRole(ctx, userID, role); err != nil {
		return notFound(err, "user", userID)
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *model.User) (string, string, int64, error) {
	accessToken, expiresIn, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", 0, err
	}

	refreshToken, refreshHash, err := newRefreshToken()
	if err != nil {
		return "", "", 0, err
	}

	if err := s.repo.InsertRefreshToken(ctx, user.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return "", "", 0, err
	}

	return accessToken, refreshToken, expiresIn, nil
}

func (s *AuthService) generateAccessToken(user *model.User) (string, int64, error) {
	now := time.Now()
	claims := authClaims{
		LoginID: user.LoginID,
		Role:    user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.accessTTL.Seconds()), nil
}

func validateCredentials(loginID, password string) error {
	loginID = strings.TrimSpace(loginID)
	password = strings.TrimSpace(password)

	if len(loginID) < minLoginIDLength || len(loginID) > 64 {
		return fmt.Errorf("%w: login id must have %d-64 characters", ErrInvalidInput, minLoginIDLength)
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return fmt.Errorf("%w: password must have %d-128 characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteLaxMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func newRefreshToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
