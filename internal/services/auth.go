package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	redisclient "github.com/yungbote/tastelab-backend/internal/clients/redis"
	"github.com/yungbote/tastelab-backend/internal/data/aggregates"
	"github.com/yungbote/tastelab-backend/internal/data/repos"
	types "github.com/yungbote/tastelab-backend/internal/domain"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/apierr"
	"github.com/yungbote/tastelab-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

const minPasswordLength = 6

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, string, error)
	Login(ctx context.Context, email, password string) (*types.User, string, error)
	// Authenticate verifies an access token and resolves the user it was issued for.
	Authenticate(ctx context.Context, tokenString string) (*types.UserSummary, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	userRepo     repos.UserRepo
	cache        redisclient.UserCache
	jwtSecretKey []byte
	accessTTL    time.Duration
	now          func() time.Time
}

type accessClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewAuthService(
	log *logger.Logger,
	userRepo repos.UserRepo,
	cache redisclient.UserCache,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	if cache == nil {
		cache = redisclient.NewNoopUserCache()
	}
	if accessTTL <= 0 {
		accessTTL = 7 * 24 * time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		cache:        cache,
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (as *authService) GetAccessTTL() time.Duration { return as.accessTTL }

func (as *authService) Register(ctx context.Context, in RegisterInput) (*types.User, string, error) {
	const op = "auth.register"
	name := strings.TrimSpace(in.Name)
	email := repos.NormalizeEmail(in.Email)
	if name == "" {
		return nil, "", domainagg.NewError(domainagg.CodeValidation, op, "name is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, "", domainagg.NewError(domainagg.CodeValidation, op, "a valid email is required", nil)
	}
	if len(in.Password) < minPasswordLength {
		return nil, "", domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("password must be at least %d characters", minPasswordLength), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	exists, err := as.userRepo.EmailExists(dbc, email)
	if err != nil {
		return nil, "", aggregates.ClassifyError(op, err)
	}
	if exists {
		return nil, "", domainagg.NewError(domainagg.CodeConflict, op, "email already registered", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	u := &types.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Avatar:   strings.TrimSpace(in.Avatar),
	}
	if _, err := as.userRepo.Create(dbc, []*types.User{u}); err != nil {
		return nil, "", aggregates.ClassifyError(op, err)
	}
	token, err := as.generateAccessToken(u)
	if err != nil {
		return nil, "", err
	}
	as.log.Info("User registered", "user_id", u.ID)
	return u, token, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	email = repos.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", domainagg.NewError(domainagg.CodeValidation, "auth.login", "email and password are required", nil)
	}
	users, err := as.userRepo.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return nil, "", fmt.Errorf("load user by email: %w", err)
	}
	if len(users) == 0 || users[0] == nil {
		return nil, "", apierr.Unauthenticated(errors.New("invalid credentials"))
	}
	u := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, "", apierr.Unauthenticated(errors.New("invalid credentials"))
	}
	token, err := as.generateAccessToken(u)
	if err != nil {
		return nil, "", err
	}
	as.cache.Set(ctx, u.Summary())
	return u, token, nil
}

func (as *authService) Authenticate(ctx context.Context, tokenString string) (*types.UserSummary, error) {
	claims, err := as.parseAccessToken(tokenString)
	if err != nil {
		return nil, apierr.Unauthenticated(err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apierr.Unauthenticated(fmt.Errorf("bad subject: %w", err))
	}
	if cached, ok := as.cache.Get(ctx, userID); ok {
		return cached, nil
	}
	users, err := as.userRepo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 || users[0] == nil {
		return nil, apierr.Unauthenticated(errors.New("user not found"))
	}
	summary := users[0].Summary()
	as.cache.Set(ctx, summary)
	return &summary, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	u, err := as.Authenticate(ctx, tokenString)
	if err != nil {
		return ctx, err
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      u.ID,
		UserName:    u.Name,
	}), nil
}

func (as *authService) generateAccessToken(u *types.User) (string, error) {
	if len(as.jwtSecretKey) == 0 {
		return "", fmt.Errorf("jwt secret not configured")
	}
	now := as.now()
	claims := accessClaims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (as *authService) parseAccessToken(tokenString string) (*accessClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	if len(as.jwtSecretKey) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(as.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
