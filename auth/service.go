package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"bookingflow/directory"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInvalidToken covers malformed, expired and forged tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInactive is returned for deactivated accounts.
	ErrInactive = errors.New("auth: account is inactive")
	// ErrInvalidInput covers missing fields and roles that cannot self-register.
	ErrInvalidInput = errors.New("auth: invalid input")
)

const defaultTokenTTL = 24 * time.Hour

// Service issues and verifies API tokens for directory users.
type Service struct {
	repo      Repository
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// LoginResult bundles the token and the user returned after a successful login.
type LoginResult struct {
	Token string
	User  directory.User
}

type tokenClaims struct {
	UserID int64          `json:"user_id"`
	Role   directory.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewService(repo Repository, jwtSecret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Register creates a customer or translator account. Staff accounts are
// provisioned out of band.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (directory.User, error) {
	if len(req.Password) < 8 {
		return directory.User{}, ErrWeakPassword
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		return directory.User{}, fmt.Errorf("%w: email and name are required", ErrInvalidInput)
	}

	role := directory.Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = directory.RoleCustomer
	}
	if role != directory.RoleCustomer && role != directory.RoleTranslator {
		return directory.User{}, fmt.Errorf("%w: role %q cannot register", ErrInvalidInput, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return directory.User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, CreateUserParams{
		Email:        req.Email,
		Name:         req.Name,
		Mobile:       req.Mobile,
		PasswordHash: string(hash),
		Role:         role,
		Meta: directory.Meta{
			ConsumerType:    req.ConsumerType,
			CustomerType:    req.CustomerType,
			TranslatorType:  req.TranslatorType,
			TranslatorLevel: req.TranslatorLevel,
			Gender:          req.Gender,
			City:            req.City,
		},
	})
}

// Login checks the password and returns a signed token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.UserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.Active {
		return LoginResult{}, ErrInactive
	}

	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

// VerifyToken validates the signature and expiry of a token.
func (s *Service) VerifyToken(tokenString string) (Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 || !claims.Role.Valid() {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: claims.UserID, Role: claims.Role}, nil
}

// Authenticate verifies the token and loads the current state of its user.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (directory.User, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return directory.User{}, err
	}
	user, err := s.repo.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return directory.User{}, ErrInvalidToken
		}
		return directory.User{}, fmt.Errorf("auth: load user: %w", err)
	}
	if !user.Active {
		return directory.User{}, ErrInactive
	}
	return user, nil
}

func (s *Service) generateToken(userID int64, role directory.Role) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
