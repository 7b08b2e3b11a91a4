package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bookingflow/directory"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	req := RegisterRequest{
		Email:    "anna@example.se",
		Password: "supersafe",
		Name:     "Anna Kund",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if user.Role != directory.RoleCustomer {
		t.Fatalf("register: expected default role %s got %s", directory.RoleCustomer, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.User.ID != user.ID {
		t.Fatalf("login: expected user id %d got %d", user.ID, resp.User.ID)
	}

	claims, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: unexpected error: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != directory.RoleCustomer {
		t.Fatalf("verify token: got %+v", claims)
	}

	current, err := svc.Authenticate(ctx, resp.Token)
	if err != nil {
		t.Fatalf("authenticate: unexpected error: %v", err)
	}
	if current.Email != req.Email {
		t.Fatalf("authenticate: expected %q got %q", req.Email, current.Email)
	}
}

func TestService_RegisterTranslatorMeta(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:           "tolk@example.se",
		Password:        "supersafe",
		Name:            "Tolk",
		Role:            directory.RoleTranslator,
		TranslatorType:  directory.TranslatorProfessional,
		TranslatorLevel: directory.LevelCertified,
		City:            "Uppsala",
	})
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if user.Meta.TranslatorType != directory.TranslatorProfessional || user.Meta.City != "Uppsala" {
		t.Fatalf("register: meta not stored: %+v", user.Meta)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "anna@example.se",
		Password: "short",
		Name:     "Anna",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{Password: "strongpassword"}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Email:    "boss@example.se",
		Password: "strongpassword",
		Name:     "Boss",
		Role:     directory.RoleSuperAdmin,
	})
	if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "cannot register") {
		t.Fatalf("expected role rejection, got %v", err)
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)

	req := RegisterRequest{Email: "anna@example.se", Password: "strongpassword", Name: "Anna"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "unknown@example.se", Password: "irrelevant"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{Email: "anna@example.se", Password: "strongpassword", Name: "Anna"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = svc.Login(context.Background(), LoginRequest{Email: "anna@example.se", Password: "wrongpassword"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_InactiveAccount(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	user, err := svc.Register(context.Background(), RegisterRequest{Email: "anna@example.se", Password: "strongpassword", Name: "Anna"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.generateToken(user.ID, user.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	repo.deactivate(user.ID)
	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "strongpassword"}); !errors.Is(err, ErrInactive) {
		t.Fatalf("login: expected ErrInactive, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrInactive) {
		t.Fatalf("authenticate: expected ErrInactive, got %v", err)
	}
}

func TestService_VerifyTokenRejects(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)
	issued := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, err := svc.generateToken(7, directory.RoleTranslator)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	other := NewService(newFakeRepository(), "other-secret", time.Hour)
	other.now = svc.now
	if _, err := other.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("forged: expected ErrInvalidToken, got %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

type fakeRepository struct {
	usersByEmail map[string]directory.User
	usersByID    map[int64]directory.User
	nextID       int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]directory.User),
		usersByID:    make(map[int64]directory.User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(_ context.Context, params CreateUserParams) (directory.User, error) {
	email := strings.ToLower(params.Email)
	if _, exists := f.usersByEmail[email]; exists {
		return directory.User{}, ErrDuplicateEmail
	}

	user := directory.User{
		ID:           f.nextID,
		Email:        params.Email,
		Name:         params.Name,
		Mobile:       params.Mobile,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		Active:       true,
		Meta:         params.Meta,
		CreatedAt:    time.Now().UTC(),
	}
	f.nextID++

	f.usersByEmail[email] = user
	f.usersByID[user.ID] = user
	return user, nil
}

func (f *fakeRepository) UserByEmail(_ context.Context, email string) (directory.User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) UserByID(_ context.Context, id int64) (directory.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return directory.User{}, directory.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) deactivate(id int64) {
	user := f.usersByID[id]
	user.Active = false
	f.usersByID[id] = user
	f.usersByEmail[strings.ToLower(user.Email)] = user
}
