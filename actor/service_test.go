package actor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", 0)

	req := RegisterRequest{
		Email:    "vendor@example.com",
		Password: "supersafe",
		FullName: "PT Maju Jaya",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleVendor {
		t.Fatalf("register: expected default role %s got %s", RoleVendor, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.User.ID != user.ID {
		t.Fatalf("login: expected user id %q got %q", user.ID, resp.User.ID)
	}

	ident, err := svc.ResolveCaller(resp.Token)
	if err != nil {
		t.Fatalf("resolve caller: %v", err)
	}
	if ident.ActorID != user.ID {
		t.Fatalf("resolve caller: expected %q got %q", user.ID, ident.ActorID)
	}
	if ident.Role != RoleVendor {
		t.Fatalf("resolve caller: expected role %s got %s", RoleVendor, ident.Role)
	}
	if ident.DisplayName != req.FullName {
		t.Fatalf("resolve caller: expected display name %q got %q", req.FullName, ident.DisplayName)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", 0)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "vendor@example.com",
		Password: "short",
		FullName: "PT Maju Jaya",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		FullName: "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ops@example.com",
		Password: "strongpassword",
		FullName: "Ops User",
		Role:     Role("superadmin"),
	}); err == nil {
		t.Fatal("expected validation error for unknown role")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", 0)

	req := RegisterRequest{
		Email:    "vendor@example.com",
		Password: "strongpassword",
		FullName: "PT Maju Jaya",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", 0)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_ResolveCallerRejectsGarbage(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", 0)

	if _, err := svc.ResolveCaller("not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	// Token signed with a different secret must not resolve.
	other := NewService(newFakeRepository(), "other-secret", 0)
	token, err := other.generateToken(User{ID: "u1", Role: RolePic, FullName: "Pak Budi"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := svc.ResolveCaller(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for wrong secret, got %v", err)
	}
}

func TestDirectory_ListByRole(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", 0)
	dir := NewDirectory(repo)

	for i := 0; i < 3; i++ {
		if _, err := svc.Register(context.Background(), RegisterRequest{
			Email:    fmt.Sprintf("vendor%d@example.com", i),
			Password: "strongpassword",
			FullName: fmt.Sprintf("Vendor %d", i),
		}); err != nil {
			t.Fatalf("register vendor %d: %v", i, err)
		}
	}
	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "pic@example.com",
		Password: "strongpassword",
		FullName: "Gudang PIC",
		Role:     RolePic,
	}); err != nil {
		t.Fatalf("register pic: %v", err)
	}

	vendors, err := dir.ListByRole(context.Background(), RoleVendor, 10)
	if err != nil {
		t.Fatalf("list vendors: %v", err)
	}
	if len(vendors) != 3 {
		t.Fatalf("expected 3 vendor profiles, got %d", len(vendors))
	}
	for _, p := range vendors {
		if p.Role != RoleVendor {
			t.Fatalf("unexpected role in vendor listing: %s", p.Role)
		}
	}
}

type fakeRepository struct {
	usersByEmail map[string]User
	usersByID    map[string]User
	order        []string
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]User),
		usersByID:    make(map[string]User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByEmail[strings.ToLower(params.Email)]; exists {
		return User{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	role := params.Role
	if role == "" {
		role = RoleVendor
	}

	now := time.Now().UTC()
	user := User{
		ID:           id,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.usersByEmail[strings.ToLower(params.Email)] = user
	f.usersByID[id] = user
	f.order = append(f.order, id)
	return user, nil
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) ListByRole(ctx context.Context, role Role, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 20
	}
	out := make([]User, 0, limit)
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		u := f.usersByID[f.order[i]]
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}
