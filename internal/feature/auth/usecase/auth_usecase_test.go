package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mosaic_backend/internal/feature/auth/domain/entity"
	"mosaic_backend/internal/platform/apperr"
	jwtmw "mosaic_backend/internal/platform/jwt"
)

// mockUserRepository is a mock implementation of the UserRepository interface.
// Unset functions behave like an empty store.
type mockUserRepository struct {
	CreateFunc                 func(user *entity.User) error
	FindByEmailFunc            func(email string, selectPassword bool) (*entity.User, error)
	FindByIDFunc               func(id uint) (*entity.User, error)
	VerifyUserFunc             func(id uint) (*entity.User, error)
	SetOtpFunc                 func(id uint, otp string, expiresAt time.Time) error
	ClearOtpFunc               func(id uint) error
	SetResetTokenFunc          func(id uint, digest string, expiresAt time.Time) error
	ClearResetTokenFunc        func(id uint) error
	UpdatePasswordFunc         func(id uint, newPassword string) error
	UpdateLastLoginFunc        func(id uint) error
	IncrementLoginAttemptsFunc func(id uint) error
	ResetLoginAttemptsFunc     func(id uint) error
	UpdateProfileFunc          func(id uint, p entity.ProfilePatch) (*entity.User, error)
}

var errNotFound = apperr.NotFound("User not found")

func (m *mockUserRepository) Create(_ context.Context, user *entity.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(user)
	}
	return nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string, selectPassword bool) (*entity.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(email, selectPassword)
	}
	return nil, errNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id uint) (*entity.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, errNotFound
}

func (m *mockUserRepository) VerifyUser(_ context.Context, id uint) (*entity.User, error) {
	if m.VerifyUserFunc != nil {
		return m.VerifyUserFunc(id)
	}
	u := &entity.User{Email: "test@example.com", IsVerified: true, Status: entity.StatusActive}
	u.ID = id
	return u, nil
}

func (m *mockUserRepository) SetOtp(_ context.Context, id uint, otp string, expiresAt time.Time) error {
	if m.SetOtpFunc != nil {
		return m.SetOtpFunc(id, otp, expiresAt)
	}
	return nil
}

func (m *mockUserRepository) ClearOtp(_ context.Context, id uint) error {
	if m.ClearOtpFunc != nil {
		return m.ClearOtpFunc(id)
	}
	return nil
}

func (m *mockUserRepository) SetResetToken(_ context.Context, id uint, digest string, expiresAt time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(id, digest, expiresAt)
	}
	return nil
}

func (m *mockUserRepository) ClearResetToken(_ context.Context, id uint) error {
	if m.ClearResetTokenFunc != nil {
		return m.ClearResetTokenFunc(id)
	}
	return nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, id uint, newPassword string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(id, newPassword)
	}
	return nil
}

func (m *mockUserRepository) UpdateLastLogin(_ context.Context, id uint) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(id)
	}
	return nil
}

func (m *mockUserRepository) IncrementLoginAttempts(_ context.Context, id uint) error {
	if m.IncrementLoginAttemptsFunc != nil {
		return m.IncrementLoginAttemptsFunc(id)
	}
	return nil
}

func (m *mockUserRepository) ResetLoginAttempts(_ context.Context, id uint) error {
	if m.ResetLoginAttemptsFunc != nil {
		return m.ResetLoginAttemptsFunc(id)
	}
	return nil
}

func (m *mockUserRepository) UpdateProfile(_ context.Context, id uint, p entity.ProfilePatch) (*entity.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(id, p)
	}
	return nil, errNotFound
}

// mockMailer records queued emails.
type mockMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
	otps []string
}

func (m *mockMailer) record(kind, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, kind)
	if otp != "" {
		m.otps = append(m.otps, otp)
	}
	return m.err
}

func (m *mockMailer) SendOtp(_ context.Context, _, otp, _ string) error { return m.record("otp", otp) }
func (m *mockMailer) SendWelcome(_ context.Context, _, _ string) error  { return m.record("welcome", "") }
func (m *mockMailer) SendPasswordReset(_ context.Context, _, otp, _ string) error {
	return m.record("password_reset", otp)
}

// mockNotifier records pushed events.
type mockNotifier struct {
	events []string
}

func (m *mockNotifier) SendToUser(_ uint, event string, _ any) int {
	m.events = append(m.events, event)
	return 1
}

// mockPresigner is a mock implementation of the Presigner interface.
type mockPresigner struct {
	PresignPutFunc func(key, contentType string) (string, error)
}

func (m *mockPresigner) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if m.PresignPutFunc != nil {
		return m.PresignPutFunc(key, contentType)
	}
	return "https://bucket.example.com/" + key, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIssuer() *jwtmw.Issuer {
	return jwtmw.NewIssuer("access-secret-0123456789", "refresh-secret-0123456789", 15*time.Minute, 7*24*time.Hour)
}

func newTestUsecase(repo *mockUserRepository, mailer *mockMailer, notifier *mockNotifier) *AuthUsecase {
	if mailer == nil {
		mailer = &mockMailer{}
	}
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	uc := NewAuthUsecase(repo, newTestIssuer(), mailer, n, nil, Options{OTPTTL: 10 * time.Minute, AdminSecret: "admin-secret"})
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func ptr[T any](v T) *T { return &v }

func TestGenerateOTP(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		otp, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, otp, 6)
		assert.GreaterOrEqual(t, otp, "100000")
		assert.LessOrEqual(t, otp, "999999")
	}
}

func TestAuthUsecase_Signup(t *testing.T) {
	t.Parallel()

	t.Run("successful signup", func(t *testing.T) {
		t.Parallel()

		var created *entity.User
		repo := &mockUserRepository{
			CreateFunc: func(user *entity.User) error {
				created = user
				user.ID = 7
				return nil
			},
		}
		mailer := &mockMailer{}
		uc := newTestUsecase(repo, mailer, nil)

		user, err := uc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw123456", FirstName: " Jo ", LastName: "Doe"})
		require.NoError(t, err)
		assert.Same(t, created, user)
		assert.Equal(t, entity.StatusPending, user.Status)
		assert.False(t, user.IsVerified)
		assert.Equal(t, "Jo", user.FirstName)
		assert.NotEmpty(t, user.TenantID)
		require.NotNil(t, user.OTP)
		require.NotNil(t, user.OTPExpires)
		assert.Equal(t, fixedNow.Add(10*time.Minute), *user.OTPExpires)
		assert.Equal(t, []string{"otp"}, mailer.sent, "exactly one OTP email is queued")
		assert.Equal(t, []string{*user.OTP}, mailer.otps)
	})

	t.Run("email already exists", func(t *testing.T) {
		t.Parallel()

		createCalled := false
		repo := &mockUserRepository{
			FindByEmailFunc: func(string, bool) (*entity.User, error) { return &entity.User{}, nil },
			CreateFunc:      func(*entity.User) error { createCalled = true; return nil },
		}
		mailer := &mockMailer{}
		uc := newTestUsecase(repo, mailer, nil)

		_, err := uc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw123456"})
		assert.ErrorIs(t, err, ErrEmailAlreadyExists)
		assert.Equal(t, 409, apperr.StatusOf(err))
		assert.False(t, createCalled)
		assert.Empty(t, mailer.sent)
	})

	t.Run("create conflict race", func(t *testing.T) {
		t.Parallel()

		repo := &mockUserRepository{
			CreateFunc: func(*entity.User) error { return apperr.Conflict("Duplicate value for User") },
		}
		uc := newTestUsecase(repo, nil, nil)

		_, err := uc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw123456"})
		assert.ErrorIs(t, err, ErrEmailAlreadyExists)
	})

	t.Run("email failure does not fail signup", func(t *testing.T) {
		t.Parallel()

		mailer := &mockMailer{err: errors.New("outbox unavailable")}
		uc := newTestUsecase(&mockUserRepository{}, mailer, nil)

		user, err := uc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw123456"})
		require.NoError(t, err)
		assert.NotNil(t, user)
	})
}

func TestAuthUsecase_Login(t *testing.T) {
	t.Parallel()

	password := "password123"
	newUser := func() *entity.User {
		u := &entity.User{Email: "test@example.com", Password: hashed(t, password), Role: entity.RoleUser, LoginAttempts: 2}
		u.ID = 1
		return u
	}

	t.Run("successful login", func(t *testing.T) {
		t.Parallel()

		var reset, stamped bool
		repo := &mockUserRepository{
			FindByEmailFunc: func(email string, selectPassword bool) (*entity.User, error) {
				assert.True(t, selectPassword)
				return newUser(), nil
			},
			ResetLoginAttemptsFunc: func(uint) error { reset = true; return nil },
			UpdateLastLoginFunc:    func(uint) error { stamped = true; return nil },
		}
		uc := newTestUsecase(repo, nil, nil)

		res, err := uc.Login(context.Background(), "test@example.com", password)
		require.NoError(t, err)
		assert.Empty(t, res.User.Password)
		assert.NotEmpty(t, res.AccessToken.Value)
		assert.NotEmpty(t, res.RefreshToken.Value)
		assert.True(t, reset)
		assert.True(t, stamped)

		claims, err := newTestIssuer().ParseRefresh(res.RefreshToken.Value)
		require.NoError(t, err)
		assert.Equal(t, uint(1), claims.UserID)
		assert.Equal(t, entity.RoleUser, claims.Role)
	})

	t.Run("non active account still logs in", func(t *testing.T) {
		t.Parallel()

		repo := &mockUserRepository{
			FindByEmailFunc: func(string, bool) (*entity.User, error) {
				u := newUser()
				u.Status = entity.StatusSuspended
				return u, nil
			},
		}
		uc := newTestUsecase(repo, nil, nil)

		_, err := uc.Login(context.Background(), "test@example.com", password)
		assert.NoError(t, err)
	})

	t.Run("wrong password and unknown email share one error", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		repo := &mockUserRepository{
			FindByEmailFunc: func(email string, _ bool) (*entity.User, error) {
				if email == "test@example.com" {
					return newUser(), nil
				}
				return nil, errNotFound
			},
			IncrementLoginAttemptsFunc: func(uint) error { attempts++; return nil },
		}
		uc := newTestUsecase(repo, nil, nil)

		_, errWrong := uc.Login(context.Background(), "test@example.com", "wrongpassword")
		_, errUnknown := uc.Login(context.Background(), "nobody@example.com", password)

		for _, err := range []error{errWrong, errUnknown} {
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			ae, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, "Invalid email or password", ae.Message)
			assert.Equal(t, 401, ae.Status())
		}
		assert.Equal(t, 1, attempts)
	})

	t.Run("storage failure is not masked", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("db down")
		repo := &mockUserRepository{
			FindByEmailFunc: func(string, bool) (*entity.User, error) { return nil, boom },
		}
		uc := newTestUsecase(repo, nil, nil)

		_, err := uc.Login(context.Background(), "test@example.com", password)
		assert.ErrorIs(t, err, boom)
	})
}

func TestAuthUsecase_RefreshToken(t *testing.T) {
	t.Parallel()

	uc := newTestUsecase(&mockUserRepository{}, nil, nil)
	refresh, err := newTestIssuer().RefreshToken(5, "r@x.com", entity.RoleAdmin)
	require.NoError(t, err)
	access, err := newTestIssuer().AccessToken(5, "r@x.com", entity.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"missing", "", "Refresh token missing"},
		{"garbage", "not-a-jwt", "Invalid refresh token"},
		{"access token is not a refresh token", access.Value, "Invalid refresh token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := uc.RefreshToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidRefreshToken)
			ae, _ := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, tt.wantMsg, ae.Message)
			assert.Equal(t, 401, ae.Status())
		})
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		tok, err := uc.RefreshToken(context.Background(), refresh.Value)
		require.NoError(t, err)
		claims, err := newTestIssuer().ParseAccess(tok.Value)
		require.NoError(t, err)
		assert.Equal(t, uint(5), claims.UserID)
		assert.Equal(t, "r@x.com", claims.Email)
		assert.Equal(t, entity.RoleAdmin, claims.Role)
	})
}

func TestAuthUsecase_AdminSignup(t *testing.T) {
	t.Parallel()

	in := AdminSignupInput{SignupInput: SignupInput{Email: "admin@x.com", Password: "pw123456", FirstName: "Ad", LastName: "Min"}}

	t.Run("creates verified active admin", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		u, err := uc.AdminSignup(context.Background(), "admin-secret", in)
		require.NoError(t, err)
		assert.Equal(t, entity.RoleAdmin, u.Role)
		assert.True(t, u.IsVerified)
		assert.Equal(t, entity.StatusActive, u.Status)
	})

	t.Run("super admin role", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		withRole := in
		withRole.Role = entity.RoleSuperAdmin
		u, err := uc.AdminSignup(context.Background(), "admin-secret", withRole)
		require.NoError(t, err)
		assert.Equal(t, entity.RoleSuperAdmin, u.Role)
	})

	t.Run("invalid role", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		bad := in
		bad.Role = "ROOT"
		_, err := uc.AdminSignup(context.Background(), "admin-secret", bad)
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		_, err := uc.AdminSignup(context.Background(), "guess", in)
		assert.ErrorIs(t, err, ErrInvalidAdminSecret)
		assert.Equal(t, 401, apperr.StatusOf(err))
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		uc.opts.AdminSecret = ""
		_, err := uc.AdminSignup(context.Background(), "", in)
		assert.ErrorIs(t, err, ErrInvalidAdminSecret)
	})

	t.Run("existing email", func(t *testing.T) {
		t.Parallel()

		repo := &mockUserRepository{
			FindByEmailFunc: func(string, bool) (*entity.User, error) { return &entity.User{}, nil },
		}
		uc := newTestUsecase(repo, nil, nil)
		_, err := uc.AdminSignup(context.Background(), "admin-secret", in)
		ae, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, "Admin already exists with this email", ae.Message)
		assert.Equal(t, 409, ae.Status())
	})
}

func TestAuthUsecase_Me(t *testing.T) {
	t.Parallel()

	uc := newTestUsecase(&mockUserRepository{}, nil, nil)
	_, err := uc.Me(context.Background(), 3)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthUsecase_AvatarUploadURL(t *testing.T) {
	t.Parallel()

	t.Run("storage not configured", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		_, err := uc.AvatarUploadURL(context.Background(), 1, "image/png")
		assert.ErrorIs(t, err, ErrStorageDisabled)
		assert.Equal(t, 503, apperr.StatusOf(err))
	})

	t.Run("presigns a dated key", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		uc.avatars = &mockPresigner{}
		up, err := uc.AvatarUploadURL(context.Background(), 9, "image/jpeg")
		require.NoError(t, err)
		assert.Regexp(t, `^avatars/9/2026-03-01/[0-9a-f-]{36}\.jpg$`, up.Key)
		assert.Equal(t, "https://bucket.example.com/"+up.Key, up.URL)
	})

	t.Run("rejects other content types", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		uc.avatars = &mockPresigner{}
		_, err := uc.AvatarUploadURL(context.Background(), 9, "application/pdf")
		assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))
	})

	t.Run("presign failure", func(t *testing.T) {
		t.Parallel()

		uc := newTestUsecase(&mockUserRepository{}, nil, nil)
		uc.avatars = &mockPresigner{PresignPutFunc: func(string, string) (string, error) { return "", errors.New("no creds") }}
		_, err := uc.AvatarUploadURL(context.Background(), 9, "image/png")
		assert.Equal(t, 500, apperr.StatusOf(err))
	})
}
