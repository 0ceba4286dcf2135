package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"credential-service/internal/domain"
	"credential-service/internal/email"
	"credential-service/internal/repository"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
	// skipLookups simula la carrera entre la comprobacion previa y el insert.
	skipLookups bool
	lookupErr   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.usersByID {
		if strings.EqualFold(existing.Email, user.Email) || strings.EqualFold(existing.UserName, user.UserName) {
			return repository.ErrUniqueViolation
		}
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return domain.User{}, m.lookupErr
	}
	if m.skipLookups {
		return domain.User{}, pgx.ErrNoRows
	}
	for _, u := range m.usersByID {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *mockUserRepo) GetByUserName(_ context.Context, userName string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return strings.EqualFold(u.UserName, userName) })
}

func (m *mockUserRepo) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsEmailVerified = true
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockEmailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockEmailSender) last() email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link without token: %s", link)
	}
	return token
}

type testEnv struct {
	repo   *mockUserRepo
	sender *mockEmailSender
	tokens *TokenService
	svc    *UserService
	now    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	tokens := newTestTokenService(&now)
	svc := NewUserService(zap.NewNop(), repo, NewBcryptHasher(bcrypt.MinCost), tokens, sender, UserServiceConfig{
		RedirectBaseURI: "http://localhost:3000/",
	})
	return &testEnv{repo: repo, sender: sender, tokens: tokens, svc: svc, now: &now}
}

func (e *testEnv) register(t *testing.T, emailAddr, userName, password string) domain.User {
	t.Helper()
	user, sessionToken, err := e.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		UserName:  userName,
		Email:     emailAddr,
		Password:  password,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, err := e.tokens.Verify(sessionToken)
	if err != nil || claims.Subject != user.ID || claims.Purpose != PurposeSession {
		t.Fatalf("unexpected session token: %+v %v", claims, err)
	}
	return user
}

func TestUserServiceRegister_Success(t *testing.T) {
	env := newTestEnv(t)

	user := env.register(t, "  A@X.com ", "ada", "12345678")
	if user.ID == "" || user.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.IsEmailVerified {
		t.Fatalf("new accounts must start unverified")
	}
	if user.PasswordHash == "" || user.PasswordHash == "12345678" {
		t.Fatalf("expected hashed password")
	}

	if env.sender.count() != 1 {
		t.Fatalf("expected verification email, got %d", env.sender.count())
	}
	msg := env.sender.last()
	if msg.To != "a@x.com" || msg.Template != email.TemplateVerifyEmail {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !strings.HasPrefix(msg.Data["link"], "http://localhost:3000/verify-email?token=") {
		t.Fatalf("unexpected link: %s", msg.Data["link"])
	}
	claims, err := env.tokens.Verify(tokenFromLink(t, msg.Data["link"]))
	if err != nil {
		t.Fatalf("verify link token: %v", err)
	}
	if claims.Subject != user.ID || claims.Purpose != PurposeAction {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestUserServiceRegister_Duplicates(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "ada", "12345678")

	_, _, err := env.svc.Register(context.Background(), RegisterInput{UserName: "other", Email: "A@X.COM", Password: "12345678"})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected duplicate for email, got %v", err)
	}
	_, _, err = env.svc.Register(context.Background(), RegisterInput{UserName: "ADA", Email: "b@x.com", Password: "12345678"})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected duplicate for user name, got %v", err)
	}
}

func TestUserServiceRegister_ConcurrentSameEmail(t *testing.T) {
	env := newTestEnv(t)
	env.repo.skipLookups = true

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := env.svc.Register(context.Background(), RegisterInput{
				UserName: "user" + string(rune('a'+i)),
				Email:    "a@x.com",
				Password: "12345678",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateAccount):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || dupes != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d duplicates", successes, dupes)
	}
}

func TestUserServiceRegister_MailFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("smtp down")

	user := env.register(t, "a@x.com", "ada", "12345678")
	if _, err := env.repo.GetByID(context.Background(), user.ID); err != nil {
		t.Fatalf("expected account persisted: %v", err)
	}
}

func TestUserServiceRegister_UsesRegistrationMailer(t *testing.T) {
	env := newTestEnv(t)
	queued := &mockEmailSender{}
	env.svc = NewUserService(zap.NewNop(), env.repo, NewBcryptHasher(bcrypt.MinCost), env.tokens, env.sender, UserServiceConfig{
		RedirectBaseURI:    "http://localhost:3000",
		RegistrationMailer: queued,
	})

	env.register(t, "a@x.com", "ada", "12345678")
	if queued.count() != 1 || env.sender.count() != 0 {
		t.Fatalf("expected registration mail on the registration mailer, got queued=%d direct=%d", queued.count(), env.sender.count())
	}
}

func TestUserServiceRegister_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.repo.lookupErr = errors.New("connection refused")

	_, _, err := env.svc.Register(context.Background(), RegisterInput{UserName: "ada", Email: "a@x.com", Password: "12345678"})
	if err == nil || errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestUserServiceRegister_PasswordTooLong(t *testing.T) {
	env := newTestEnv(t)

	for _, password := range []string{strings.Repeat("p", 73), strings.Repeat("ñ", 40)} {
		_, _, err := env.svc.Register(context.Background(), RegisterInput{UserName: "ada", Email: "a@x.com", Password: password})
		if !errors.Is(err, ErrPasswordTooLong) {
			t.Fatalf("expected ErrPasswordTooLong for %d bytes, got %v", len(password), err)
		}
	}
	if len(env.repo.usersByID) != 0 || env.sender.count() != 0 {
		t.Fatalf("rejected registrations must not persist or send mail")
	}

	env.register(t, "a@x.com", "ada", strings.Repeat("p", MaxPasswordBytes))
}

func TestUserServiceRegister_TokenFailureLeavesNoAccount(t *testing.T) {
	env := newTestEnv(t)
	env.svc = NewUserService(zap.NewNop(), env.repo, NewBcryptHasher(bcrypt.MinCost), NewTokenService("", "", time.Hour, time.Minute), env.sender, UserServiceConfig{})

	_, token, err := env.svc.Register(context.Background(), RegisterInput{UserName: "ada", Email: "a@x.com", Password: "12345678"})
	if err == nil || token != "" {
		t.Fatalf("expected token failure, got token=%q err=%v", token, err)
	}
	if len(env.repo.usersByID) != 0 {
		t.Fatalf("account must not be stored when the session token cannot be issued")
	}

	env.svc = NewUserService(zap.NewNop(), env.repo, NewBcryptHasher(bcrypt.MinCost), env.tokens, env.sender, UserServiceConfig{})
	env.register(t, "a@x.com", "ada", "12345678")
}

func TestUserServiceAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	registered := env.register(t, "a@x.com", "ada", "12345678")

	user, err := env.svc.Authenticate(context.Background(), "A@x.com", "12345678")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("unexpected user %s", user.ID)
	}

	_, wrongPassword := env.svc.Authenticate(context.Background(), "a@x.com", "wrong")
	_, unknownUser := env.svc.Authenticate(context.Background(), "nobody@x.com", "12345678")
	_, empty := env.svc.Authenticate(context.Background(), "", "")
	for _, err := range []error{wrongPassword, unknownUser, empty} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials, got %v", err)
		}
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("wrong password and unknown user must be indistinguishable")
	}
}

func TestUserServiceIsUserNameAvailable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "ada", "12345678")

	cases := map[string]bool{"ada": false, "ADA": false, " ada ": false, "grace": true, "": false}
	for name, want := range cases {
		got, err := env.svc.IsUserNameAvailable(context.Background(), name)
		if err != nil {
			t.Fatalf("availability %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("availability %q = %v, want %v", name, got, want)
		}
	}
}

func TestUserServiceGetUser_UnknownSubject(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.GetUser(context.Background(), "missing"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected unknown subject, got %v", err)
	}
}
