package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/queue"
	"github.com/iliyamo/calculations-api/internal/repository"
)

type fakeUsers struct {
	mu       sync.Mutex
	byID     map[string]model.User
	touchErr error
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicateUser
		}
	}
	f.byID[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	login = strings.TrimSpace(login)
	for _, u := range f.byID {
		if u.Username == login || u.Email == strings.ToLower(login) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.LastLogin = &at
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) setActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.IsActive = active
	f.byID[id] = u
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeCalculations struct {
	mu   sync.Mutex
	rows map[string]model.Calculation
}

func newFakeCalculations() *fakeCalculations {
	return &fakeCalculations{rows: map[string]model.Calculation{}}
}

func (f *fakeCalculations) Create(_ context.Context, c *model.Calculation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[c.ID] = *c
	return nil
}

func (f *fakeCalculations) ListByOwner(_ context.Context, ownerID string) ([]model.Calculation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Calculation, 0)
	for _, c := range f.rows {
		if c.UserID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeCalculations) GetByIDAndOwner(_ context.Context, id, ownerID string) (model.Calculation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != ownerID {
		return model.Calculation{}, repository.ErrCalculationNotFound
	}
	return c, nil
}

func (f *fakeCalculations) Update(_ context.Context, id, ownerID string, mutate func(*model.Calculation) error) (model.Calculation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != ownerID {
		return model.Calculation{}, repository.ErrCalculationNotFound
	}
	c.Inputs = append([]float64(nil), c.Inputs...)
	if err := mutate(&c); err != nil {
		return model.Calculation{}, err
	}
	f.rows[id] = c
	return c, nil
}

func (f *fakeCalculations) DeleteByIDAndOwner(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.UserID != ownerID {
		return repository.ErrCalculationNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.CalculationEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.CalculationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) actions() []queue.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.Action, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Action
	}
	return out
}

var errBroker = errors.New("broker unavailable")

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
)

type authFixture struct {
	svc   *AuthService
	users *fakeUsers
	mr    *miniredis.Miniredis
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := newFakeUsers()
	svc, err := NewAuthService(users, repository.NewTokenDenylist(rdb), AuthConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		BcryptCost:    bcrypt.MinCost,
	})
	require.NoError(t, err)
	return authFixture{svc: svc, users: users, mr: mr}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:        "alice",
		Email:           "Alice@Example.com",
		Password:        "Secret123",
		ConfirmPassword: "Secret123",
		FirstName:       "Alice",
		LastName:        "Smith",
	}
}

func (f authFixture) register(t *testing.T) model.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	return u
}
