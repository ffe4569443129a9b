package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentityProvider struct {
	calls   atomic.Int32
	profile *model.IdentityProfile
	err     error
}

func (f *fakeIdentityProvider) GetProfile(_ context.Context, _ string) (*model.IdentityProfile, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

func TestResolve_CreatesUserOnFirstSight(t *testing.T) {
	store := testutil.NewMemStore(nil)
	provider := &fakeIdentityProvider{profile: &model.IdentityProfile{
		Email: "  Ada@Example.COM ", Name: "Ada Lovelace", AvatarURL: "https://img.example.com/ada.png",
	}}
	svc := NewIdentityService(store.UserRepo(), provider)
	ctx := context.Background()

	user, err := svc.Resolve(ctx, "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "https://img.example.com/ada.png", user.ProfilePicture)
	assert.Zero(t, user.TotalProblemsPosted)

	again, err := svc.Resolve(ctx, "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.EqualValues(t, 1, provider.calls.Load(), "known users are not fetched again")
}

func TestResolve_ConcurrentFirstRequestsYieldOneUser(t *testing.T) {
	store := testutil.NewMemStore(nil)
	provider := &fakeIdentityProvider{profile: &model.IdentityProfile{Email: "grace@example.com", Name: "Grace"}}
	svc := NewIdentityService(store.UserRepo(), provider)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := svc.Resolve(context.Background(), "user_race")
			if assert.NoError(t, err) {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestResolve_Failures(t *testing.T) {
	t.Run("empty principal", func(t *testing.T) {
		svc := NewIdentityService(testutil.NewMemStore(nil).UserRepo(), &fakeIdentityProvider{})
		_, err := svc.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, common.ErrUnauthorized)
	})

	t.Run("provider outage is unexpected", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		svc := NewIdentityService(store.UserRepo(), &fakeIdentityProvider{err: errors.New("503 from provider")})
		_, err := svc.Resolve(context.Background(), "user_x")
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, common.HTTPStatusFromError(err))
	})

	t.Run("lookup failure is unexpected", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		store.FailOn("UserRepository.FindByExternalID", errors.New("pool exhausted"))
		svc := NewIdentityService(store.UserRepo(), &fakeIdentityProvider{})
		_, err := svc.Resolve(context.Background(), "user_x")
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, common.HTTPStatusFromError(err))
	})

	t.Run("email owned by another principal", func(t *testing.T) {
		store := testutil.NewMemStore(nil)
		existing := store.SeedUser("Taken")
		svc := NewIdentityService(store.UserRepo(), &fakeIdentityProvider{
			profile: &model.IdentityProfile{Email: existing.Email, Name: "Impostor"},
		})
		_, err := svc.Resolve(context.Background(), "user_other")
		assert.ErrorIs(t, err, common.ErrConflict)
	})
}
