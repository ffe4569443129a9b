package service

import (
	"context"
	"testing"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.store.SeedUser("Dev")

	bio := "Backend developer who likes transit data"
	site := "https://dev.example.com"
	updated, err := env.users.UpdateProfile(ctx, u.ID, model.UpdateProfileInput{
		Bio:        &bio,
		WebsiteURL: &site,
		Skills:     []string{" go ", "postgres"},
	})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, []string{"go", "postgres"}, updated.Skills)
	assert.Equal(t, "Dev", updated.Name)

	me, err := env.users.GetMe(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, site, me.WebsiteURL)

	bad := "not a url"
	_, err = env.users.UpdateProfile(ctx, u.ID, model.UpdateProfileInput{GithubURL: &bad})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = env.users.UpdateProfile(ctx, u.ID, model.UpdateProfileInput{Skills: []string{"go", " "}})
	assert.ErrorIs(t, err, common.ErrValidation)
}
