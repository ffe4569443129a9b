package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/users/user_1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "user_1",
				"first_name": "Ada",
				"last_name": "Lovelace",
				"image_url": "https://img.example.com/ada.png",
				"primary_email_address_id": "idn_2",
				"email_addresses": [
					{"id": "idn_1", "email_address": "old@example.com"},
					{"id": "idn_2", "email_address": "ada@example.com"}
				]
			}`))
		case "/v1/users/user_nameless":
			w.Write([]byte(`{"id": "user_nameless", "username": "grace", "email_addresses": [{"id": "a", "email_address": "g@example.com"}]}`))
		case "/v1/users/user_broken":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "sk_test", time.Second)
	ctx := context.Background()

	p, err := client.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "https://img.example.com/ada.png", p.AvatarURL)

	p, err = client.GetProfile(ctx, "user_nameless")
	require.NoError(t, err)
	assert.Equal(t, "grace", p.Name)
	assert.Equal(t, "g@example.com", p.Email)

	_, err = client.GetProfile(ctx, "user_missing")
	assert.ErrorIs(t, err, ErrUnknownPrincipal)

	_, err = client.GetProfile(ctx, "user_broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
