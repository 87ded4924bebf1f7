package dmapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informaticsmatters/squonk2-dm-api-go/internal/keycloaktest"
	"github.com/informaticsmatters/squonk2-dm-api-go/pkg/dmapi"
)

func tokenRequest(realm *keycloaktest.Realm, prior string) dmapi.TokenRequest {
	return dmapi.TokenRequest{
		KeycloakURL: realm.URL(),
		Realm:       realm.Name,
		ClientID:    "data-manager-api",
		Username:    "dmit-user",
		Password:    "secret",
		PriorToken:  prior,
	}
}

func TestGetAccessToken_PasswordGrant(t *testing.T) {
	realm := keycloaktest.New(t, "squonk")
	client := dmapi.New()

	token, err := client.GetAccessToken(context.Background(), tokenRequest(realm, ""))
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.Equal(t, 1, realm.TokenRequests())
	assert.Equal(t, 0, realm.MetadataRequests(), "no prior token, no key needed")

	form := realm.LastTokenForm()
	assert.Equal(t, "data-manager-api", form.Get("client_id"))
	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "dmit-user", form.Get("username"))
	assert.Equal(t, "secret", form.Get("password"))
	assert.Empty(t, form.Get("client_secret"))
}

func TestGetAccessToken_PriorTokenReuse(t *testing.T) {
	tests := []struct {
		name          string
		expiresIn     time.Duration
		wantReuse     bool
		tokenRequests int
	}{
		{name: "two minutes left", expiresIn: 120 * time.Second, wantReuse: true, tokenRequests: 0},
		{name: "thirty seconds left", expiresIn: 30 * time.Second, wantReuse: false, tokenRequests: 1},
		{name: "already expired", expiresIn: -10 * time.Minute, wantReuse: false, tokenRequests: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			realm := keycloaktest.New(t, "squonk")
			client := dmapi.New()
			prior := realm.Mint(t, time.Now().Add(tt.expiresIn))

			token, err := client.GetAccessToken(context.Background(), tokenRequest(realm, prior))
			require.NoError(t, err)

			if tt.wantReuse {
				assert.Equal(t, prior, token)
			} else {
				assert.NotEqual(t, prior, token)
				assert.NotEmpty(t, token)
			}
			assert.Equal(t, tt.tokenRequests, realm.TokenRequests())
			assert.Equal(t, 1, realm.MetadataRequests())
		})
	}
}

func TestGetAccessToken_RealmKeyCache(t *testing.T) {
	first := keycloaktest.New(t, "squonk")
	second := keycloaktest.New(t, "xchem")
	client := dmapi.New()
	ctx := context.Background()
	exp := time.Now().Add(10 * time.Minute)

	for i := 0; i < 2; i++ {
		_, err := client.GetAccessToken(ctx, tokenRequest(first, first.Mint(t, exp)))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, first.MetadataRequests(), "same realm fetches its key once")

	_, err := client.GetAccessToken(ctx, tokenRequest(second, second.Mint(t, exp)))
	require.NoError(t, err)
	assert.Equal(t, 1, second.MetadataRequests())
	assert.Equal(t, 1, first.MetadataRequests())

	// Only the most recent realm is remembered.
	_, err = client.GetAccessToken(ctx, tokenRequest(first, first.Mint(t, exp)))
	require.NoError(t, err)
	assert.Equal(t, 2, first.MetadataRequests())
}

func TestGetAccessToken_PriorTokenFromAnotherKey(t *testing.T) {
	realm := keycloaktest.New(t, "squonk")
	client := dmapi.New()
	prior := keycloaktest.MintUnsigned(t, time.Now().Add(time.Hour))

	token, err := client.GetAccessToken(context.Background(), tokenRequest(realm, prior))
	require.Error(t, err)
	assert.Empty(t, token)
	assert.ErrorIs(t, err, dmapi.ErrTokenDecode)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	assert.Equal(t, 0, realm.TokenRequests())
}

func TestGetAccessToken_PriorTokenWithoutExpiry(t *testing.T) {
	realm := keycloaktest.New(t, "squonk")
	client := dmapi.New()
	prior := realm.MintClaims(t, jwt.MapClaims{"sub": "dmit-user"})

	_, err := client.GetAccessToken(context.Background(), tokenRequest(realm, prior))
	assert.ErrorIs(t, err, dmapi.ErrTokenDecode)
	assert.Equal(t, 0, realm.TokenRequests())
}

func TestGetAccessToken_RejectsSymmetricPriorToken(t *testing.T) {
	realm := keycloaktest.New(t, "squonk")
	client := dmapi.New()
	prior, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = client.GetAccessToken(context.Background(), tokenRequest(realm, prior))
	assert.ErrorIs(t, err, dmapi.ErrTokenDecode)
	assert.Equal(t, 0, realm.TokenRequests())
}

func TestGetAccessToken_Failures(t *testing.T) {
	t.Run("credentials refused", func(t *testing.T) {
		realm := keycloaktest.New(t, "squonk")
		realm.FailTokenRequests(http.StatusUnauthorized)

		_, err := dmapi.New().GetAccessToken(context.Background(), tokenRequest(realm, ""))
		require.Error(t, err)
		assert.ErrorIs(t, err, dmapi.ErrTokenExchange)

		var dmErr *dmapi.Error
		require.True(t, errors.As(err, &dmErr))
		assert.Equal(t, http.StatusUnauthorized, dmErr.StatusCode)
	})

	t.Run("token issued with a status other than 200", func(t *testing.T) {
		realm := keycloaktest.New(t, "squonk")
		realm.FailTokenRequests(http.StatusCreated)

		token, err := dmapi.New().GetAccessToken(context.Background(), tokenRequest(realm, ""))
		assert.Empty(t, token)
		assert.ErrorIs(t, err, dmapi.ErrTokenExchange)

		var dmErr *dmapi.Error
		require.True(t, errors.As(err, &dmErr))
		assert.Equal(t, http.StatusCreated, dmErr.StatusCode)
		assert.Equal(t, 1, realm.TokenRequests())
	})

	t.Run("response without access_token", func(t *testing.T) {
		realm := keycloaktest.New(t, "squonk")
		realm.OmitAccessToken()

		_, err := dmapi.New().GetAccessToken(context.Background(), tokenRequest(realm, ""))
		assert.ErrorIs(t, err, dmapi.ErrProtocol)
	})

	t.Run("keycloak unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		_, err := dmapi.New().GetAccessToken(context.Background(), dmapi.TokenRequest{
			KeycloakURL: server.URL,
			Realm:       "squonk",
			ClientID:    "data-manager-api",
			Username:    "dmit-user",
			Password:    "secret",
		})
		assert.ErrorIs(t, err, dmapi.ErrTokenExchange)
	})

	t.Run("unknown realm metadata", func(t *testing.T) {
		realm := keycloaktest.New(t, "squonk")
		req := tokenRequest(realm, realm.Mint(t, time.Now().Add(time.Hour)))
		req.Realm = "missing"

		_, err := dmapi.New().GetAccessToken(context.Background(), req)
		assert.ErrorIs(t, err, dmapi.ErrRealmMetadata)
		assert.Equal(t, 0, realm.TokenRequests())
	})

	t.Run("missing arguments", func(t *testing.T) {
		_, err := dmapi.New().GetAccessToken(context.Background(), dmapi.TokenRequest{
			KeycloakURL: "https://example.com/auth",
			Realm:       "squonk",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, dmapi.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "client ID")
		assert.Contains(t, err.Error(), "username")
		assert.Contains(t, err.Error(), "password")
	})
}

func TestGetAccessToken_FailedKeyFetchIsNotCached(t *testing.T) {
	realm := keycloaktest.New(t, "squonk")
	client := dmapi.New()
	ctx := context.Background()
	prior := realm.Mint(t, time.Now().Add(time.Hour))

	bad := tokenRequest(realm, prior)
	bad.Realm = "missing"
	_, err := client.GetAccessToken(ctx, bad)
	require.ErrorIs(t, err, dmapi.ErrRealmMetadata)

	token, err := client.GetAccessToken(ctx, tokenRequest(realm, prior))
	require.NoError(t, err)
	assert.Equal(t, prior, token)
	assert.Equal(t, 1, realm.MetadataRequests())
}
