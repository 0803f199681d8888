package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"depot/internal/auth"

	"github.com/stretchr/testify/require"
)

func TestBasicAuth(t *testing.T) {
	t.Parallel()

	engine := auth.NewBasic(map[string]string{
		"deployer": "hunter2",
	})

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{name: "valid credentials", username: "deployer", password: "hunter2", want: true},
		{name: "wrong password", username: "deployer", password: "hunter3", want: false},
		{name: "unknown user", username: "intruder", password: "hunter2", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/repository/a.jar", nil)
			r.SetBasicAuth(tt.username, tt.password)

			ok, err := engine.Authenticate(context.Background(), r)
			require.NoError(t, err, "Authenticate error")
			require.Equal(t, tt.want, ok, "authentication result")
		})
	}
}

func TestBasicAuthMissingHeader(t *testing.T) {
	t.Parallel()

	engine := auth.NewBasic(map[string]string{"deployer": "hunter2"})

	r := httptest.NewRequest(http.MethodGet, "/repository/a.jar", nil)
	ok, err := engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.False(t, ok, "request without header must be declined")
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()

	engine := auth.NewToken([]string{"deploy-token-1", "deploy-token-2"})

	r := httptest.NewRequest(http.MethodPut, "/repository/a.jar", nil)
	r.Header.Set("Authorization", "Bearer deploy-token-2")

	ok, err := engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.True(t, ok, "accepted token")

	r.Header.Set("Authorization", "Bearer forged")
	ok, err = engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.False(t, ok, "forged token")

	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	ok, err = engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.False(t, ok, "non-bearer scheme must be declined")
}

func TestCompoundAuthFirstMatchWins(t *testing.T) {
	t.Parallel()

	engine := auth.NewCompound(
		auth.NewBasic(map[string]string{"deployer": "hunter2"}),
		auth.NewToken([]string{"deploy-token"}),
	)

	r := httptest.NewRequest(http.MethodPut, "/repository/a.jar", nil)
	r.Header.Set("Authorization", "Bearer deploy-token")

	ok, err := engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.True(t, ok, "token accepted through compound engine")

	r.Header.Del("Authorization")
	r.SetBasicAuth("deployer", "hunter2")
	ok, err = engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.True(t, ok, "basic accepted through compound engine")

	r.Header.Set("Authorization", "Bearer forged")
	ok, err = engine.Authenticate(context.Background(), r)
	require.NoError(t, err, "Authenticate error")
	require.False(t, ok, "no engine should accept a forged token")
}
