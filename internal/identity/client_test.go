package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"schoolhub/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func TestCreateUser_Success(t *testing.T) {
	var gotIdempotencyKey, gotAuth string
	var gotBody NewUser

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/users", r.URL.Path)
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(User{ID: "user_abc"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	user, err := client.CreateUser(context.Background(), NewUser{
		Username:  "ivanov",
		Password:  "correct-horse",
		FirstName: "Иван",
		LastName:  "Иванов",
		Role:      "teacher",
	})
	require.NoError(t, err)
	assert.Equal(t, "user_abc", user.ID)
	assert.NotEmpty(t, gotIdempotencyKey)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "ivanov", gotBody.Username)
	assert.Equal(t, "teacher", gotBody.Role)
}

func TestCreateUser_UsernameExistsNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"code":"form_identifier_exists","message":"taken"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.CreateUser(context.Background(), NewUser{Username: "ivanov"})
	require.ErrorIs(t, err, ErrUsernameExists)
	// 4xx не ретраится.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateUser_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(User{ID: "user_retry"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	user, err := client.CreateUser(context.Background(), NewUser{Username: "petrov"})
	require.NoError(t, err)
	assert.Equal(t, "user_retry", user.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUpdateUser_PasswordPwned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"code":"form_password_pwned","message":"pwned"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	err := client.UpdateUser(context.Background(), "user_1", UserUpdate{Username: "ivanov", Password: "123456"})
	require.ErrorIs(t, err, ErrPasswordPwned)
}

func TestDeleteUser_NotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	require.NoError(t, client.DeleteUser(context.Background(), "user_gone"))
}

func TestCompensate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	assert.True(t, client.Compensate("user_1"))

	srv.Close()
	// Провайдер недоступен, компенсация не удалась.
	assert.False(t, client.Compensate("user_1"))
}
