package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService("admin", string(hash), "jwt-secret")
}

func TestLoginAndValidate(t *testing.T) {
	s := newService(t)

	res, err := s.Login(&LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)

	subject, err := s.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newService(t)

	_, err := s.Login(&LoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(&LoginRequest{Username: "root", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	s := newService(t)
	res, err := s.Login(&LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = s.ValidateToken(res.AccessToken)
	assert.Error(t, err)
}

func TestTokenFromOtherSecretIsRejected(t *testing.T) {
	res, err := newService(t).Login(&LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	other := newService(t)
	other.jwtSecret = []byte("different")
	_, err = other.ValidateToken(res.AccessToken)
	assert.Error(t, err)
}

func TestDisabledService(t *testing.T) {
	s := NewService("admin", "", "")
	assert.False(t, s.Enabled())
	_, err := s.Login(&LoginRequest{Username: "admin"})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = s.ValidateToken("x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLoginHandler(t *testing.T) {
	h := NewHandler(newService(t))

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"admin","password":"s3cret"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_token")

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"admin","password":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
