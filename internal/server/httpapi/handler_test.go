package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/auth"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/services"
)

type stubUserService struct {
	registerUser *models.User
	registerErr  error
	loginResult  *services.LoginResult
	loginErr     error
	mfaStatus    *services.MfaStatusResult
	mfaErr       error
}

func (s *stubUserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubUserService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubUserService) MfaStatus(ctx context.Context, username, password string) (*services.MfaStatusResult, error) {
	return s.mfaStatus, s.mfaErr
}

type stubMfaService struct {
	setupURI   string
	setupErr   error
	verifyErr  error
	disableErr error
	otpErr     error

	gotUsername string
	gotCode     string
}

func (s *stubMfaService) Setup(ctx context.Context, username string) (string, error) {
	s.gotUsername = username
	return s.setupURI, s.setupErr
}

func (s *stubMfaService) Verify(ctx context.Context, username, code string) error {
	s.gotUsername, s.gotCode = username, code
	return s.verifyErr
}

func (s *stubMfaService) Disable(ctx context.Context, username, code string) error {
	s.gotUsername, s.gotCode = username, code
	return s.disableErr
}

func (s *stubMfaService) CheckLoginOTP(ctx context.Context, username, code string) error {
	s.gotUsername, s.gotCode = username, code
	return s.otpErr
}

type stubCredentialService struct {
	addCred    *models.Credential
	addErr     error
	entries    []services.VaultEntry
	listErr    error
	deleteErr  error
	deletedAll int64

	gotOwner string
}

func (s *stubCredentialService) Add(ctx context.Context, owner, site, account, password string) (*models.Credential, error) {
	s.gotOwner = owner
	return s.addCred, s.addErr
}

func (s *stubCredentialService) List(ctx context.Context, owner string) ([]services.VaultEntry, error) {
	s.gotOwner = owner
	return s.entries, s.listErr
}

func (s *stubCredentialService) Delete(ctx context.Context, owner, site, account string) error {
	s.gotOwner = owner
	return s.deleteErr
}

func (s *stubCredentialService) DeleteAll(ctx context.Context, owner string) (int64, error) {
	s.gotOwner = owner
	return s.deletedAll, nil
}

func newTestServer(us UserService, ms MfaService, cs CredentialService) *Server {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return NewServer(":0", logger, us, ms, cs)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestRoot(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{}, &stubCredentialService{})
	w := doJSON(t, s.routes(), http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API is running", decodeBody(t, w)["message"])
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		stub       *stubUserService
		wantStatus int
	}{
		{"success", map[string]string{"username": "alice", "password": "pw"},
			&stubUserService{registerUser: &models.User{ID: "u1", Username: "alice"}}, http.StatusOK},
		{"duplicate", map[string]string{"username": "alice", "password": "pw"},
			&stubUserService{registerErr: common.ErrorConflict}, http.StatusConflict},
		{"missing fields", map[string]string{"username": "alice"},
			&stubUserService{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.stub, &stubMfaService{}, &stubCredentialService{})
			w := doJSON(t, s.routes(), http.MethodPost, "/register", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u1", decodeBody(t, w)["user_id"])
			}
		})
	}
}

func TestRegister_InvalidBody(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{}, &stubCredentialService{})
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_TokenIssuedWithoutMFA(t *testing.T) {
	stub := &stubUserService{loginResult: &services.LoginResult{
		Username: "alice",
		Token:    auth.EncodeToken("alice", "pw"),
	}}
	s := newTestServer(stub, &stubMfaService{}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/login",
		map[string]string{"username": "alice", "password": "pw"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["mfa_required"])
	assert.Equal(t, auth.EncodeToken("alice", "pw"), body["user_b64_token"])
}

func TestLogin_MFARequiredOmitsToken(t *testing.T) {
	stub := &stubUserService{loginResult: &services.LoginResult{Username: "alice", MFARequired: true}}
	s := newTestServer(stub, &stubMfaService{}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/login",
		map[string]string{"username": "alice", "password": "pw"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["mfa_required"])
	_, present := body["user_b64_token"]
	assert.False(t, present, "no token may appear before the OTP step")
}

func TestLogin_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown user", common.ErrorNotFound, http.StatusNotFound},
		{"wrong password", common.ErrorUnauthorized, http.StatusUnauthorized},
		{"corrupt hash", common.ErrorInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubUserService{loginErr: tt.err}, &stubMfaService{}, &stubCredentialService{})
			w := doJSON(t, s.routes(), http.MethodPost, "/login",
				map[string]string{"username": "alice", "password": "pw"})
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestLoginOtp(t *testing.T) {
	mfa := &stubMfaService{}
	s := newTestServer(&stubUserService{}, mfa, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/login/otp",
		map[string]string{"username": "alice", "otp_code": "123456"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", mfa.gotUsername)
	assert.Equal(t, "123456", mfa.gotCode)
}

func TestLoginOtp_WrongCode(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{otpErr: common.ErrorUnauthorized}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/login/otp",
		map[string]string{"username": "alice", "otp_code": "000000"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdd_DecodesIdentityToken(t *testing.T) {
	creds := &stubCredentialService{addCred: &models.Credential{ID: "c1"}}
	s := newTestServer(&stubUserService{}, &stubMfaService{}, creds)

	w := doJSON(t, s.routes(), http.MethodPost, "/add", map[string]string{
		"user":     auth.EncodeToken("alice", "pw"),
		"site":     "bank.com",
		"account":  "acct",
		"password": "secret",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", creds.gotOwner)
	assert.Equal(t, "c1", decodeBody(t, w)["id"])
}

func TestAdd_MalformedToken(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/add", map[string]string{
		"user": "%%%not-base64%%%", "site": "x", "account": "y", "password": "z",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdd_DuplicateConflict(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{},
		&stubCredentialService{addErr: common.ErrorConflict})

	w := doJSON(t, s.routes(), http.MethodPost, "/add", map[string]string{
		"user": auth.EncodeToken("alice", "pw"), "site": "x", "account": "y", "password": "z",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestList(t *testing.T) {
	creds := &stubCredentialService{entries: []services.VaultEntry{
		{Site: "bank.com", Account: "acct", Password: "pw1"},
	}}
	s := newTestServer(&stubUserService{}, &stubMfaService{}, creds)

	path := fmt.Sprintf("/list?user=%s", auth.EncodeToken("alice", "pw"))
	w := doJSON(t, s.routes(), http.MethodGet, path, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", creds.gotOwner)

	var body struct {
		Passwords []vaultEntryResponse `json:"passwords"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Passwords, 1)
	assert.Equal(t, "bank.com", body.Passwords[0].Site)
	assert.Equal(t, "pw1", body.Passwords[0].Password)
}

func TestList_EmptyVaultIsEmptyArray(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{}, &stubCredentialService{})

	path := fmt.Sprintf("/list?user=%s", auth.EncodeToken("alice", "pw"))
	w := doJSON(t, s.routes(), http.MethodGet, path, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"passwords":[]}`, w.Body.String())
}

func TestDelete_NotFound(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{},
		&stubCredentialService{deleteErr: common.ErrorNotFound})

	w := doJSON(t, s.routes(), http.MethodPost, "/delete", map[string]string{
		"user": auth.EncodeToken("alice", "pw"), "site": "x", "account": "y",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAll_ReportsCount(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{},
		&stubCredentialService{deletedAll: 3})

	w := doJSON(t, s.routes(), http.MethodPost, "/delete_all",
		map[string]string{"user": auth.EncodeToken("alice", "pw")})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["deleted"])
	assert.Equal(t, "3 password(s) deleted", body["message"])
}

func TestMfaSetup(t *testing.T) {
	mfa := &stubMfaService{setupURI: "otpauth://totp/PassVault:alice?secret=X"}
	s := newTestServer(&stubUserService{}, mfa, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/setup",
		map[string]string{"user": auth.EncodeToken("alice", "pw")})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", mfa.gotUsername)
	assert.Equal(t, mfa.setupURI, decodeBody(t, w)["provisioning_uri"])
}

func TestMfaSetup_AlreadyProvisioned(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{setupErr: common.ErrorConflict}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/setup",
		map[string]string{"user": auth.EncodeToken("alice", "pw")})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMfaVerify_WrongCode(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{verifyErr: common.ErrorUnauthorized}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/verify", map[string]string{
		"user": auth.EncodeToken("alice", "pw"), "otp_code": "000000",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMfaStatus(t *testing.T) {
	setup := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestServer(&stubUserService{
		mfaStatus: &services.MfaStatusResult{Enabled: true, SetupDate: setup},
	}, &stubMfaService{}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/status",
		map[string]string{"username": "alice", "password": "pw"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["mfa_enabled"])
	assert.Equal(t, setup.Format(time.RFC3339), body["setup_date"])
}

func TestMfaStatus_DisabledHasNullSetupDate(t *testing.T) {
	s := newTestServer(&stubUserService{
		mfaStatus: &services.MfaStatusResult{},
	}, &stubMfaService{}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/status",
		map[string]string{"username": "alice", "password": "pw"})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["mfa_enabled"])
	date, present := body["setup_date"]
	assert.True(t, present, "setup_date must be present in the response")
	assert.Nil(t, date)
}

func TestMfaDisable(t *testing.T) {
	mfa := &stubMfaService{}
	s := newTestServer(&stubUserService{}, mfa, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/disable", map[string]string{
		"user": auth.EncodeToken("alice", "pw"), "otp_code": "123456",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])
	assert.Equal(t, "123456", mfa.gotCode)
}

func TestDecryptionFailureIsOpaque500(t *testing.T) {
	s := newTestServer(&stubUserService{}, &stubMfaService{verifyErr: common.ErrorDecryption}, &stubCredentialService{})

	w := doJSON(t, s.routes(), http.MethodPost, "/mfa/verify", map[string]string{
		"user": auth.EncodeToken("alice", "pw"), "otp_code": "123456",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decodeBody(t, w)["error"])
}
