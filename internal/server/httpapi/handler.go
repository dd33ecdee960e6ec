package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/auth"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type addRequest struct {
	User     string `json:"user"`
	Site     string `json:"site"`
	Account  string `json:"account"`
	Password string `json:"password"`
}

type deleteRequest struct {
	User    string `json:"user"`
	Site    string `json:"site"`
	Account string `json:"account"`
}

type tokenRequest struct {
	User string `json:"user"`
}

type otpRequest struct {
	User    string `json:"user"`
	OtpCode string `json:"otp_code"`
}

type loginOtpRequest struct {
	Username string `json:"username"`
	OtpCode  string `json:"otp_code"`
}

type loginResponse struct {
	Message      string `json:"message"`
	MfaRequired  bool   `json:"mfa_required"`
	Username     string `json:"username,omitempty"`
	UserB64Token string `json:"user_b64_token,omitempty"`
}

type vaultEntryResponse struct {
	Site     string `json:"site"`
	Account  string `json:"account"`
	Password string `json:"password"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/login/otp", s.handleLoginOtp)
	r.Post("/add", s.handleAdd)
	r.Get("/list", s.handleList)
	r.Post("/delete", s.handleDelete)
	r.Post("/delete_all", s.handleDeleteAll)
	r.Post("/mfa/setup", s.handleMfaSetup)
	r.Post("/mfa/verify", s.handleMfaVerify)
	r.Post("/mfa/status", s.handleMfaStatus)
	r.Post("/mfa/disable", s.handleMfaDisable)

	return r
}

// requestLogger logs method, path and status for every request. Bodies are
// never logged, they carry plaintext passwords.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "status", rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "API is running"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, r, fmt.Errorf("%w: username and password are required", common.ErrorValidation))
		return
	}

	user, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "user created", "user_id": user.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := loginResponse{MfaRequired: res.MFARequired, Username: res.Username}
	if res.MFARequired {
		resp.Message = "MFA OTP required"
	} else {
		resp.Message = "login successful"
		resp.UserB64Token = res.Token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLoginOtp(w http.ResponseWriter, r *http.Request) {
	var req loginOtpRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.mfa.CheckLoginOTP(r.Context(), req.Username, req.OtpCode); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP verification successful"})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, err := auth.DecodeToken(req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cred, err := s.credentials.Add(r.Context(), username, req.Site, req.Account, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password added", "id": cred.ID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	username, err := auth.DecodeToken(r.URL.Query().Get("user"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.credentials.List(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	passwords := make([]vaultEntryResponse, 0, len(entries))
	for _, e := range entries {
		passwords = append(passwords, vaultEntryResponse{Site: e.Site, Account: e.Account, Password: e.Password})
	}
	writeJSON(w, http.StatusOK, map[string]any{"passwords": passwords})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, err := auth.DecodeToken(req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.credentials.Delete(r.Context(), username, req.Site, req.Account); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password deleted"})
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, err := auth.DecodeToken(req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	deleted, err := s.credentials.DeleteAll(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%d password(s) deleted", deleted),
		"deleted": deleted,
	})
}

func (s *Server) handleMfaSetup(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, err := auth.DecodeToken(req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	uri, err := s.mfa.Setup(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provisioning_uri": uri,
		"message":          "scan the QR code with your authenticator app and verify",
	})
}

func (s *Server) handleMfaVerify(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, err := auth.DecodeToken(req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.mfa.Verify(r.Context(), username, req.OtpCode); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "OTP code valid, MFA enabled"})
}

func (s *Server) handleMfaStatus(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.users.MfaStatus(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// setup_date is null while MFA is disabled.
	var setupDate any
	if res.Enabled {
		setupDate = res.SetupDate.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{"mfa_enabled": res.Enabled, "setup_date": setupDate})
}

func (s *Server) handleMfaDisable(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !s.decode(w, r, &req) {
		return
	}
	username, err := auth.DecodeToken(req.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.mfa.Disable(r.Context(), username, req.OtpCode); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "MFA disabled"})
}

// decode parses the JSON request body into dst, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return false
	}
	return true
}

// writeError maps the service sentinel wrapped in err to an HTTP status.
// Internal details never reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, common.ErrorValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		status, message = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrorNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorConflict):
		status, message = http.StatusConflict, "conflict with current state"
	case errors.Is(err, common.ErrorDecryption):
		s.logger.Error(r.Context(), "decryption failure", "path", r.URL.Path, "error", err)
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
