package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/coordinator"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/mailer"
	"github.com/npezzotti/go-agritour/internal/server"
	"github.com/npezzotti/go-agritour/internal/types"
)

const (
	maxUploadSize      = blob.MaxUploadSize
	passwordResetTTL   = time.Hour
	passwordResetRoute = "/reset-password?token="
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Name     string     `json:"name" validate:"required"`
	Password string     `json:"password" validate:"required,min=6"`
	Role     types.Role `json:"role" validate:"required,oneof=farmer visitor"`
}

type UpdateAccountRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ConfirmPasswordResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

func (s *AgriTourApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// decodeRequest reads a JSON body into v and validates it.
func (s *AgriTourApp) decodeRequest(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}

func (s *AgriTourApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *AgriTourApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := s.decodeRequest(r, &req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	_, err := s.db.GetAccountByEmail(req.Email)
	if err == nil {
		errResp := NewConflictError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acc, err := s.db.CreateAccount(database.CreateAccountParams{
		Name:         req.Name,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
		Role:         string(req.Role),
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.startSession(w, acc.Id) {
		return
	}

	s.writeJson(w, http.StatusCreated, coordinator.UserFromAccount(acc))
}

// startSession sets the token cookie for userId. It writes the error
// response itself and reports whether the caller may continue.
func (s *AgriTourApp) startSession(w http.ResponseWriter, userId string) bool {
	token, err := s.createJwtForSession(userId, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return false
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	return true
}

func (s *AgriTourApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := s.decodeRequest(r, &lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acc, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(acc.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.startSession(w, acc.Id) {
		return
	}

	s.writeJson(w, http.StatusOK, coordinator.UserFromAccount(acc))
}

func (s *AgriTourApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *AgriTourApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acc, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, coordinator.UserFromAccount(acc))
}

func (s *AgriTourApp) account(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	switch r.Method {
	case http.MethodGet:
		acc, err := s.db.GetAccountById(userId)
		if err != nil {
			errResp := notFoundOrInternal(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, coordinator.UserFromAccount(acc))
	case http.MethodPut:
		var req UpdateAccountRequest
		if err := s.decodeRequest(r, &req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		owner, err := s.db.GetAccountByEmail(req.Email)
		if err == nil && owner.Id != userId {
			errResp := NewConflictError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		acc, err := s.db.UpdateAccount(database.UpdateAccountParams{
			AccountId:    userId,
			Name:         req.Name,
			EmailAddress: req.Email,
		})
		if err != nil {
			errResp := notFoundOrInternal(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, coordinator.UserFromAccount(acc))
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

// readUpload returns the bytes of the multipart file field, or nil when
// the field is absent.
func readUpload(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (s *AgriTourApp) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	data, err := readUpload(r, "image")
	if err != nil || len(data) == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	compressed, err := blob.Compress(data)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id, err := s.svc.Blobs.Put(r.Context(), "avatar.jpg", compressed)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateAccountImage(userId, blob.URL(s.baseURL, id)); err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acc, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, coordinator.UserFromAccount(acc))
}

// getUser returns the public part of a profile.
func (s *AgriTourApp) getUser(w http.ResponseWriter, r *http.Request) {
	acc, err := s.db.GetAccountById(r.PathValue("id"))
	if err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := coordinator.UserFromAccount(acc)
	u.EmailAddress = ""
	s.writeJson(w, http.StatusOK, u)
}

// requestPasswordReset always answers 202 so callers cannot probe which
// emails have accounts.
func (s *AgriTourApp) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := s.decodeRequest(r, &req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acc, err := s.db.GetAccountByEmail(req.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Printf("password reset lookup: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	token := uuid.NewString()
	err = s.db.CreatePasswordReset(database.CreatePasswordResetParams{
		Token:     token,
		AccountId: acc.Id,
		ExpiresAt: s.now().Add(passwordResetTTL),
	})
	if err != nil {
		s.log.Printf("password reset create: %v", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	subject, body := mailer.PasswordResetMessage(s.baseURL + passwordResetRoute + token)
	if err := s.svc.Mailer.Send(acc.EmailAddress, subject, body); err != nil {
		s.log.Printf("password reset mail: %v", err)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *AgriTourApp) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPasswordResetRequest
	if err := s.decodeRequest(r, &req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	accountId, err := s.db.ConsumePasswordReset(req.Token, s.now())
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrInvalidResetToken) {
			errResp = NewBadRequestError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdatePasswordHash(accountId, pwdHash); err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *AgriTourApp) getBlob(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Blobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, blob.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *AgriTourApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(userId); err != nil {
		errResp := notFoundOrInternal(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	// the session outlives the request, so it does not derive from r.Context
	session := coordinator.NewSession(s.serverCtx, s.sessionDeps(), userId)
	server.NewClient(session, conn, s.svc.Hub, s.log).Serve()
}
