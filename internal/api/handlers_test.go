package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/booking"
	"github.com/npezzotti/go-agritour/internal/chat"
	"github.com/npezzotti/go-agritour/internal/config"
	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/listing"
	"github.com/npezzotti/go-agritour/internal/realtime"
	"github.com/npezzotti/go-agritour/internal/server"
	"github.com/npezzotti/go-agritour/internal/stats"
	"github.com/npezzotti/go-agritour/internal/testutil"
	"github.com/npezzotti/go-agritour/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type testApp struct {
	*AgriTourApp
	blobs  *blob.MemoryStore
	mailer *recordingMailer
}

// newTestApp wires the app over db with in-memory realtime, blob and
// mail backends.
func newTestApp(t *testing.T, db *database.MockAgriTourRepository) *testApp {
	logger := testutil.TestLogger(t)
	su := stats.NewPermissiveMock()

	blobs := blob.NewMemoryStore()
	mail := &recordingMailer{}
	catalog := listing.NewCatalog(logger, db)

	cfg := &config.Config{
		ServerAddr:     "localhost:8000",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
		BaseURL:        "http://localhost:8000",
	}

	app := NewAgriTourApp(http.NewServeMux(), logger, db, Services{
		Hub:       server.NewHub(logger, su),
		Catalog:   catalog,
		Publisher: listing.NewPublisher(logger, db, blobs, catalog, cfg.BaseURL, su),
		Bookings:  booking.NewService(logger, db, su),
		Chats:     chat.NewService(logger, realtime.NewMemoryStore(), db, su),
		Blobs:     blobs,
		Mailer:    mail,
	}, cfg)

	return &testApp{AgriTourApp: app, blobs: blobs, mailer: mail}
}

// do routes req through the full handler chain.
func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.mux.Handler.ServeHTTP(rr, req)
	return rr
}

// authed adds a session cookie for userId to req.
func (a *testApp) authed(t *testing.T, req *http.Request, userId string) *http.Request {
	token, err := a.createJwtForSession(userId, defaultJwtExpiration)
	require.NoError(t, err)
	req.AddCookie(createJwtCookie(token, defaultJwtExpiration))
	return req
}

func jsonBody(t *testing.T, v any) io.Reader {
	if s, ok := v.(string); ok {
		return strings.NewReader(s)
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeJson[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func testPNG(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))))
	return buf.Bytes()
}

// multipartBody builds a form with fields and, when image is non-nil, an
// "image" file part.
func multipartBody(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "image.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestNewAgriTourApp(t *testing.T) {
	db := &database.MockAgriTourRepository{}
	app := newTestApp(t, db)

	assert.NotNil(t, app.mux, "expected server to be initialized")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, []byte("test-signing-key"), app.signingKey, "expected signing key to be set")
	assert.Equal(t, "localhost:8000", app.mux.Addr, "expected server address to match config")
	assert.NotNil(t, app.serverCtx, "expected session context to be set")
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockAgriTourRepository{}
			defer db.AssertExpectations(t)
			db.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, db)
			rr := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	now := time.Now().UTC()
	validReq := RegisterRequest{Email: "fay@example.com", Name: "Fay", Password: "password", Role: types.RoleFarmer}

	tcases := []struct {
		name         string
		body         any
		setup        func(db *database.MockAgriTourRepository)
		expectedCode int
	}{
		{
			name: "successfully creates a new account",
			body: validReq,
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", validReq.Email).Return(database.Account{}, sql.ErrNoRows).Once()
				db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.Name == "Fay" && p.Role == "farmer" && verifyPassword(p.PasswordHash, "password")
				})).Return(database.Account{Id: "acc-1", Name: "Fay", EmailAddress: validReq.Email, Role: "farmer", CreatedAt: now}, nil).Once()
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "fails with invalid json body",
			body:         "invalid json",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "fails with missing name",
			body:         RegisterRequest{Email: validReq.Email, Password: "password", Role: types.RoleVisitor},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "fails with unknown role",
			body:         RegisterRequest{Email: validReq.Email, Name: "Fay", Password: "password", Role: "admin"},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "fails with malformed email",
			body:         RegisterRequest{Email: "fay", Name: "Fay", Password: "password", Role: types.RoleVisitor},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "fails when email is taken",
			body: validReq,
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", validReq.Email).Return(database.Account{Id: "acc-0"}, nil).Once()
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "fails with db error",
			body: validReq,
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", validReq.Email).Return(database.Account{}, sql.ErrNoRows).Once()
				db.On("CreateAccount", mock.Anything).Return(database.Account{}, errors.New("db error")).Once()
			},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockAgriTourRepository{}
			defer db.AssertExpectations(t)
			if tc.setup != nil {
				tc.setup(db)
			}

			app := newTestApp(t, db)
			rr := app.do(httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, tc.body)))

			assert.Equal(t, tc.expectedCode, rr.Code, "body: %s", rr.Body.String())
			if tc.expectedCode != http.StatusCreated {
				assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no session cookie")
				return
			}

			u := decodeJson[types.User](t, rr)
			assert.Equal(t, "acc-1", u.Id)
			assert.Equal(t, types.RoleFarmer, u.Role)

			cookie := findCookie(rr, tokenCookieKey)
			require.NotNil(t, cookie, "expected session cookie")
			userId, err := app.extractUserIdFromToken(cookie.Value)
			require.NoError(t, err)
			assert.Equal(t, "acc-1", userId)
		})
	}
}

func TestLoginHandler(t *testing.T) {
	hash, err := hashPassword("password")
	require.NoError(t, err)
	acc := database.Account{Id: "acc-1", Name: "Vic", EmailAddress: "vic@example.com", PasswordHash: hash, Role: "visitor"}

	tcases := []struct {
		name         string
		body         any
		setup        func(db *database.MockAgriTourRepository)
		expectedCode int
	}{
		{
			name: "successful login",
			body: LoginRequest{Email: acc.EmailAddress, Password: "password"},
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", acc.EmailAddress).Return(acc, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "wrong password",
			body: LoginRequest{Email: acc.EmailAddress, Password: "nope"},
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", acc.EmailAddress).Return(acc, nil).Once()
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "unknown email",
			body: LoginRequest{Email: "who@example.com", Password: "password"},
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", "who@example.com").Return(database.Account{}, sql.ErrNoRows).Once()
			},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "db error",
			body: LoginRequest{Email: acc.EmailAddress, Password: "password"},
			setup: func(db *database.MockAgriTourRepository) {
				db.On("GetAccountByEmail", acc.EmailAddress).Return(database.Account{}, errors.New("db error")).Once()
			},
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "missing password",
			body:         LoginRequest{Email: acc.EmailAddress},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockAgriTourRepository{}
			defer db.AssertExpectations(t)
			if tc.setup != nil {
				tc.setup(db)
			}

			app := newTestApp(t, db)
			rr := app.do(httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tc.body)))

			assert.Equal(t, tc.expectedCode, rr.Code, "body: %s", rr.Body.String())
			if tc.expectedCode == http.StatusOK {
				assert.NotNil(t, findCookie(rr, tokenCookieKey), "expected session cookie")
				u := decodeJson[types.User](t, rr)
				assert.Equal(t, "Vic", u.Name)
			} else {
				errResp := decodeJson[ApiError](t, rr)
				assert.Equal(t, tc.expectedCode, errResp.StatusCode)
			}
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	app := newTestApp(t, &database.MockAgriTourRepository{})

	rr := app.do(app.authed(t, httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil), "acc-1"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, tokenCookieKey)
	require.NotNil(t, cookie, "expected cookie to be overwritten")
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()), "expected cookie to be expired")
}

func TestSessionHandler(t *testing.T) {
	tcases := []struct {
		name         string
		authed       bool
		mockAcc      database.Account
		mockErr      error
		expectedCode int
	}{
		{name: "returns current user", authed: true, mockAcc: database.Account{Id: "acc-1", Name: "Vic"}, expectedCode: http.StatusOK},
		{name: "no cookie", expectedCode: http.StatusUnauthorized},
		{name: "account deleted", authed: true, mockErr: sql.ErrNoRows, expectedCode: http.StatusNotFound},
		{name: "db error", authed: true, mockErr: errors.New("db error"), expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockAgriTourRepository{}
			defer db.AssertExpectations(t)
			if tc.authed {
				db.On("GetAccountById", "acc-1").Return(tc.mockAcc, tc.mockErr).Once()
			}

			app := newTestApp(t, db)
			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tc.authed {
				req = app.authed(t, req, "acc-1")
			}

			rr := app.do(req)
			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func TestAccountHandler(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", "acc-1").Return(database.Account{Id: "acc-1", Name: "Vic", EmailAddress: "vic@example.com"}, nil).Once()

		app := newTestApp(t, db)
		rr := app.do(app.authed(t, httptest.NewRequest(http.MethodGet, "/api/account", nil), "acc-1"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
		u := decodeJson[types.User](t, rr)
		assert.Equal(t, "vic@example.com", u.EmailAddress)
	})

	t.Run("put", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "victor@example.com").Return(database.Account{}, sql.ErrNoRows).Once()
		db.On("UpdateAccount", database.UpdateAccountParams{AccountId: "acc-1", Name: "Victor", EmailAddress: "victor@example.com"}).
			Return(database.Account{Id: "acc-1", Name: "Victor", EmailAddress: "victor@example.com"}, nil).Once()

		app := newTestApp(t, db)
		body := jsonBody(t, UpdateAccountRequest{Name: "Victor", Email: "victor@example.com"})
		rr := app.do(app.authed(t, httptest.NewRequest(http.MethodPut, "/api/account", body), "acc-1"))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Victor", decodeJson[types.User](t, rr).Name)
	})

	t.Run("put keeping own email", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "vic@example.com").Return(database.Account{Id: "acc-1"}, nil).Once()
		db.On("UpdateAccount", database.UpdateAccountParams{AccountId: "acc-1", Name: "Victor", EmailAddress: "vic@example.com"}).
			Return(database.Account{Id: "acc-1", Name: "Victor", EmailAddress: "vic@example.com"}, nil).Once()

		app := newTestApp(t, db)
		body := jsonBody(t, UpdateAccountRequest{Name: "Victor", Email: "vic@example.com"})
		rr := app.do(app.authed(t, httptest.NewRequest(http.MethodPut, "/api/account", body), "acc-1"))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("put with email of another account", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "taken@example.com").Return(database.Account{Id: "acc-2"}, nil).Once()

		app := newTestApp(t, db)
		body := jsonBody(t, UpdateAccountRequest{Name: "Victor", Email: "taken@example.com"})
		rr := app.do(app.authed(t, httptest.NewRequest(http.MethodPut, "/api/account", body), "acc-1"))

		assert.Equal(t, http.StatusConflict, rr.Code)
		db.AssertNotCalled(t, "UpdateAccount", mock.Anything)
	})

	t.Run("put with missing name", func(t *testing.T) {
		app := newTestApp(t, &database.MockAgriTourRepository{})
		body := jsonBody(t, UpdateAccountRequest{Email: "victor@example.com"})
		rr := app.do(app.authed(t, httptest.NewRequest(http.MethodPut, "/api/account", body), "acc-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		app := newTestApp(t, &database.MockAgriTourRepository{})
		rr := app.do(app.authed(t, httptest.NewRequest(http.MethodDelete, "/api/account", nil), "acc-1"))

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestUploadAvatar(t *testing.T) {
	t.Run("stores compressed image", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)

		var storedUrl string
		db.On("UpdateAccountImage", "acc-1", mock.MatchedBy(func(u string) bool {
			return strings.HasPrefix(u, "http://localhost:8000/api/blobs/")
		})).Run(func(args mock.Arguments) {
			storedUrl = args.String(1)
		}).Return(nil).Once()
		db.On("GetAccountById", "acc-1").Return(database.Account{Id: "acc-1"}, nil).Once()

		app := newTestApp(t, db)
		body, contentType := multipartBody(t, nil, testPNG(t))
		req := httptest.NewRequest(http.MethodPost, "/api/account/avatar", body)
		req.Header.Set("Content-Type", contentType)

		rr := app.do(app.authed(t, req, "acc-1"))
		require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

		id := strings.TrimPrefix(storedUrl, "http://localhost:8000/api/blobs/")
		data, err := app.blobs.Get(req.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", http.DetectContentType(data), "expected avatar to be re-encoded as jpeg")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		app := newTestApp(t, &database.MockAgriTourRepository{})
		body, contentType := multipartBody(t, map[string]string{"name": "x"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/account/avatar", body)
		req.Header.Set("Content-Type", contentType)

		rr := app.do(app.authed(t, req, "acc-1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects undecodable image", func(t *testing.T) {
		app := newTestApp(t, &database.MockAgriTourRepository{})
		body, contentType := multipartBody(t, nil, []byte("not an image"))
		req := httptest.NewRequest(http.MethodPost, "/api/account/avatar", body)
		req.Header.Set("Content-Type", contentType)

		rr := app.do(app.authed(t, req, "acc-1"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetUserHidesEmail(t *testing.T) {
	db := &database.MockAgriTourRepository{}
	defer db.AssertExpectations(t)
	db.On("GetAccountById", "farmer-1").Return(database.Account{Id: "farmer-1", Name: "Fay", EmailAddress: "fay@example.com"}, nil).Once()
	db.On("GetAccountById", "ghost").Return(database.Account{}, sql.ErrNoRows).Once()

	app := newTestApp(t, db)

	rr := app.do(app.authed(t, httptest.NewRequest(http.MethodGet, "/api/users/farmer-1", nil), "acc-1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "fay@example.com")

	rr = app.do(app.authed(t, httptest.NewRequest(http.MethodGet, "/api/users/ghost", nil), "acc-1"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPasswordReset(t *testing.T) {
	t.Run("mails a token for known email", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)

		var token string
		db.On("GetAccountByEmail", "vic@example.com").Return(database.Account{Id: "acc-1", EmailAddress: "vic@example.com"}, nil).Once()
		db.On("CreatePasswordReset", mock.MatchedBy(func(p database.CreatePasswordResetParams) bool {
			return p.AccountId == "acc-1" && p.Token != "" && p.ExpiresAt.After(time.Now())
		})).Run(func(args mock.Arguments) {
			token = args.Get(0).(database.CreatePasswordResetParams).Token
		}).Return(nil).Once()

		app := newTestApp(t, db)
		rr := app.do(httptest.NewRequest(http.MethodPost, "/api/auth/password-reset", jsonBody(t, PasswordResetRequest{Email: "vic@example.com"})))

		assert.Equal(t, http.StatusAccepted, rr.Code)
		require.Len(t, app.mailer.sent, 1)
		assert.Equal(t, "vic@example.com", app.mailer.sent[0].to)
		assert.Contains(t, app.mailer.sent[0].body, "http://localhost:8000/reset-password?token="+token)
	})

	t.Run("unknown email looks the same", func(t *testing.T) {
		db := &database.MockAgriTourRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountByEmail", "who@example.com").Return(database.Account{}, sql.ErrNoRows).Once()

		app := newTestApp(t, db)
		rr := app.do(httptest.NewRequest(http.MethodPost, "/api/auth/password-reset", jsonBody(t, PasswordResetRequest{Email: "who@example.com"})))

		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.Empty(t, app.mailer.sent)
	})

	t.Run("failures for known email look the same", func(t *testing.T) {
		tcases := []struct {
			name      string
			createErr error
			mailErr   error
		}{
			{name: "token not stored", createErr: errors.New("db error")},
			{name: "mail not sent", mailErr: errors.New("smtp down")},
		}

		for _, tc := range tcases {
			t.Run(tc.name, func(t *testing.T) {
				db := &database.MockAgriTourRepository{}
				defer db.AssertExpectations(t)
				db.On("GetAccountByEmail", "vic@example.com").Return(database.Account{Id: "acc-1", EmailAddress: "vic@example.com"}, nil).Once()
				db.On("CreatePasswordReset", mock.AnythingOfType("database.CreatePasswordResetParams")).Return(tc.createErr).Once()

				app := newTestApp(t, db)
				app.mailer.err = tc.mailErr
				rr := app.do(httptest.NewRequest(http.MethodPost, "/api/auth/password-reset", jsonBody(t, PasswordResetRequest{Email: "vic@example.com"})))

				assert.Equal(t, http.StatusAccepted, rr.Code)
				assert.Empty(t, rr.Body.String())
			})
		}
	})

	tcases := []struct {
		name         string
		consumeErr   error
		expectedCode int
	}{
		{name: "confirm sets new password", expectedCode: http.StatusNoContent},
		{name: "confirm with used token", consumeErr: database.ErrInvalidResetToken, expectedCode: http.StatusBadRequest},
		{name: "confirm with db error", consumeErr: errors.New("db error"), expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockAgriTourRepository{}
			defer db.AssertExpectations(t)
			db.On("ConsumePasswordReset", "tok", mock.AnythingOfType("time.Time")).Return("acc-1", tc.consumeErr).Once()
			if tc.consumeErr == nil {
				db.On("UpdatePasswordHash", "acc-1", mock.MatchedBy(func(h string) bool {
					return verifyPassword(h, "new-password")
				})).Return(nil).Once()
			}

			app := newTestApp(t, db)
			body := jsonBody(t, ConfirmPasswordResetRequest{Token: "tok", Password: "new-password"})
			rr := app.do(httptest.NewRequest(http.MethodPost, "/api/auth/password-reset/confirm", body))

			assert.Equal(t, tc.expectedCode, rr.Code)
		})
	}
}

func TestGetBlob(t *testing.T) {
	app := newTestApp(t, &database.MockAgriTourRepository{})
	id, err := app.blobs.Put(context.Background(), "x.png", testPNG(t))
	require.NoError(t, err)

	rr := app.do(httptest.NewRequest(http.MethodGet, "/api/blobs/"+id, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	rr = app.do(httptest.NewRequest(http.MethodGet, "/api/blobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthRateLimit(t *testing.T) {
	app := newTestApp(t, &database.MockAgriTourRepository{})

	var limited bool
	for i := 0; i < authBurst+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{}"))
		rr := app.do(req)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}

	assert.True(t, limited, "expected the burst to be exhausted")
}
