package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnonKey = "anon-test-key"

// fakePlatform mimics the hosted auth and row APIs for one user.
type fakePlatform struct {
	profileRows int
	cases       []model.Case
	patched     map[string]interface{}
	lastAuth    string
}

func newPlatformServer(t *testing.T, fp *fakePlatform) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "tok-1",
			"refresh_token": "ref-1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u-1", "email": body["email"]},
		})
	})

	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string            `json:"email"`
			Data  map[string]string `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email == "taken@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`))
			return
		}
		assert.Equal(t, "Ada", body.Data["first_name"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-new",
			"user":         map[string]string{"id": "u-2", "email": body.Email},
		})
	})

	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"msg":"invalid JWT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u-1","email":"ada@example.com"}`))
	})

	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		fp.lastAuth = r.Header.Get("Authorization")
		assert.Equal(t, testAnonKey, r.Header.Get("apikey"))
		assert.Equal(t, "eq.u-1", r.URL.Query().Get("user_id"))
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, pgrstObject, r.Header.Get("Accept"))
			if fp.profileRows == 0 {
				w.WriteHeader(http.StatusNotAcceptable)
				_, _ = w.Write([]byte(`{"code":"PGRST116","details":"The result contains 0 rows","message":"JSON object requested, multiple (or no) rows returned"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p-1","user_id":"u-1","first_name":"Ada","last_name":"Lovelace","is_pro":false,"created_at":"2024-01-02T03:04:05Z"}`))
		case http.MethodPatch:
			_ = json.NewDecoder(r.Body).Decode(&fp.patched)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	mux.HandleFunc("/rest/v1/cases", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
			_ = json.NewEncoder(w).Encode(fp.cases)
		case http.MethodPost:
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			var nc model.NewCase
			_ = json.NewDecoder(r.Body).Decode(&nc)
			now := time.Now().UTC()
			c := model.Case{ID: "c-new", UserID: nc.UserID, Title: nc.Title, Description: nc.Description,
				Status: nc.Status, FileCount: nc.FileCount, CreatedAt: now, UpdatedAt: now}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(c)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRESTValidation(t *testing.T) {
	_, err := NewREST("", testAnonKey, nil)
	assert.Error(t, err)
	_, err = NewREST("http://localhost", "", nil)
	assert.Error(t, err)
}

func TestRESTSignInAndRows(t *testing.T) {
	fp := &fakePlatform{profileRows: 1, cases: []model.Case{
		{ID: "c-2", UserID: "u-1", Title: "Newer", Status: model.StatusActive},
		{ID: "c-1", UserID: "u-1", Title: "Older", Status: model.StatusClosed},
	}}
	srv := newPlatformServer(t, fp)
	c, err := NewREST(srv.URL+"/", testAnonKey, nil)
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := c.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.User.ID)
	assert.Equal(t, "tok-1", sess.AccessToken)
	assert.False(t, sess.ExpiresAt.IsZero())

	p, err := c.ProfileByOwner(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Bearer tok-1", fp.lastAuth)

	cases, err := c.CasesByOwner(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "c-2", cases[0].ID)

	created, err := c.InsertCase(ctx, model.NewCase{UserID: "u-1", Title: "Smith v. Jones", Status: model.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, "c-new", created.ID)
	assert.Equal(t, model.StatusActive, created.Status)
	assert.Equal(t, 0, created.FileCount)

	require.NoError(t, c.SetProfilePro(ctx, "u-1", true))
	assert.Equal(t, true, fp.patched["is_pro"])
}

func TestRESTProfileNoRows(t *testing.T) {
	srv := newPlatformServer(t, &fakePlatform{profileRows: 0})
	c, err := NewREST(srv.URL, testAnonKey, nil)
	require.NoError(t, err)

	_, err = c.ProfileByOwner(context.Background(), "u-1")
	require.Error(t, err)
	assert.True(t, IsNoRows(err))
	assert.Equal(t, "Bearer "+testAnonKey, c.authHeaderForTest())
}

func TestRESTAuthErrors(t *testing.T) {
	srv := newPlatformServer(t, &fakePlatform{})
	c, err := NewREST(srv.URL, testAnonKey, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.SignIn(ctx, "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidCredentials, CodeOf(err))
	assert.Equal(t, "Invalid login credentials", Message(err))

	_, err = c.SignUp(ctx, SignUpParams{Email: "taken@example.com", Password: "secret1", FirstName: "Ada"})
	require.Error(t, err)
	assert.Equal(t, CodeUserExists, CodeOf(err))
	assert.Equal(t, "User already registered", Message(err))

	sess, err := c.SignUp(ctx, SignUpParams{Email: "new@example.com", Password: "secret1", FirstName: "Ada", LastName: "L"})
	require.NoError(t, err)
	assert.Equal(t, "u-2", sess.User.ID)
}

func TestRESTRestore(t *testing.T) {
	srv := newPlatformServer(t, &fakePlatform{})
	c, err := NewREST(srv.URL, testAnonKey, nil)
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := c.Restore(ctx, &Session{AccessToken: "tok-1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.User.Email)

	_, err = c.Restore(ctx, &Session{AccessToken: "expired"})
	require.Error(t, err)
	assert.Equal(t, CodeUnauthorized, CodeOf(err))

	require.NoError(t, c.SignOut(ctx, sess))
	assert.Equal(t, "Bearer "+testAnonKey, c.authHeaderForTest())
}

func TestRESTTransportError(t *testing.T) {
	c, err := NewREST("http://127.0.0.1:1", testAnonKey, nil)
	require.NoError(t, err)
	_, err = c.CasesByOwner(context.Background(), "u-1")
	require.Error(t, err)
	assert.Equal(t, CodeTransport, CodeOf(err))
	assert.False(t, IsNoRows(err))
}

func TestDecodeErrorFallback(t *testing.T) {
	err := decodeError(http.StatusInternalServerError, []byte("<html>oops</html>"))
	assert.Equal(t, CodeUnknown, CodeOf(err))
	assert.True(t, strings.Contains(Message(err), "500"))
}

func (r *REST) authHeaderForTest() string { return "Bearer " + r.bearer() }

func TestDecodeErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"expired jwt with detail code", http.StatusUnauthorized, `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`, CodeUnauthorized},
		{"missing session", http.StatusForbidden, `{"error_code":"session_not_found","msg":"Session not found"}`, CodeUnauthorized},
		{"row api expired jwt", http.StatusUnauthorized, `{"code":"PGRST301","message":"JWT expired"}`, CodeUnauthorized},
		{"wrong password", http.StatusBadRequest, `{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`, CodeInvalidCredentials},
		{"legacy grant error", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, CodeInvalidCredentials},
		{"user exists", http.StatusUnprocessableEntity, `{"error_code":"user_already_exists","msg":"User already registered"}`, CodeUserExists},
		{"no rows", http.StatusNotAcceptable, `{"code":"PGRST116","message":"0 rows"}`, CodeNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(decodeError(tt.status, []byte(tt.body))))
		})
	}
}
