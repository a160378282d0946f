package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/model"
	"go.uber.org/zap"
)

const pgrstObject = "application/vnd.pgrst.object+json"

// REST is a Client backed by the hosted platform's auth and row APIs.
// The access token of the last successful sign-in or restore is attached to
// row requests.
type REST struct {
	endpoint   string
	anonKey    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewREST constructs a hosted-platform client.
// endpoint example: https://xyzcompany.supabase.co
func NewREST(endpoint, anonKey string, logger *zap.Logger) (*REST, error) {
	ep := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if ep == "" {
		return nil, errors.New("rest backend: endpoint required (backend.url)")
	}
	if _, err := url.Parse(ep); err != nil {
		return nil, fmt.Errorf("rest backend: parse endpoint: %w", err)
	}
	key := strings.TrimSpace(anonKey)
	if key == "" {
		return nil, errors.New("rest backend: anon key required (backend.anon_key)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &REST{
		endpoint:   ep,
		anonKey:    key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (r *REST) Close() error { return nil }

func (r *REST) setToken(tok string) {
	r.mu.Lock()
	r.token = tok
	r.mu.Unlock()
}

func (r *REST) bearer() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.token != "" {
		return r.token
	}
	return r.anonKey
}

// authResponse is the token grant payload.
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	// Sign-up with email confirmation disabled returns the user at top level.
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (a authResponse) session() *Session {
	s := &Session{AccessToken: a.AccessToken, RefreshToken: a.RefreshToken}
	if a.User != nil {
		s.User = model.User{ID: a.User.ID, Email: a.User.Email}
	} else {
		s.User = model.User{ID: a.ID, Email: a.Email}
	}
	if a.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(a.ExpiresIn) * time.Second)
	}
	return s
}

// SignUp registers a new account. Name fields travel as user metadata; the
// platform creates the profile row from them.
func (r *REST) SignUp(ctx context.Context, p SignUpParams) (*Session, error) {
	payload := map[string]interface{}{
		"email":    p.Email,
		"password": p.Password,
		"data": map[string]string{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
		},
	}
	var out authResponse
	if err := r.do(ctx, http.MethodPost, "/auth/v1/signup", nil, payload, nil, &out); err != nil {
		return nil, err
	}
	sess := out.session()
	if sess.AccessToken == "" {
		return nil, &Error{Code: CodeUnauthorized, Message: "Check your email to confirm your account before signing in"}
	}
	r.setToken(sess.AccessToken)
	return sess, nil
}

// SignIn exchanges email and password for a session.
func (r *REST) SignIn(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	payload := map[string]string{"email": email, "password": password}
	var out authResponse
	if err := r.do(ctx, http.MethodPost, "/auth/v1/token", q, payload, nil, &out); err != nil {
		return nil, err
	}
	sess := out.session()
	r.setToken(sess.AccessToken)
	return sess, nil
}

// SignOut revokes the session on the platform and forgets the local token.
func (r *REST) SignOut(ctx context.Context, sess *Session) error {
	if sess != nil && sess.AccessToken != "" {
		r.setToken(sess.AccessToken)
	}
	err := r.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
	r.setToken("")
	return err
}

// Restore checks that the persisted access token is still accepted.
func (r *REST) Restore(ctx context.Context, sess *Session) (*Session, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, &Error{Code: CodeUnauthorized, Message: "no session"}
	}
	r.setToken(sess.AccessToken)
	var u struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := r.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, nil, &u); err != nil {
		r.setToken("")
		return nil, err
	}
	restored := *sess
	restored.User = model.User{ID: u.ID, Email: u.Email}
	return &restored, nil
}

// ProfileByOwner selects the single profile row for userID.
func (r *REST) ProfileByOwner(ctx context.Context, userID string) (model.Profile, error) {
	q := url.Values{"user_id": {"eq." + userID}, "select": {"*"}}
	var p model.Profile
	h := http.Header{"Accept": {pgrstObject}}
	if err := r.do(ctx, http.MethodGet, "/rest/v1/profiles", q, nil, h, &p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// CasesByOwner selects all case rows for userID ordered newest first.
func (r *REST) CasesByOwner(ctx context.Context, userID string) ([]model.Case, error) {
	q := url.Values{
		"user_id": {"eq." + userID},
		"select":  {"*"},
		"order":   {"created_at.desc"},
	}
	var cases []model.Case
	if err := r.do(ctx, http.MethodGet, "/rest/v1/cases", q, nil, nil, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// InsertCase inserts a case and returns the stored representation.
func (r *REST) InsertCase(ctx context.Context, c model.NewCase) (model.Case, error) {
	h := http.Header{
		"Accept": {pgrstObject},
		"Prefer": {"return=representation"},
	}
	var out model.Case
	if err := r.do(ctx, http.MethodPost, "/rest/v1/cases", nil, c, h, &out); err != nil {
		return model.Case{}, err
	}
	return out, nil
}

// SetProfilePro updates is_pro on the profile owned by userID.
func (r *REST) SetProfilePro(ctx context.Context, userID string, pro bool) error {
	q := url.Values{"user_id": {"eq." + userID}}
	return r.do(ctx, http.MethodPatch, "/rest/v1/profiles", q, map[string]bool{"is_pro": pro}, nil, nil)
}

// do sends one request and decodes a 2xx body into out (when non-nil).
// Non-2xx responses are mapped to *Error.
func (r *REST) do(ctx context.Context, method, path string, q url.Values, body interface{}, h http.Header, out interface{}) error {
	u := r.endpoint + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest backend: marshal %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("rest backend: build request: %w", err)
	}
	req.Header.Set("apikey", r.anonKey)
	req.Header.Set("Authorization", "Bearer "+r.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &Error{Code: CodeTransport, Message: "Could not reach the server. Please try again.", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	r.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode/100 != 2 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("rest backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError maps row-API ({code,message}) and auth-API
// ({error,error_description} or {code,msg}) bodies to *Error.
func decodeError(status int, raw []byte) error {
	var body struct {
		Code             json.RawMessage `json:"code"`
		Message          string          `json:"message"`
		Msg              string          `json:"msg"`
		ErrorCode        string          `json:"error_code"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	_ = json.Unmarshal(raw, &body)

	e := &Error{Status: status}

	var code string
	if len(body.Code) > 0 {
		// auth API sends a numeric HTTP code here, row API a string code
		if err := json.Unmarshal(body.Code, &code); err != nil {
			code = ""
		}
	}
	// A rejected token surfaces as 401/403 whatever detail code the body
	// carries (bad_jwt, session_not_found, PGRST301).
	switch {
	case body.ErrorCode == CodeInvalidCredentials || body.Error == "invalid_grant":
		e.Code = CodeInvalidCredentials
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = CodeUnauthorized
	case code != "":
		e.Code = code
	case body.ErrorCode != "":
		e.Code = body.ErrorCode
	default:
		e.Code = CodeUnknown
	}

	for _, m := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if strings.TrimSpace(m) != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return e
}
