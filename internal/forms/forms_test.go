package forms

import (
	"context"
	"strings"
	"testing"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"github.com/Ashfaaq98/casedesk/internal/notify"
	"github.com/Ashfaaq98/casedesk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls  int
	err    error
	params backend.SignUpParams
	email  string
}

func (f *fakeProvider) SignUp(ctx context.Context, p backend.SignUpParams) (*model.User, error) {
	f.calls++
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: "u1", Email: p.Email}, nil
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	f.calls++
	f.email = email
	if f.err != nil {
		return nil, f.err
	}
	return &model.User{ID: "u1", Email: email}, nil
}

func validSignUp() SignUpInput {
	return SignUpInput{Email: "a@b.co", Password: "secret", Confirm: "secret", FirstName: "Ada", LastName: "Lovelace"}
}

func TestSignUpValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SignUpInput)
		want   error
	}{
		{"valid", func(*SignUpInput) {}, nil},
		{"missing email", func(in *SignUpInput) { in.Email = "  " }, ErrMissingFields},
		{"missing last name", func(in *SignUpInput) { in.LastName = "" }, ErrMissingFields},
		{"missing confirmation", func(in *SignUpInput) { in.Confirm = "" }, ErrMissingFields},
		{"password length 5", func(in *SignUpInput) { in.Password, in.Confirm = "12345", "12345" }, ErrPasswordTooShort},
		{"password length 6", func(in *SignUpInput) { in.Password, in.Confirm = "123456", "123456" }, nil},
		{"mismatch", func(in *SignUpInput) { in.Confirm = "secrets" }, ErrPasswordMismatch},
		{"not an email", func(in *SignUpInput) { in.Email = "not-an-email" }, ErrInvalidEmail},
		{"no tld", func(in *SignUpInput) { in.Email = "a@b" }, ErrInvalidEmail},
		{"short email accepted", func(in *SignUpInput) { in.Email = "a@b.co" }, nil},
		{"length checked before mismatch", func(in *SignUpInput) { in.Password, in.Confirm = "123", "456" }, ErrPasswordTooShort},
		{"mismatch checked before email", func(in *SignUpInput) { in.Email, in.Confirm = "bad", "other1" }, ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSignUp()
			tt.modify(&in)
			err := in.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestSignInValidate(t *testing.T) {
	assert.ErrorIs(t, SignInInput{Email: "a@b.co"}.Validate(), ErrMissingFields)
	assert.ErrorIs(t, SignInInput{Email: "a@b.co", Password: "12345"}.Validate(), ErrPasswordTooShort)
	assert.ErrorIs(t, SignInInput{Email: "not-an-email", Password: "123456"}.Validate(), ErrInvalidEmail)
	assert.NoError(t, SignInInput{Email: "a@b.co", Password: "123456"}.Validate())
}

func TestSubmitValidationNeverReachesProvider(t *testing.T) {
	prov := &fakeProvider{}
	rec := &notify.Recorder{}
	s := Submitter{Provider: prov, Notifier: rec}

	in := validSignUp()
	in.Confirm = "different"
	res, err := s.SignUp(context.Background(), in)
	require.ErrorIs(t, err, ErrPasswordMismatch)
	assert.Equal(t, "Passwords do not match", res.Banner)
	assert.Equal(t, 0, prov.calls)
	assert.Empty(t, rec.Messages())
}

func TestSubmitSignUpSuccess(t *testing.T) {
	prov := &fakeProvider{}
	rec := &notify.Recorder{}
	s := Submitter{Provider: prov, Notifier: rec}

	in := validSignUp()
	in.Email = "  a@b.co "
	in.FirstName = " Ada "
	res, err := s.SignUp(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, session.RouteDashboard, res.Route)
	assert.Empty(t, res.Banner)
	assert.Equal(t, "a@b.co", prov.params.Email)
	assert.Equal(t, "Ada", prov.params.FirstName)
	assert.Equal(t, 1, rec.Count(notify.LevelSuccess))
}

func TestSubmitSignInProviderFailure(t *testing.T) {
	prov := &fakeProvider{err: &backend.Error{Code: backend.CodeInvalidCredentials, Message: "Invalid login credentials"}}
	rec := &notify.Recorder{}
	s := Submitter{Provider: prov, Notifier: rec}

	res, err := s.SignIn(context.Background(), SignInInput{Email: "a@b.co", Password: "secret"})
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Equal(t, "Invalid login credentials", res.Banner)
	assert.Empty(t, res.Route)
	assert.Equal(t, 1, prov.calls)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.LevelFailure, msgs[0].Level)
	assert.True(t, strings.Contains(msgs[0].Text, "Invalid login credentials"))
}

func TestSubmitSignInSuccess(t *testing.T) {
	prov := &fakeProvider{}
	s := Submitter{Provider: prov}

	res, err := s.SignIn(context.Background(), SignInInput{Email: "a@b.co", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, session.RouteDashboard, res.Route)
	assert.Equal(t, "u1", res.User.ID)
}
