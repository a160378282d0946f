package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(ErrNoRows("profile")))
	assert.True(t, IsNoRows(fmt.Errorf("load: %w", ErrNoRows("profile"))))
	assert.False(t, IsNoRows(&Error{Code: CodeTransport, Message: "down"}))
	assert.False(t, IsNoRows(errors.New("PGRST116")))
	assert.False(t, IsNoRows(nil))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Invalid login credentials",
		Message(fmt.Errorf("sign in: %w", &Error{Code: CodeInvalidCredentials, Message: "Invalid login credentials"})))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "", Message(nil))
}
