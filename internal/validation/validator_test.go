package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=10"`
	Note     string `validate:"max=5"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(sample{Email: "a@b.co", Username: "alice"}))
	assert.NoError(t, v.Validate(&sample{Email: "a@b.co", Username: "alice"}))

	assert.Error(t, v.Validate(sample{Username: "alice"}), "missing email")
	assert.Error(t, v.Validate(sample{Email: "not-an-email", Username: "alice"}))
	assert.Error(t, v.Validate(sample{Email: "a@b", Username: "alice"}), "no domain dot")
	assert.Error(t, v.Validate(sample{Email: "a@b.co", Username: "al"}), "too short")
	assert.Error(t, v.Validate(sample{Email: "a@b.co", Username: "alice-very-long"}), "too long")
	assert.Error(t, v.Validate(sample{Email: "a@b.co", Username: "alice", Note: "too long"}))

	assert.Error(t, v.Validate("not a struct"))
}
