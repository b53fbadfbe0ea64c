package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "provisio/pkg/domain-errors"
)

func TestClassifyCreateFailure(t *testing.T) {
	cases := []struct {
		name     string
		upstream string
		want     dErrors.Code
	}{
		{"name taken", "Another object with the same value for property userPrincipalName already exists. (another object)", dErrors.CodeConflict},
		{"password contains name", "Password cannot contain username", dErrors.CodeValidation},
		{"weak password profile", "Invalid value specified for property 'PasswordProfile'", dErrors.CodeValidation},
		{"weak password", "The specified password is too weak", dErrors.CodeValidation},
		{"unclassified passes through", "Insufficient privileges to complete the operation.", dErrors.CodeExternal},
		{"empty message", "", dErrors.CodeExternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyCreateFailure(tc.upstream)
			assert.True(t, dErrors.HasCode(err, tc.want), "got %v", err)
		})
	}
}

func TestClassifyPassesUpstreamMessageThrough(t *testing.T) {
	err := classifyCreateFailure("Insufficient privileges to complete the operation.")
	assert.Equal(t, "Insufficient privileges to complete the operation.", err.Error())
}
