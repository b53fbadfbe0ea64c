package directory

import (
	"strings"

	dErrors "provisio/pkg/domain-errors"
)

// Account-creation failures are classified by substring-matching known
// upstream error phrases. Order matters: the first matching phrase wins.
// Anything unmatched passes the upstream message through unclassified.
var createFailurePhrases = []struct {
	phrase string
	code   dErrors.Code
	msg    string
}{
	{"another object", dErrors.CodeConflict, "username is already taken"},
	{"Password cannot contain username", dErrors.CodeValidation, "password cannot contain the username"},
	{"PasswordProfile", dErrors.CodeValidation, "password is too weak or violates policy"},
	{"weak", dErrors.CodeValidation, "password is too weak or violates policy"},
}

// classifyCreateFailure maps an upstream create-user error message to a
// domain error. Unknown messages become CodeExternal with the message intact.
func classifyCreateFailure(upstream string) error {
	for _, entry := range createFailurePhrases {
		if strings.Contains(upstream, entry.phrase) {
			return dErrors.New(entry.code, entry.msg)
		}
	}
	if upstream == "" {
		upstream = "account creation failed"
	}
	return dErrors.New(dErrors.CodeExternal, upstream)
}
