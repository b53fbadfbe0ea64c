package provision

import (
	"regexp"
	"strings"

	dErrors "provisio/pkg/domain-errors"
)

var validUsername = regexp.MustCompile(`^[A-Za-z0-9]+$`)

const minPasswordLength = 8

func validateUsername(username string) error {
	if !validUsername.MatchString(username) {
		return dErrors.New(dErrors.CodeValidation, "username may only contain letters and digits")
	}
	return nil
}

// validatePassword enforces length, character variety, and that the password
// does not contain the username (case-insensitive).
func validatePassword(password, username string) error {
	if len(password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	classes := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return dErrors.New(dErrors.CodeValidation,
			"password needs at least 3 of: lowercase, uppercase, digit, symbol")
	}

	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return dErrors.New(dErrors.CodeValidation, "password must not contain the username")
	}
	return nil
}
