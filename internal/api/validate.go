// internal/api/validate.go
package api

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrValidation wraps every local input check failure so callers can tell
// them apart from server responses.
var ErrValidation = errors.New("invalid input")

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// validateLogin trims both fields and requires them to be non-empty.
func validateLogin(username, password string) (string, string, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return "", "", validationErr("username and password are required")
	}
	return username, password, nil
}

// validateRegister applies the account creation rules in order: presence,
// matching confirmation, then minimum lengths.
func validateRegister(username, password, confirm string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || confirm == "" {
		return "", validationErr("all fields are required")
	}
	if password != confirm {
		return "", validationErr("passwords do not match")
	}
	if utf8.RuneCountInString(username) < minUsernameLen {
		return "", validationErr(fmt.Sprintf("username must be at least %d characters", minUsernameLen))
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return "", validationErr(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	return username, nil
}
