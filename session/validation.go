package session

import (
	"regexp"
	"strings"

	"github.com/jrsteele09/go-arena-client/apierr"
)

// Input validation performed before the network round trip. The server
// re-validates everything; catching the obvious cases locally just saves a
// request and gives the caller the same ErrValidationFailed shape either way.

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func validateLogin(email, password string) error {
	details := map[string][]string{}
	if err := checkEmail(email); err != "" {
		details["email"] = append(details["email"], err)
	}
	if strings.TrimSpace(password) == "" {
		details["password"] = append(details["password"], "password is required")
	}
	return validationError(details)
}

func validateRegistration(username, email, password string) error {
	details := map[string][]string{}

	username = strings.TrimSpace(username)
	switch {
	case len(username) < minUsernameLen || len(username) > maxUsernameLen:
		details["username"] = append(details["username"], "username must be 3-32 characters")
	case !usernamePattern.MatchString(username):
		details["username"] = append(details["username"], "username may only contain letters, digits and underscores")
	}

	if err := checkEmail(email); err != "" {
		details["email"] = append(details["email"], err)
	}

	if len(password) < minPasswordLen {
		details["password"] = append(details["password"], "password must be at least 6 characters")
	}

	return validationError(details)
}

func checkEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "email is required"
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return "invalid email format"
	}
	return ""
}

func validationError(details map[string][]string) error {
	if len(details) == 0 {
		return nil
	}
	err := apierr.New(apierr.ErrValidationFailed, 0, "validation failed")
	err.Details = details
	return err
}
