package util

import "regexp"

var emailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`)

// ValidateEmail reports whether the address matches the accepted email format.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}
