package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the cost the rest of the directory stack was
// provisioned with; raising it invalidates nothing but slows logins.
const bcryptCost = 10

const minPasswordLength = 6

// HashPassword derives a salted one-way hash of the raw password.
func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether raw matches the stored hash.
func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
