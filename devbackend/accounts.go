package devbackend

import (
	"github.com/jrsteele09/matka-backoffice/session"
	"golang.org/x/crypto/bcrypt"
)

// Admin is an operator account of the dev backend
type Admin struct {
	ID           int64
	Name         string
	Username     string
	Email        string
	Role         string
	PasswordHash string
}

// Public returns the identity object sent to the console
func (a *Admin) Public() *session.AdminUser {
	return &session.AdminUser{ID: a.ID, Name: a.Name, Username: a.Username, Email: a.Email, Role: a.Role}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
