package utils

import (
	"golang.org/x/crypto/bcrypt"
)

func CompareHash(hash, plain []byte) bool {
	if err := bcrypt.CompareHashAndPassword(hash, plain); err != nil {
		return false
	}
	return true
}

func GenerateHash(plain []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(plain, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
