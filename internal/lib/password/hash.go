// Package password реализует одностороннее хеширование и проверку паролей на bcrypt.
//
// GetHash создает bcrypt-хеш пароля для хранения в снимке пользователей.
// CompareHash сравнивает сохранённый хеш с введённым паролем.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// GetHash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе — ошибку.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Hasher — значение, через которое сервисы получают доступ к хешированию.
type Hasher struct{}

// Hash возвращает хэш пароля.
func (Hasher) Hash(password string) (string, error) {
	return GetHash(password)
}

// Verify сообщает, соответствует ли пароль хэшу.
func (Hasher) Verify(password, hash string) bool {
	return CompareHash(hash, password) == nil
}
