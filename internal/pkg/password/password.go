// password хэширует и проверяет пароли пользователей (bcrypt).
// Хэш хранит соль и стоимость внутри себя и считается непрозрачной строкой.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash хэширует пароль с помощью bcrypt.
func Hash(password string) (string, error) {
	const op = "password.Hash"

	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// Verify сравнивает пароль с хэшем за постоянное время.
// Пустой или повреждённый хэш даёт false.
func Verify(password, hash string) bool {
	if hash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
