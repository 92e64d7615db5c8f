// Package jwt реализует выпуск и проверку подписанных JWT токенов пользователя.
//
// Maker определяет интерфейс для выпуска токена и извлечения из него email и ID пользователя.
// MakerImpl — конкретная реализация на HMAC с секретным ключом и временем жизни токена.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/subman/internal/models"
)

// ErrTokenInvalid возвращается, если токен повреждён, подписан другим ключом
// или в нём нет обязательных claim полей.
var ErrTokenInvalid = errors.New("token invalid")

// timePrecision — точность отметок времени в токене.
const timePrecision = time.Millisecond

func init() {
	// NumericDate разбирается через float64, поэтому кодируем с запасом точности,
	// а при чтении округляем до timePrecision.
	jwt.TimePrecision = time.Microsecond
}

// Maker описывает интерфейс для выпуска и разбора JWT токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя.
	GenerateToken(user models.User) (string, error)
	// ParseSubject возвращает email, на который выпущен токен.
	ParseSubject(token string) (string, error)
	// ParseUserID возвращает ID пользователя из токена.
	ParseUserID(token string) (int64, error)
	// Validate проверяет, что токен принадлежит пользователю и не истёк.
	Validate(token string, user models.User) bool
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
//
// Импорт пакета меняет глобальную настройку golang-jwt: init выставляет
// jwt.TimePrecision в time.Microsecond для всего процесса, включая другие
// пакеты, которые кодируют или разбирают токены через golang-jwt.
// Отметки exp и iat в токенах MakerImpl округляются до миллисекунд.
type MakerImpl struct {
	secretKey []byte            // Секретный ключ для подписи токенов.
	method    jwt.SigningMethod // HMAC метод, выбранный по длине ключа.
	tokenTTL  time.Duration     // Время жизни токена.
	now       func() time.Time
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	key := []byte(secretKey)
	return &MakerImpl{
		secretKey: key,
		method:    signingMethodFor(key),
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// signingMethodFor выбирает самый сильный HMAC алгоритм, который допускает длина ключа.
func signingMethodFor(key []byte) jwt.SigningMethod {
	switch {
	case len(key) >= 64:
		return jwt.SigningMethodHS512
	case len(key) >= 48:
		return jwt.SigningMethodHS384
	default:
		return jwt.SigningMethodHS256
	}
}
