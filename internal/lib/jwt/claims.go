package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/subman/internal/models"
)

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
// Subject содержит email пользователя.
type CustomClaims struct {
	UserID               int64  `json:"userId"`   // ID пользователя
	UserName             string `json:"userName"` // Отображаемое имя
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (sub, iat, exp)
}

// GenerateToken создает JWT токен для пользователя, подписывая его секретным ключом.
//
// Время выпуска берётся из часов MakerImpl, окончание — через tokenTTL после выпуска.
func (j *MakerImpl) GenerateToken(user models.User) (string, error) {
	const op = "jwt.GenerateToken"
	issuedAt := j.now().Truncate(timePrecision)
	claims := CustomClaims{
		UserID:   user.ID,
		UserName: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(j.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(j.method, claims).SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ParseSubject возвращает email из токена. Истёкший токен здесь ошибкой не считается.
func (j *MakerImpl) ParseSubject(token string) (string, error) {
	claims, err := j.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseUserID возвращает ID пользователя из токена.
func (j *MakerImpl) ParseUserID(token string) (int64, error) {
	claims, err := j.parse(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// Validate возвращает true, если токен выпущен на текущий email пользователя
// и срок его действия ещё не прошёл. Момент окончания срока считается валидным.
func (j *MakerImpl) Validate(token string, user models.User) bool {
	claims, err := j.parse(token)
	if err != nil {
		return false
	}
	if claims.Subject != user.Email {
		return false
	}
	return !expiresAt(claims).Before(j.now())
}

// parse проверяет подпись и структуру токена. Проверка сроков выполняется отдельно в Validate.
func (j *MakerImpl) parse(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.parse"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{},
		func(_ *jwt.Token) (any, error) {
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	if claims.Subject == "" || claims.UserID == 0 || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%s: %w: missing claims", op, ErrTokenInvalid)
	}
	return claims, nil
}

func expiresAt(claims *CustomClaims) time.Time {
	return claims.ExpiresAt.Time.Round(timePrecision)
}
