// Package models содержит доменную модель пользователя системы,
// её публичное представление и структуры для приёма данных из JSON‑запросов.
package models

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           int64  `json:"id"`            // Уникальный идентификатор, выдаётся хранилищем
	Name         string `json:"name"`          // Отображаемое имя
	Email        string `json:"email"`         // Электронная почта (уникальная без учёта регистра)
	PasswordHash string `json:"password_hash"` // Хэш пароля пользователя
}

// Clone возвращает независимую копию пользователя.
func (u User) Clone() User {
	return u
}

// Public возвращает представление пользователя без хэша пароля.
func (u User) Public() UserView {
	return UserView{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// UserView — публичное представление пользователя, отдаётся клиентам API.
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DummyUser используется для приёма данных регистрации из JSON-запроса.
type DummyUser struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// DummyUserUpdate используется для частичного обновления профиля.
// Пустые поля не изменяют сохранённые значения.
type DummyUserUpdate struct {
	Name     string `json:"name,omitempty" validate:"omitempty,max=100"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
}

// Credentials — учётные данные для входа.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
