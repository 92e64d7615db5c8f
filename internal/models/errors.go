package models

import "errors"

var (
	// ErrNotFound — сущность не найдена либо принадлежит другому пользователю.
	// Оба случая намеренно неразличимы для вызывающего.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized — неверные учётные данные.
	ErrUnauthorized = errors.New("invalid credentials")
	// ErrUserExists — пользователь с таким email уже зарегистрирован.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound — владелец подписки не существует.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserHasSubscriptions — на пользователя ссылаются подписки.
	ErrUserHasSubscriptions = errors.New("user has subscriptions")
)
