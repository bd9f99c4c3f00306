package domain

import "errors"

var (
	// ErrNotFound возвращается, если запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrStorageUnavailable означает недоступность хранилища или сети; батч прерывается.
	ErrStorageUnavailable = errors.New("хранилище недоступно")
	// ErrInvalidPlatform возвращается для неизвестной платформы.
	ErrInvalidPlatform = errors.New("неизвестная платформа")
	// ErrInvalidMonth возвращается для месяца не в формате YYYY-MM.
	ErrInvalidMonth = errors.New("месяц должен быть в формате YYYY-MM")
	// ErrInvalidStatus возвращается для неизвестного статуса замечания.
	ErrInvalidStatus = errors.New("неизвестный статус")
	// ErrInvalidInput помечает прочие ошибки валидации входных данных.
	ErrInvalidInput = errors.New("некорректные данные")
	// ErrAccountMissing означает, что у бренда нет аккаунта на платформе.
	ErrAccountMissing = errors.New("аккаунт бренда не настроен")
)
