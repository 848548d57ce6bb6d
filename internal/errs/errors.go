// Package errs содержит таксономию ошибок шлюза, общую для всех слоёв.
// Хендлеры сопоставляют ошибки с HTTP статусами только через errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized : токен или учётные данные отсутствуют, невалидны или просрочены
	ErrUnauthorized = errors.New("не авторизован")

	// ErrForbidden : личность подтверждена, но прав или владения недостаточно
	ErrForbidden = errors.New("доступ запрещён")

	// ErrNotFound : файл или блокировка не найдены
	ErrNotFound = errors.New("не найден")

	// ErrConflict : несовпадение блокировки или занятое имя без перезаписи
	ErrConflict = errors.New("конфликт")

	// ErrUpstreamUnavailable : каталог LDAP или сервер discovery недоступен
	ErrUpstreamUnavailable = errors.New("внешний сервис недоступен")

	// ErrMalformed : токен, фильтр, XML или запрос не разбираются
	ErrMalformed = errors.New("некорректные данные")
)

// LockConflictError : конфликт блокировки, всегда несёт актуальное значение блокировки
type LockConflictError struct {
	CurrentLock string
	Reason      string
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("конфликт блокировки: %s", e.Reason)
}

func (e *LockConflictError) Unwrap() error { return ErrConflict }

// NameConflictError : файл с таким именем уже есть в папке
type NameConflictError struct {
	ValidTarget string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("имя файла занято, свободное имя: %s", e.ValidTarget)
}

func (e *NameConflictError) Unwrap() error { return ErrConflict }

// ParseError : содержимое не прошло проверку формата
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ошибка разбора %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("ошибка разбора %s", e.What)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}
