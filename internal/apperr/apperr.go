// Package apperr описывает таксономию ошибок сервиса и её отображение в HTTP-статусы.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation возвращается при некорректных или отсутствующих полях запроса.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized возвращается, если личность вызывающего не установлена.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden возвращается, если вызывающему не разрешено действие над заказом в текущем состоянии.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound возвращается, если заказ, пользователь или запись справочника не найдены.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest возвращается, если запрос противоречит текущему состоянию (например, удаление обработанного заказа).
	ErrBadRequest = errors.New("bad request")
	// ErrConflict возвращается, если параллельное обновление проиграло гонку. Запрос можно повторить.
	ErrConflict = errors.New("conflict")
)

// HTTPStatus возвращает HTTP-статус для ошибки из таксономии. Прочие ошибки считаются внутренними.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable сообщает, имеет ли смысл повторить запрос без изменений.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInternal сообщает, что ошибка не входит в таксономию и должна логироваться на сервере.
func IsInternal(err error) bool {
	return err != nil && HTTPStatus(err) == http.StatusInternalServerError
}
