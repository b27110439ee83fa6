package protocol

import "errors"

// Таксономия ошибок прогона. Конкретные ошибки оборачивают эти значения
// через fmt.Errorf("%w: ..."), проверка через errors.Is.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrQueueUnavailable = errors.New("queue service unavailable")
	ErrMalformedMessage = errors.New("malformed message")
	ErrEvaluation       = errors.New("evaluation error")
	ErrTimeout          = errors.New("wait timed out")
)
