package services

import (
	"errors"
	"fmt"
)

// Общие ошибки ядра, используемые в сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidDuration  = errors.New("timer duration must be between 1 and 180 minutes")

	// Ошибки конфликтов состояния
	ErrDuplicateSubmission = errors.New("score already submitted for this match")
	ErrAlreadyQueued       = errors.New("user is already in the matchmaking queue")
	ErrInvalidMatchState   = errors.New("operation not allowed in the current match status")
	ErrInvalidResolution   = errors.New("invalid dispute resolution")

	// Ошибки таймера: все оборачивают ErrTimerState
	ErrTimerState          = errors.New("invalid timer state")
	ErrTimerAlreadyRunning = fmt.Errorf("%w: timer already running for this match", ErrTimerState)
	ErrNoActiveTimer       = fmt.Errorf("%w: no active timer found for this match", ErrTimerState)
	ErrNoPausedTimer       = fmt.Errorf("%w: no paused timer found for this match", ErrTimerState)

	// Ошибки авторизации
	ErrNotAuthorized = errors.New("user is not a participant of this match")

	// Время вышло, но результатов меньше двух. Не фатально, решение за администратором.
	ErrScoresPending = errors.New("match time expired before both scores were submitted")

	// Ошибка внешнего хранилища. Не повторяется внутри ядра.
	ErrUpstreamStore = errors.New("match store request failed")
)

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamStore, op, err)
}
