package domain

import "errors"

var (
	// ErrMissingEntry: el setup no trae precio de entrada.
	ErrMissingEntry = errors.New("setup has no entry price")

	// ErrDuplicateSignal: ya hay una señal activa para (símbolo, estrategia).
	ErrDuplicateSignal = errors.New("signal already tracked for symbol and strategy")

	// ErrInvalidSetup: el setup no es coherente (stop del lado equivocado, sin objetivos...).
	ErrInvalidSetup = errors.New("invalid setup")

	ErrSignalNotFound = errors.New("signal not found")
)
