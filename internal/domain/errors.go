package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")

	// ErrInvalidTransition: el cambio de estado solicitado no es legal según
	// la tabla de transiciones del lote o del mandato.
	ErrInvalidTransition = errors.New("transición de estado ilegal")

	// ErrMandateNotActive: la operación requiere un mandato en estado Active.
	ErrMandateNotActive = errors.New("el mandato no está activo")

	// ErrConcurrencyConflict: carrera benigna (serialization failure, lock
	// timeout). El caller debe reintentar con una lista fresca de candidatos.
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia; reintentar con candidatos frescos")

	// ErrPersistence: fallo de almacenamiento o transacción; recuperable con
	// retry y backoff.
	ErrPersistence = errors.New("error de persistencia")

	// ErrValidation: el lote tiene violaciones estructurales; el reporte
	// adjunto enumera todas, no solo la primera.
	ErrValidation = errors.New("el lote no pasa la validación SEPA")

	// ErrEncodingContract: un lote Validated llegó al encoder en estado
	// inválido. Es un bug del programa, no un dato corregible por el usuario:
	// el encoder falla de inmediato y no emite XML parcial.
	ErrEncodingContract = errors.New("violación de contrato del encoder pain.008")
)
