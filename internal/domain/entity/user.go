package entity

import "time"

// Roles de operador. El tesorero crea y envía lotes; consulta solo lee.
const (
	RoleAdmin    = "admin"
	RoleTesorero = "tesorero"
	RoleConsulta = "consulta"
)

// User operador de la aplicación (boundary de autorización, no miembro).
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
