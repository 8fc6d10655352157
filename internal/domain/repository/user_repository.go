package repository

import (
	"context"

	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// UserRepository operadores de la aplicación.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
