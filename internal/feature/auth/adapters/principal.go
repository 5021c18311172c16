package adapters

import (
	"context"

	"mosaic_backend/internal/feature/auth/domain/entity"
	jwtmw "mosaic_backend/internal/platform/jwt"
)

// UserFinder loads a user by id. The cached repository satisfies it too.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*entity.User, error)
}

// PrincipalLookup exposes users to the authenticate middleware.
type PrincipalLookup struct {
	users UserFinder
}

var _ jwtmw.PrincipalLookup = (*PrincipalLookup)(nil)

// NewPrincipalLookup creates a PrincipalLookup over users.
func NewPrincipalLookup(users UserFinder) *PrincipalLookup {
	return &PrincipalLookup{users: users}
}

// Principal implements jwtmw.PrincipalLookup.
func (p *PrincipalLookup) Principal(ctx context.Context, id uint) (*jwtmw.Principal, error) {
	u, err := p.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &jwtmw.Principal{
		ID:       u.ID,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
		TenantID: u.TenantID,
	}, nil
}
