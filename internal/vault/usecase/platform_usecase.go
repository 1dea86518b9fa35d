package usecase

import (
	"context"

	vaultDomain "github.com/zeroapp/credvault/internal/vault/domain"
)

// platformUseCase implements PlatformUseCase.
type platformUseCase struct {
	platformRepo PlatformRepository
}

// NewPlatformUseCase creates a platform catalog use case.
func NewPlatformUseCase(platformRepo PlatformRepository) PlatformUseCase {
	return &platformUseCase{platformRepo: platformRepo}
}

// GetByName retrieves a platform by its unique machine name.
func (p *platformUseCase) GetByName(ctx context.Context, name string) (*vaultDomain.Platform, error) {
	return p.platformRepo.GetByName(ctx, name)
}

// List retrieves all configured platforms.
func (p *platformUseCase) List(ctx context.Context) ([]*vaultDomain.Platform, error) {
	return p.platformRepo.List(ctx)
}

// Seed upserts the given platforms. Safe to run repeatedly; existing rows are
// updated in place by name.
func (p *platformUseCase) Seed(ctx context.Context, platforms []*vaultDomain.Platform) error {
	for _, platform := range platforms {
		if err := p.platformRepo.Upsert(ctx, platform); err != nil {
			return err
		}
	}
	return nil
}
