package recipient

import (
	"context"
	"fmt"
)

type districtWriter interface {
	Reader
	UpdateDistrict(ctx context.Context, id, ocdDistrictID string) error
}

// Service backfills seat metadata for recipients that were created without a
// resolvable district.
type Service struct {
	repo     districtWriter
	resolver DistrictResolver
}

// NewService builds a recipient service over the repository and the civics
// resolver.
func NewService(repo districtWriter, resolver DistrictResolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// EnsureSeatMetadata resolves and stores the recipient's district when it is
// missing. Already-resolved recipients are returned untouched; a civics
// lookup failure propagates so the caller can decline the donation instead
// of guessing a cycle.
func (s *Service) EnsureSeatMetadata(ctx context.Context, id, address string) (Recipient, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Recipient{}, err
	}
	if rec.HasSeatMetadata() {
		return rec, nil
	}

	district, err := s.resolver.ResolveDistrict(ctx, address)
	if err != nil {
		return Recipient{}, fmt.Errorf("recipient: resolve district for %s: %w", id, err)
	}

	if err := s.repo.UpdateDistrict(ctx, id, district.OCDDistrictID); err != nil {
		return Recipient{}, err
	}
	rec.OCDDistrictID = district.OCDDistrictID
	return rec, nil
}
