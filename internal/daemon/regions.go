package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dbaasd/dbaasd/internal/db"
	"github.com/dbaasd/dbaasd/internal/models"
)

// RegionService manages the shared region catalog. Regions are global
// reference data: any caller may read them, only admins may add them,
// and they are never modified once created.
type RegionService struct {
	store  *db.Store
	logger *log.Logger
}

// NewRegionService constructs a region service.
func NewRegionService(store *db.Store, logger *log.Logger) *RegionService {
	if logger == nil {
		logger = log.Default()
	}
	return &RegionService{store: store, logger: logger}
}

// List returns all regions ordered by name.
func (s *RegionService) List(ctx context.Context) ([]models.Region, error) {
	regions, err := s.store.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if regions == nil {
		regions = []models.Region{}
	}
	return regions, nil
}

// Retrieve returns one region by id.
func (s *RegionService) Retrieve(ctx context.Context, id string) (models.Region, error) {
	region, err := s.store.GetRegion(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Region{}, ErrRegionNotFound
	}
	if err != nil {
		return models.Region{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return region, nil
}

// Create adds a region to the catalog.
func (s *RegionService) Create(ctx context.Context, region models.Region) (models.Region, error) {
	region.ID = strings.TrimSpace(region.ID)
	region.Name = strings.TrimSpace(region.Name)
	if region.ID == "" {
		return models.Region{}, errors.New("region id is required")
	}
	if region.Name == "" {
		return models.Region{}, errors.New("region name is required")
	}
	err := s.store.InsertRegion(ctx, region)
	if errors.Is(err, db.ErrDuplicateID) {
		return models.Region{}, ErrRegionExists
	}
	if err != nil {
		return models.Region{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logger.Printf("dbaasd: region %s (%s) added", region.ID, region.Name)
	return region, nil
}
