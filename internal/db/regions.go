package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dbaasd/dbaasd/internal/models"
)

// InsertRegion inserts a new region. Returns ErrDuplicateID when the id
// is already taken.
func (s *Store) InsertRegion(ctx context.Context, region models.Region) error {
	if s == nil || s.DB == nil {
		return errors.New("db store is nil")
	}
	if strings.TrimSpace(region.ID) == "" {
		return errors.New("region id is required")
	}
	if strings.TrimSpace(region.Name) == "" {
		return errors.New("region name is required")
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO regions (id, name) VALUES (?, ?)`,
		region.ID, region.Name)
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("insert region %s: %w", region.ID, ErrDuplicateID)
		}
		return fmt.Errorf("insert region %s: %w", region.ID, err)
	}
	return nil
}

// GetRegion loads a region by id. Returns sql.ErrNoRows when unknown.
func (s *Store) GetRegion(ctx context.Context, id string) (models.Region, error) {
	if s == nil || s.DB == nil {
		return models.Region{}, errors.New("db store is nil")
	}
	row := s.DB.QueryRowContext(ctx, `SELECT id, name FROM regions WHERE id = ?`, id)
	var region models.Region
	if err := row.Scan(&region.ID, &region.Name); err != nil {
		return models.Region{}, err
	}
	return region, nil
}

// ListRegions returns all regions ordered by name ascending.
func (s *Store) ListRegions(ctx context.Context) ([]models.Region, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("db store is nil")
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name FROM regions ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()
	var out []models.Region
	for rows.Next() {
		var region models.Region
		if err := rows.Scan(&region.ID, &region.Name); err != nil {
			return nil, err
		}
		out = append(out, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return out, nil
}
