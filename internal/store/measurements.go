package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertMeasurementIfAbsent inserts a measurement unless a row already
// exists for its (scale MAC, measurement ID). It reports whether the row
// was inserted; when it was not, the existing row is returned so the
// caller can detect conflicting re-uploads. The original row always wins.
func (s *Store) InsertMeasurementIfAbsent(ctx context.Context, m *Measurement) (bool, *Measurement, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scale_mac"}, {Name: "measurement_id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil, nil
	}

	var existing Measurement
	err := s.db.WithContext(ctx).
		Where("scale_mac = ? AND measurement_id = ?", m.ScaleMAC, m.MeasurementID).
		First(&existing).Error
	if err != nil {
		return false, nil, err
	}
	return false, &existing, nil
}

// MeasurementFilter narrows measurement listings.
type MeasurementFilter struct {
	Limit  int
	Offset int

	// UserID filters by scale slot when non-nil (0 selects guest readings).
	UserID *uint8

	// ScaleMAC filters by canonical MAC when non-empty.
	ScaleMAC string
}

// ListMeasurements returns measurements newest first by scale timestamp.
func (s *Store) ListMeasurements(ctx context.Context, f MeasurementFilter) ([]Measurement, error) {
	q := s.db.WithContext(ctx).Model(&Measurement{})
	if f.UserID != nil {
		q = q.Where("user_slot = ?", *f.UserID)
	}
	if f.ScaleMAC != "" {
		q = q.Where("scale_mac = ?", f.ScaleMAC)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []Measurement
	err := q.Order("timestamp DESC").Find(&out).Error
	return out, err
}

// LatestMeasurement returns the single most recent measurement, optionally
// for one user slot. ErrMeasurementNotFound when nothing matches.
func (s *Store) LatestMeasurement(ctx context.Context, userID *uint8) (*Measurement, error) {
	q := s.db.WithContext(ctx).Model(&Measurement{})
	if userID != nil {
		q = q.Where("user_slot = ?", *userID)
	}

	var m Measurement
	err := q.Order("timestamp DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMeasurementNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
