package store

import (
	"context"
)

// CreateRawUpload writes the initial raw upload row for an inbound
// request. Written before decode so even unparseable requests are kept.
func (s *Store) CreateRawUpload(ctx context.Context, r *RawUpload) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// SaveRawUpload persists updated parse metadata on an existing row. Only
// the ingestion pipeline calls this, and only within the upload's own
// transaction; rows are immutable afterwards.
func (s *Store) SaveRawUpload(ctx context.Context, r *RawUpload) error {
	return s.db.WithContext(ctx).Save(r).Error
}

// ListRawUploads returns raw upload records newest first. With errorsOnly
// the result covers parse failures and parsed-but-flagged rows alike:
// anything with a note in the error column.
func (s *Store) ListRawUploads(ctx context.Context, limit, offset int, errorsOnly bool) ([]RawUpload, error) {
	q := s.db.WithContext(ctx).Model(&RawUpload{})
	if errorsOnly {
		q = q.Where("parse_ok = ? OR error_message IS NOT NULL", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var out []RawUpload
	err := q.Order("received_at DESC").Find(&out).Error
	return out, err
}
