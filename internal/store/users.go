package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ariahub/internal/protocol/aria"
)

// ListUserProfiles returns all active profiles in slot order.
func (s *Store) ListUserProfiles(ctx context.Context) ([]UserProfile, error) {
	var users []UserProfile
	err := s.db.WithContext(ctx).Order("scale_slot ASC").Find(&users).Error
	return users, err
}

// GetUserProfile looks a profile up by row id.
func (s *Store) GetUserProfile(ctx context.Context, id uint) (*UserProfile, error) {
	var user UserProfile
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUserProfile stores a new profile in the lowest free slot 0..7.
// ErrNoFreeSlot when all eight slots are taken. The caller fills every
// field except ScaleSlot and CreatedAt.
func (s *Store) CreateUserProfile(ctx context.Context, p *UserProfile) error {
	return s.Transaction(ctx, func(tx *Store) error {
		var taken []uint8
		if err := tx.db.WithContext(ctx).Model(&UserProfile{}).
			Order("scale_slot ASC").Pluck("scale_slot", &taken).Error; err != nil {
			return err
		}

		slot, ok := lowestFreeSlot(taken)
		if !ok {
			return ErrNoFreeSlot
		}

		p.ScaleSlot = slot
		p.CreatedAt = time.Now().UTC()
		if err := tx.db.WithContext(ctx).Create(p).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Two creates raced onto the same slot; the transaction
				// retries at the caller's discretion.
				return ErrNoFreeSlot
			}
			return err
		}
		return nil
	})
}

// DeleteUserProfile removes a profile and frees its slot.
func (s *Store) DeleteUserProfile(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&UserProfile{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserSlotTable builds the fixed eight-slot table embedded in every scale
// response: each active profile in its slot, remaining slots zero-filled.
func (s *Store) UserSlotTable(ctx context.Context) ([aria.UserSlots]aria.UserBlock, error) {
	var table [aria.UserSlots]aria.UserBlock

	users, err := s.ListUserProfiles(ctx)
	if err != nil {
		return table, err
	}
	for _, u := range users {
		if int(u.ScaleSlot) >= aria.UserSlots {
			continue
		}
		table[u.ScaleSlot] = aria.UserBlock{
			Slot:           u.ScaleSlot,
			HeightMM:       u.HeightMM,
			Age:            u.Age,
			Gender:         u.Gender,
			MinWeightGrams: u.MinWeightGrams,
			MaxWeightGrams: u.MaxWeightGrams,
		}
	}
	return table, nil
}

func lowestFreeSlot(taken []uint8) (uint8, bool) {
	used := [aria.UserSlots]bool{}
	for _, s := range taken {
		if int(s) < aria.UserSlots {
			used[s] = true
		}
	}
	for i := range used {
		if !used[i] {
			return uint8(i), true
		}
	}
	return 0, false
}
