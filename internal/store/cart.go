package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/avolkov/webstore/internal/models"
)

// CartStore owns the cart_items table. The database copy is the source of
// truth for a user's cart; anything the client holds is a cache.
type CartStore struct {
	DB *gorm.DB
}

func NewCartStore(db *gorm.DB) *CartStore {
	return &CartStore{DB: db}
}

func (s *CartStore) Load(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save replaces the whole persisted cart with the given items. Callers pass
// the complete desired cart, never a delta; the delete+insert pair runs in
// one transaction so a racing save cannot interleave.
func (s *CartStore) Save(ctx context.Context, userID uint, items []models.CartItem) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].UserID = userID
		}
		return tx.Create(&items).Error
	})
}

func (s *CartStore) Clear(ctx context.Context, userID uint) error {
	return s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}
