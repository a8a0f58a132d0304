package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/avolkov/webstore/internal/models"
)

// ProductStore owns the products table. Pass a transaction handle to make
// every call part of that transaction.
type ProductStore struct {
	DB *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{DB: db}
}

func (s *ProductStore) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *ProductStore) List(ctx context.Context, offset, limit int) ([]models.Product, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Product
	if err := s.DB.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *ProductStore) Update(ctx context.Context, id uint, data models.Product) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p.Name = data.Name
	p.Description = data.Description
	p.Price = data.Price
	p.Quantity = data.Quantity
	if data.Image != "" {
		p.Image = data.Image
	}

	if err := s.DB.WithContext(ctx).Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductStore) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock is a single conditional compare-and-subtract: the row is
// only touched when quantity covers the amount, so two checkouts racing for
// the last unit cannot both win and quantity never goes below zero.
func (s *ProductStore) DecrementStock(ctx context.Context, id uint, amount uint) error {
	res := s.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", id, amount).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var p models.Product
		if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name}
	}
	return nil
}
