package postgres

import (
	"gorm.io/gorm"

	packmodel "github.com/frahmantamala/packpay/internal/core/datamodel/pack"
	packpkg "github.com/frahmantamala/packpay/internal/pack"
)

type PackRepository struct {
	db *gorm.DB
}

func NewPackRepository(db *gorm.DB) packpkg.Repository {
	return &PackRepository{db: db}
}

func (r *PackRepository) GetByID(id int64) (*packmodel.Pack, error) {
	var p packmodel.Pack
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
