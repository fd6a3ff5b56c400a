package postgres

import (
	"gorm.io/gorm"

	usermodel "github.com/frahmantamala/packpay/internal/core/datamodel/user"
	userpkg "github.com/frahmantamala/packpay/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) userpkg.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(id int64) (*usermodel.User, error) {
	var u usermodel.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
