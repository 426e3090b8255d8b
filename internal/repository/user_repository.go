package repository

import (
	"context"
	"errors"

	"linkup-chat/internal/domain/user"
	linkup_errors "linkup-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return linkup_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, linkup_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	var users []user.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
