package repository

import (
	"groupbuy_backend/internal/domain/user/model"

	"gorm.io/gorm"
)

// StatsDelta is an atomic increment applied to a user's aggregate counters.
// Zero fields are skipped.
type StatsDelta struct {
	Orders          int
	Savings         float64
	Invited         int
	GroupsOrganized int
}

type UserRepository interface {
	Create(user *model.User) error
	GetByID(id string) (*model.User, error)
	GetByTelegramID(telegramID int64) (*model.User, error)
	Update(user *model.User) error
	// IncrementStats applies the delta in a single UPDATE so concurrent
	// settlement workers never lose counter updates.
	IncrementStats(userID string, delta StatsDelta) error
	UpdateLevel(userID string, level string) error
	GetAddress(id string) (*model.Address, error)
	CreateAddress(address *model.Address) error
	ListAddresses(userID string) ([]model.Address, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByTelegramID(telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) IncrementStats(userID string, delta StatsDelta) error {
	updates := map[string]interface{}{}
	if delta.Orders != 0 {
		updates["total_orders"] = gorm.Expr("total_orders + ?", delta.Orders)
	}
	if delta.Savings != 0 {
		updates["total_savings"] = gorm.Expr("total_savings + ?", delta.Savings)
	}
	if delta.Invited != 0 {
		updates["invited_count"] = gorm.Expr("invited_count + ?", delta.Invited)
	}
	if delta.GroupsOrganized != 0 {
		updates["groups_organized"] = gorm.Expr("groups_organized + ?", delta.GroupsOrganized)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error
}

func (r *userRepository) UpdateLevel(userID string, level string) error {
	return r.db.Model(&model.User{}).Where("id = ?", userID).
		UpdateColumn("level", level).Error
}

func (r *userRepository) GetAddress(id string) (*model.Address, error) {
	var address model.Address
	if err := r.db.Where("id = ?", id).First(&address).Error; err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *userRepository) CreateAddress(address *model.Address) error {
	return r.db.Create(address).Error
}

func (r *userRepository) ListAddresses(userID string) ([]model.Address, error) {
	var addresses []model.Address
	err := r.db.Where("user_id = ?", userID).Order("is_default DESC, created_at").Find(&addresses).Error
	return addresses, err
}
