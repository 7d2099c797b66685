package model

import (
	baseModel "groupbuy_backend/pkg/model"
)

// Roles for the admin middleware.
const (
	RoleUser  = 1
	RoleAdmin = 2
)

// Loyalty levels. Thresholds live in the user service.
const (
	LevelNewcomer   = "newcomer"
	LevelBuyer      = "buyer"
	LevelActivist   = "activist"
	LevelExpert     = "expert"
	LevelAmbassador = "ambassador"
)

// User is the engine's view of an externally-owned identity: the id is
// trusted as opaque, the aggregate counters are written as side effects of
// order and group completion.
type User struct {
	baseModel.BaseModel
	TelegramID int64  `gorm:"unique;not null" json:"telegramId"`
	Username   string `gorm:"type:varchar(100)" json:"username"`
	FirstName  string `gorm:"type:varchar(100)" json:"firstName"`
	LastName   string `gorm:"type:varchar(100)" json:"lastName"`
	Phone      string `gorm:"type:varchar(20)" json:"phone"`
	Role       int    `gorm:"default:1" json:"-"`

	Level           string  `gorm:"type:varchar(20);default:'newcomer'" json:"level"`
	TotalOrders     int     `gorm:"default:0" json:"totalOrders"`
	TotalSavings    float64 `gorm:"default:0" json:"totalSavings"`
	InvitedCount    int     `gorm:"default:0" json:"invitedCount"`
	GroupsOrganized int     `gorm:"default:0" json:"groupsOrganized"`
}

// Address is a delivery address owned by a user.
type Address struct {
	baseModel.BaseModel
	UserID     string `gorm:"type:uuid;index;not null" json:"userId"`
	Title      string `gorm:"type:varchar(50)" json:"title"`
	City       string `gorm:"type:varchar(100);not null" json:"city"`
	Street     string `gorm:"type:varchar(200);not null" json:"street"`
	Building   string `gorm:"type:varchar(20);not null" json:"building"`
	Apartment  string `gorm:"type:varchar(20)" json:"apartment"`
	PostalCode string `gorm:"type:varchar(10)" json:"postalCode"`
	Comment    string `gorm:"type:varchar(500)" json:"comment"`
	IsDefault  bool   `gorm:"default:false" json:"isDefault"`
}
