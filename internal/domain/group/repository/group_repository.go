package repository

import (
	"errors"
	"strings"
	"time"

	"groupbuy_backend/internal/domain/group/model"

	"gorm.io/gorm"
)

// Join and resolution failures the service maps to business codes. All of
// them come out of guarded UPDATEs, so concurrent callers race safely: the
// database decides who wins.
var (
	ErrGroupNotActive    = errors.New("group is not active")
	ErrGroupFull         = errors.New("group is full")
	ErrAlreadyMember     = errors.New("user already joined this group")
	ErrNotMember         = errors.New("user is not a member of this group")
	ErrAlreadyResolved   = errors.New("group already resolved")
	ErrInvalidTransition = errors.New("illegal group status transition")
)

type GroupRepository interface {
	// Create inserts the group and the creator's membership in one
	// transaction, with the counter already at 1.
	Create(group *model.Group) error
	GetByID(id string) (*model.Group, error)
	ListByProduct(productID string, status string) ([]model.Group, error)
	ListByUser(userID string) ([]model.Group, error)
	HasActiveGroup(productID string) (bool, error)

	// AddMember increments the counter and inserts the membership
	// atomically. The guarded UPDATE admits at most MaxParticipants rows.
	AddMember(groupID, userID string) error
	RemoveMember(groupID, userID string) error
	IsMember(groupID, userID string) (bool, error)
	ListMembers(groupID string) ([]model.GroupMember, error)

	// MarkCompleted and friends flip an active group into a terminal state.
	// The status guard makes resolution idempotent: a second caller gets
	// ErrAlreadyResolved instead of overwriting the outcome.
	MarkCompleted(groupID string, finalPrice float64) error
	MarkFailed(groupID string) error
	MarkCancelled(groupID string) error

	ListExpired(now time.Time, limit int) ([]model.Group, error)
	ListExpiring(from, to time.Time, limit int) ([]model.Group, error)
	MarkExpiryNotified(groupID string) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(group *model.Group) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		group.Status = model.StatusActive
		group.CurrentCount = 1
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		member := &model.GroupMember{GroupID: group.ID, UserID: group.CreatorID}
		return tx.Create(member).Error
	})
}

func (r *groupRepository) GetByID(id string) (*model.Group, error) {
	var group model.Group
	if err := r.db.Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) ListByProduct(productID string, status string) ([]model.Group, error) {
	var groups []model.Group
	query := r.db.Where("product_id = ?", productID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&groups).Error
	return groups, err
}

func (r *groupRepository) ListByUser(userID string) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.created_at DESC").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepository) HasActiveGroup(productID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Group{}).
		Where("product_id = ? AND status = ?", productID, model.StatusActive).
		Count(&count).Error
	return count > 0, err
}

func (r *groupRepository) AddMember(groupID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Group{}).
			Where("id = ? AND status = ? AND current_count < max_participants",
				groupID, model.StatusActive).
			UpdateColumn("current_count", gorm.Expr("current_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Distinguish the reason for the handler's error mapping.
			var group model.Group
			if err := tx.Select("status").Where("id = ?", groupID).First(&group).Error; err != nil {
				return err
			}
			if model.IsTerminal(group.Status) {
				return ErrGroupNotActive
			}
			return ErrGroupFull
		}

		member := &model.GroupMember{GroupID: groupID, UserID: userID}
		if err := tx.Create(member).Error; err != nil {
			// The unique index is the real double-join guard; the failed
			// insert rolls the counter increment back with it.
			if isDuplicateKey(err) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
}

func (r *groupRepository) RemoveMember(groupID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Group{}).
			Where("id = ? AND status = ?", groupID, model.StatusActive).
			UpdateColumn("current_count", gorm.Expr("current_count - 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotActive
		}

		del := tx.Where("group_id = ? AND user_id = ?", groupID, userID).
			Delete(&model.GroupMember{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			return ErrNotMember
		}
		return nil
	})
}

func (r *groupRepository) IsMember(groupID, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *groupRepository) ListMembers(groupID string) ([]model.GroupMember, error) {
	var members []model.GroupMember
	err := r.db.Where("group_id = ?", groupID).Order("created_at").Find(&members).Error
	return members, err
}

func (r *groupRepository) MarkCompleted(groupID string, finalPrice float64) error {
	now := time.Now()
	return r.resolve(groupID, model.StatusCompleted, map[string]interface{}{
		"final_price":  finalPrice,
		"completed_at": &now,
	})
}

func (r *groupRepository) MarkFailed(groupID string) error {
	return r.resolve(groupID, model.StatusFailed, nil)
}

func (r *groupRepository) MarkCancelled(groupID string) error {
	return r.resolve(groupID, model.StatusCancelled, nil)
}

func (r *groupRepository) resolve(groupID, toStatus string, extra map[string]interface{}) error {
	if !model.CanTransition(model.StatusActive, toStatus) {
		return ErrInvalidTransition
	}
	updates := map[string]interface{}{"status": toStatus}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.db.Model(&model.Group{}).
		Where("id = ? AND status = ?", groupID, model.StatusActive).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *groupRepository) ListExpired(now time.Time, limit int) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.Where("status = ? AND deadline <= ?", model.StatusActive, now).
		Order("deadline").Limit(limit).Find(&groups).Error
	return groups, err
}

func (r *groupRepository) ListExpiring(from, to time.Time, limit int) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.
		Where("status = ? AND expiry_notified = false AND deadline > ? AND deadline <= ?",
			model.StatusActive, from, to).
		Order("deadline").Limit(limit).Find(&groups).Error
	return groups, err
}

func (r *groupRepository) MarkExpiryNotified(groupID string) error {
	return r.db.Model(&model.Group{}).Where("id = ?", groupID).
		UpdateColumn("expiry_notified", true).Error
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key")
}
