package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	catalogRepo "groupbuy_backend/internal/domain/catalog/repository"
	catalogService "groupbuy_backend/internal/domain/catalog/service"
	"groupbuy_backend/internal/domain/group/model"
	"groupbuy_backend/internal/domain/group/repository"
	userRepo "groupbuy_backend/internal/domain/user/repository"
	userService "groupbuy_backend/internal/domain/user/service"
	"groupbuy_backend/internal/pkg/config"
	"groupbuy_backend/internal/pkg/notify"
	"groupbuy_backend/pkg/logger"
	"groupbuy_backend/pkg/metrics"

	"go.uber.org/zap"
)

// Service-level failures the handler maps to business codes.
var (
	ErrProductUnavailable = errors.New("product is not available for group buying")
	ErrProductHasActive   = errors.New("product already has an active group")
	ErrNotCreator         = errors.New("only the creator can cancel the group")
	ErrMemberHasOrder     = errors.New("member has a checked-out order in this group")
	ErrBadLimits          = errors.New("invalid participant limits")
)

// Settler is the slice of the order workflow the group lifecycle drives.
// Set after both modules initialize; nil means orders are not wired (tests).
type Settler interface {
	// OnGroupCompleted settles every frozen order of the group at the
	// final price.
	OnGroupCompleted(ctx context.Context, groupID string, finalPrice float64) error
	// OnGroupFailed releases every payment hold of the group.
	OnGroupFailed(ctx context.Context, groupID string, reason string) error
	// HasOrder reports whether the member checked out in this group.
	HasOrder(groupID, userID string) (bool, error)
}

// CreateGroupInput carries optional overrides for a new group; zero values
// fall back to the configured business defaults.
type CreateGroupInput struct {
	ProductID       string
	MinParticipants int
	MaxParticipants int
	DeadlineDays    int
}

// GroupDetail is the group card read model: the group plus live pricing.
type GroupDetail struct {
	Group        *model.Group             `json:"group"`
	CurrentPrice float64                  `json:"currentPrice"`
	NextTier     *catalogService.NextTier `json:"nextTier,omitempty"`
	Members      []model.GroupMember      `json:"members"`
}

type GroupService interface {
	Create(creatorID string, input CreateGroupInput) (*model.Group, error)
	Get(groupID string) (*GroupDetail, error)
	ListByProduct(productID, status string) ([]model.Group, error)
	ListByUser(userID string) ([]model.Group, error)

	Join(ctx context.Context, groupID, userID string) (*model.Group, error)
	Leave(groupID, userID string) error
	Cancel(ctx context.Context, groupID, requesterID string, isAdmin bool) error

	// ResolveExpired is the deadline sweep: every active group past its
	// deadline resolves to completed or failed depending on the threshold.
	ResolveExpired(ctx context.Context) error
	// NotifyExpiring warns members of groups entering their last day.
	NotifyExpiring(ctx context.Context) error

	SetSettler(s Settler)
}

type groupService struct {
	repo     repository.GroupRepository
	products catalogRepo.ProductRepository
	users    userService.UserService
	settler  Settler
}

func NewGroupService(repo repository.GroupRepository, products catalogRepo.ProductRepository, users userService.UserService) GroupService {
	return &groupService{repo: repo, products: products, users: users}
}

func (s *groupService) SetSettler(settler Settler) {
	s.settler = settler
}

func (s *groupService) Create(creatorID string, input CreateGroupInput) (*model.Group, error) {
	product, err := s.products.GetByID(input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive || product.Stock <= 0 {
		return nil, ErrProductUnavailable
	}

	// One active group per product keeps demand pooled instead of split.
	hasActive, err := s.repo.HasActiveGroup(input.ProductID)
	if err != nil {
		return nil, err
	}
	if hasActive {
		return nil, ErrProductHasActive
	}

	business := config.GlobalConfig.Business
	minP := input.MinParticipants
	if minP == 0 {
		minP = business.DefaultMinParticipants
	}
	maxP := input.MaxParticipants
	if maxP == 0 {
		maxP = business.DefaultMaxParticipants
	}
	days := input.DeadlineDays
	if days == 0 {
		days = business.DefaultDeadlineDays
	}
	if minP < 2 || maxP < minP {
		return nil, ErrBadLimits
	}

	group := &model.Group{
		ProductID:       product.ID,
		CreatorID:       creatorID,
		MinParticipants: minP,
		MaxParticipants: maxP,
		Deadline:        time.Now().AddDate(0, 0, days),
		// Snapshot: catalog edits must not reprice this group.
		BasePrice:  product.BasePrice,
		PriceTiers: product.PriceTiers,
	}
	if err := s.repo.Create(group); err != nil {
		return nil, err
	}

	if err := s.users.RecordStats(creatorID, userRepo.StatsDelta{GroupsOrganized: 1}); err != nil {
		logger.Log.Warn("Failed to record organizer stats",
			zap.String("user_id", creatorID), zap.Error(err))
	}
	return group, nil
}

func (s *groupService) Get(groupID string) (*GroupDetail, error) {
	group, err := s.repo.GetByID(groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(groupID)
	if err != nil {
		return nil, err
	}
	detail := &GroupDetail{
		Group:        group,
		CurrentPrice: catalogService.ResolvePrice(group.PriceTiers, group.CurrentCount, group.BasePrice),
		Members:      members,
	}
	if group.Status == model.StatusActive {
		detail.NextTier = catalogService.NextTierInfo(group.PriceTiers, group.CurrentCount)
	}
	if group.FinalPrice != nil {
		detail.CurrentPrice = *group.FinalPrice
	}
	return detail, nil
}

func (s *groupService) ListByProduct(productID, status string) ([]model.Group, error) {
	return s.repo.ListByProduct(productID, status)
}

func (s *groupService) ListByUser(userID string) ([]model.Group, error) {
	return s.repo.ListByUser(userID)
}

func (s *groupService) Join(ctx context.Context, groupID, userID string) (*model.Group, error) {
	if err := s.repo.AddMember(groupID, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrGroupFull):
			metrics.Default.ObserveJoin("full")
		case errors.Is(err, repository.ErrAlreadyMember):
			metrics.Default.ObserveJoin("duplicate")
		case errors.Is(err, repository.ErrGroupNotActive):
			metrics.Default.ObserveJoin("not_active")
		}
		return nil, err
	}
	metrics.Default.ObserveJoin("ok")

	group, err := s.repo.GetByID(groupID)
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:   notify.EventGroupJoined,
		UserID: group.CreatorID,
		Data: map[string]string{
			"group_id": group.ID,
			"count":    strconv.Itoa(group.CurrentCount),
		},
	})

	// Crossing the minimum resolves the round right away: the price is
	// locked and every hold captures. The guarded MarkCompleted keeps a
	// racing sweep from settling the same group twice.
	if group.CurrentCount >= group.MinParticipants {
		if err := s.complete(ctx, group); err != nil && !errors.Is(err, repository.ErrAlreadyResolved) {
			return nil, err
		}
		group, err = s.repo.GetByID(groupID)
		if err != nil {
			return nil, err
		}
	}
	return group, nil
}

func (s *groupService) Leave(groupID, userID string) error {
	// A member with a payment hold must cancel the order first; the order
	// cancellation releases the hold and then removes the membership.
	if s.settler != nil {
		hasOrder, err := s.settler.HasOrder(groupID, userID)
		if err != nil {
			return err
		}
		if hasOrder {
			return ErrMemberHasOrder
		}
	}
	return s.repo.RemoveMember(groupID, userID)
}

func (s *groupService) Cancel(ctx context.Context, groupID, requesterID string, isAdmin bool) error {
	group, err := s.repo.GetByID(groupID)
	if err != nil {
		return err
	}
	if !isAdmin && group.CreatorID != requesterID {
		return ErrNotCreator
	}

	if err := s.repo.MarkCancelled(groupID); err != nil {
		return err
	}
	metrics.Default.ObserveGroupResolved(model.StatusCancelled)
	s.fanOutFailure(ctx, group, "cancelled")
	return nil
}

// complete resolves a group as successful: price lock, order settlement,
// member notifications. The guarded MarkCompleted makes concurrent callers
// (join-at-cap racing the deadline sweep) settle exactly once.
func (s *groupService) complete(ctx context.Context, group *model.Group) error {
	finalPrice := catalogService.ResolvePrice(group.PriceTiers, group.CurrentCount, group.BasePrice)

	if err := s.repo.MarkCompleted(group.ID, finalPrice); err != nil {
		return err
	}
	metrics.Default.ObserveGroupResolved(model.StatusCompleted)

	if s.settler != nil {
		if err := s.settler.OnGroupCompleted(ctx, group.ID, finalPrice); err != nil {
			// The group stays completed; settlement retries per order.
			logger.Log.Error("Order settlement failed after group completion",
				zap.String("group_id", group.ID), zap.Error(err))
		}
	}

	s.notifyMembers(group.ID, notify.EventGroupCompleted, map[string]string{
		"group_id":    group.ID,
		"final_price": strconv.FormatFloat(finalPrice, 'f', 2, 64),
	})

	savings := group.BasePrice - finalPrice
	if savings > 0 {
		s.recordMemberSavings(group.ID, savings)
	}
	return nil
}

func (s *groupService) fail(ctx context.Context, group *model.Group) error {
	if err := s.repo.MarkFailed(group.ID); err != nil {
		return err
	}
	metrics.Default.ObserveGroupResolved(model.StatusFailed)
	s.fanOutFailure(ctx, group, "deadline reached below minimum")
	return nil
}

func (s *groupService) fanOutFailure(ctx context.Context, group *model.Group, reason string) {
	if s.settler != nil {
		if err := s.settler.OnGroupFailed(ctx, group.ID, reason); err != nil {
			logger.Log.Error("Hold release failed after group failure",
				zap.String("group_id", group.ID), zap.Error(err))
		}
	}
	s.notifyMembers(group.ID, notify.EventGroupFailed, map[string]string{
		"group_id": group.ID,
		"reason":   reason,
	})
}

func (s *groupService) notifyMembers(groupID string, eventType notify.EventType, data map[string]string) {
	members, err := s.repo.ListMembers(groupID)
	if err != nil {
		logger.Log.Warn("Failed to list members for notification",
			zap.String("group_id", groupID), zap.Error(err))
		return
	}
	for _, m := range members {
		notify.Publish(notify.Event{Type: eventType, UserID: m.UserID, Data: data})
	}
}

func (s *groupService) recordMemberSavings(groupID string, savings float64) {
	members, err := s.repo.ListMembers(groupID)
	if err != nil {
		return
	}
	for _, m := range members {
		if err := s.users.RecordStats(m.UserID, userRepo.StatsDelta{Savings: savings}); err != nil {
			logger.Log.Warn("Failed to record member savings",
				zap.String("user_id", m.UserID), zap.Error(err))
		}
	}
}

const sweepBatchSize = 100

func (s *groupService) ResolveExpired(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.Default.ObserveSweep(time.Since(start)) }()

	groups, err := s.repo.ListExpired(time.Now(), sweepBatchSize)
	if err != nil {
		return err
	}

	for i := range groups {
		group := &groups[i]
		if err := ctx.Err(); err != nil {
			return err
		}

		var resolveErr error
		if group.CurrentCount >= group.MinParticipants {
			resolveErr = s.complete(ctx, group)
		} else {
			resolveErr = s.fail(ctx, group)
		}
		// One stuck group must not block the rest of the sweep.
		if resolveErr != nil && !errors.Is(resolveErr, repository.ErrAlreadyResolved) {
			logger.Log.Error("Failed to resolve expired group",
				zap.String("group_id", group.ID),
				zap.String("status", group.Status),
				zap.Error(resolveErr))
		}
	}
	return nil
}

func (s *groupService) NotifyExpiring(ctx context.Context) error {
	now := time.Now()
	groups, err := s.repo.ListExpiring(now, now.Add(24*time.Hour), sweepBatchSize)
	if err != nil {
		return err
	}

	for i := range groups {
		group := &groups[i]
		needed := group.MinParticipants - group.CurrentCount
		if needed < 0 {
			needed = 0
		}
		s.notifyMembers(group.ID, notify.EventGroupExpiring, map[string]string{
			"group_id": group.ID,
			"deadline": group.Deadline.Format(time.RFC3339),
			"needed":   strconv.Itoa(needed),
		})
		if err := s.repo.MarkExpiryNotified(group.ID); err != nil {
			logger.Log.Warn("Failed to mark expiry notification",
				zap.String("group_id", group.ID), zap.Error(err))
		}
	}
	return nil
}
