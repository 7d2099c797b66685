package service

import (
	"groupbuy_backend/internal/domain/user/model"
	"groupbuy_backend/internal/domain/user/repository"
	"groupbuy_backend/internal/pkg/notify"
)

// UserService exposes profile reads and the stat/level side effects the
// settlement flow applies.
type UserService interface {
	GetUser(id string) (*model.User, error)
	EnsureUser(telegramID int64, username, firstName, lastName string) (*model.User, error)
	// RecordStats applies the delta and re-evaluates the loyalty level.
	RecordStats(userID string, delta repository.StatsDelta) error
	LevelProgress(userID string) (*LevelProgress, error)
	GetAddress(id string) (*model.Address, error)
	CreateAddress(address *model.Address) error
	ListAddresses(userID string) ([]model.Address, error)
	// TelegramID implements notify.ChatResolver.
	TelegramID(userID string) (int64, error)
}

// levelRequirement is the entry gate for one loyalty level.
type levelRequirement struct {
	level   string
	orders  int
	invited int
}

// Ordered lowest to highest; a user holds the highest level whose
// requirements are met. Thresholds mirror the storefront's loyalty program.
var levelLadder = []levelRequirement{
	{level: model.LevelNewcomer, orders: 0, invited: 0},
	{level: model.LevelBuyer, orders: 3, invited: 0},
	{level: model.LevelActivist, orders: 10, invited: 20},
	{level: model.LevelExpert, orders: 25, invited: 0},
	{level: model.LevelAmbassador, orders: 50, invited: 0},
}

// LevelProgress is the profile read model for the loyalty widget.
type LevelProgress struct {
	Level           string  `json:"level"`
	NextLevel       string  `json:"next_level,omitempty"`
	Progress        float64 `json:"progress"` // 0..1 towards the next level
	TotalOrders     int     `json:"total_orders"`
	TotalSavings    float64 `json:"total_savings"`
	InvitedCount    int     `json:"invited_count"`
	GroupsOrganized int     `json:"groups_organized"`
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) GetUser(id string) (*model.User, error) {
	return s.repo.GetByID(id)
}

// EnsureUser creates the local row for a telegram identity on first contact.
func (s *userService) EnsureUser(telegramID int64, username, firstName, lastName string) (*model.User, error) {
	user, err := s.repo.GetByTelegramID(telegramID)
	if err == nil {
		return user, nil
	}

	user = &model.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		Role:       model.RoleUser,
		Level:      model.LevelNewcomer,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) RecordStats(userID string, delta repository.StatsDelta) error {
	if err := s.repo.IncrementStats(userID, delta); err != nil {
		return err
	}
	return s.checkAndUpdateLevel(userID)
}

// checkAndUpdateLevel promotes the user if the counters now satisfy a higher
// level. Demotion never happens: counters only grow.
func (s *userService) checkAndUpdateLevel(userID string) error {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return err
	}

	earned := computeLevel(user.TotalOrders, user.InvitedCount)
	if earned == user.Level || levelIndex(earned) < levelIndex(user.Level) {
		return nil
	}

	if err := s.repo.UpdateLevel(userID, earned); err != nil {
		return err
	}

	notify.Publish(notify.Event{
		Type:   notify.EventLevelUp,
		UserID: userID,
		Data:   map[string]string{"level": earned},
	})
	return nil
}

func computeLevel(orders, invited int) string {
	level := model.LevelNewcomer
	for _, req := range levelLadder {
		if orders >= req.orders && invited >= req.invited {
			level = req.level
		}
	}
	return level
}

func levelIndex(level string) int {
	for i, req := range levelLadder {
		if req.level == level {
			return i
		}
	}
	return 0
}

func (s *userService) LevelProgress(userID string) (*LevelProgress, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	progress := &LevelProgress{
		Level:           user.Level,
		Progress:        1,
		TotalOrders:     user.TotalOrders,
		TotalSavings:    user.TotalSavings,
		InvitedCount:    user.InvitedCount,
		GroupsOrganized: user.GroupsOrganized,
	}

	idx := levelIndex(user.Level)
	if idx+1 < len(levelLadder) {
		next := levelLadder[idx+1]
		progress.NextLevel = next.level
		if next.orders > 0 {
			progress.Progress = float64(user.TotalOrders) / float64(next.orders)
			if progress.Progress > 1 {
				progress.Progress = 1
			}
		}
	}
	return progress, nil
}

func (s *userService) GetAddress(id string) (*model.Address, error) {
	return s.repo.GetAddress(id)
}

func (s *userService) CreateAddress(address *model.Address) error {
	return s.repo.CreateAddress(address)
}

func (s *userService) ListAddresses(userID string) ([]model.Address, error) {
	return s.repo.ListAddresses(userID)
}

func (s *userService) TelegramID(userID string) (int64, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return 0, err
	}
	return user.TelegramID, nil
}
