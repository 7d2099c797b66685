package service

import (
	"context"
	"os"
	"testing"
	"time"

	catalogModel "groupbuy_backend/internal/domain/catalog/model"
	"groupbuy_backend/internal/domain/group/model"
	"groupbuy_backend/internal/domain/group/repository"
	userModel "groupbuy_backend/internal/domain/user/model"
	userRepo "groupbuy_backend/internal/domain/user/repository"
	userService "groupbuy_backend/internal/domain/user/service"
	"groupbuy_backend/internal/pkg/config"
	"groupbuy_backend/pkg/logger"
	baseModel "groupbuy_backend/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	config.GlobalConfig.Business = config.BusinessConfig{
		DefaultMinParticipants: 3,
		DefaultMaxParticipants: 100,
		DefaultDeadlineDays:    7,
	}
	os.Exit(m.Run())
}

// --- mocks ------------------------------------------------------------

type mockGroupRepo struct{ mock.Mock }

func (m *mockGroupRepo) Create(group *model.Group) error {
	args := m.Called(group)
	return args.Error(0)
}

func (m *mockGroupRepo) GetByID(id string) (*model.Group, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *mockGroupRepo) ListByProduct(productID, status string) ([]model.Group, error) {
	args := m.Called(productID, status)
	return args.Get(0).([]model.Group), args.Error(1)
}

func (m *mockGroupRepo) ListByUser(userID string) ([]model.Group, error) {
	args := m.Called(userID)
	return args.Get(0).([]model.Group), args.Error(1)
}

func (m *mockGroupRepo) HasActiveGroup(productID string) (bool, error) {
	args := m.Called(productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGroupRepo) AddMember(groupID, userID string) error {
	args := m.Called(groupID, userID)
	return args.Error(0)
}

func (m *mockGroupRepo) RemoveMember(groupID, userID string) error {
	args := m.Called(groupID, userID)
	return args.Error(0)
}

func (m *mockGroupRepo) IsMember(groupID, userID string) (bool, error) {
	args := m.Called(groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGroupRepo) ListMembers(groupID string) ([]model.GroupMember, error) {
	args := m.Called(groupID)
	return args.Get(0).([]model.GroupMember), args.Error(1)
}

func (m *mockGroupRepo) MarkCompleted(groupID string, finalPrice float64) error {
	args := m.Called(groupID, finalPrice)
	return args.Error(0)
}

func (m *mockGroupRepo) MarkFailed(groupID string) error {
	args := m.Called(groupID)
	return args.Error(0)
}

func (m *mockGroupRepo) MarkCancelled(groupID string) error {
	args := m.Called(groupID)
	return args.Error(0)
}

func (m *mockGroupRepo) ListExpired(now time.Time, limit int) ([]model.Group, error) {
	args := m.Called(now, limit)
	return args.Get(0).([]model.Group), args.Error(1)
}

func (m *mockGroupRepo) ListExpiring(from, to time.Time, limit int) ([]model.Group, error) {
	args := m.Called(from, to, limit)
	return args.Get(0).([]model.Group), args.Error(1)
}

func (m *mockGroupRepo) MarkExpiryNotified(groupID string) error {
	args := m.Called(groupID)
	return args.Error(0)
}

type mockProductRepo struct{ mock.Mock }

func (m *mockProductRepo) Create(product *catalogModel.Product) error {
	return m.Called(product).Error(0)
}

func (m *mockProductRepo) GetByID(id string) (*catalogModel.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogModel.Product), args.Error(1)
}

func (m *mockProductRepo) GetList(categoryID string, offset, limit int) ([]catalogModel.Product, int64, error) {
	args := m.Called(categoryID, offset, limit)
	return args.Get(0).([]catalogModel.Product), args.Get(1).(int64), args.Error(2)
}

func (m *mockProductRepo) Update(product *catalogModel.Product) error {
	return m.Called(product).Error(0)
}

func (m *mockProductRepo) ListCategories() ([]catalogModel.Category, error) {
	args := m.Called()
	return args.Get(0).([]catalogModel.Category), args.Error(1)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) GetUser(id string) (*userModel.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userModel.User), args.Error(1)
}

func (m *mockUserService) EnsureUser(telegramID int64, username, firstName, lastName string) (*userModel.User, error) {
	args := m.Called(telegramID, username, firstName, lastName)
	return args.Get(0).(*userModel.User), args.Error(1)
}

func (m *mockUserService) RecordStats(userID string, delta userRepo.StatsDelta) error {
	return m.Called(userID, delta).Error(0)
}

func (m *mockUserService) LevelProgress(userID string) (*userService.LevelProgress, error) {
	args := m.Called(userID)
	return args.Get(0).(*userService.LevelProgress), args.Error(1)
}

func (m *mockUserService) GetAddress(id string) (*userModel.Address, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userModel.Address), args.Error(1)
}

func (m *mockUserService) CreateAddress(address *userModel.Address) error {
	return m.Called(address).Error(0)
}

func (m *mockUserService) ListAddresses(userID string) ([]userModel.Address, error) {
	args := m.Called(userID)
	return args.Get(0).([]userModel.Address), args.Error(1)
}

func (m *mockUserService) TelegramID(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

type mockSettler struct{ mock.Mock }

func (m *mockSettler) OnGroupCompleted(ctx context.Context, groupID string, finalPrice float64) error {
	return m.Called(ctx, groupID, finalPrice).Error(0)
}

func (m *mockSettler) OnGroupFailed(ctx context.Context, groupID string, reason string) error {
	return m.Called(ctx, groupID, reason).Error(0)
}

func (m *mockSettler) HasOrder(groupID, userID string) (bool, error) {
	args := m.Called(groupID, userID)
	return args.Bool(0), args.Error(1)
}

// --- fixtures ---------------------------------------------------------

func testTiers() catalogModel.PriceTiers {
	return catalogModel.PriceTiers{
		{MinQuantity: 3, Price: 900},
		{MinQuantity: 5, Price: 800},
	}
}

func testProduct() *catalogModel.Product {
	return &catalogModel.Product{
		BaseModel:  baseModel.BaseModel{ID: "prod-1"},
		Name:       "Coffee beans 1kg",
		BasePrice:  1000,
		Stock:      50,
		IsActive:   true,
		PriceTiers: testTiers(),
	}
}

func testGroup(count int) *model.Group {
	return &model.Group{
		BaseModel:       baseModel.BaseModel{ID: "group-1"},
		ProductID:       "prod-1",
		CreatorID:       "creator-1",
		Status:          model.StatusActive,
		MinParticipants: 3,
		MaxParticipants: 5,
		CurrentCount:    count,
		Deadline:        time.Now().Add(24 * time.Hour),
		BasePrice:       1000,
		PriceTiers:      testTiers(),
	}
}

func newService() (*groupService, *mockGroupRepo, *mockProductRepo, *mockUserService, *mockSettler) {
	repo := new(mockGroupRepo)
	products := new(mockProductRepo)
	users := new(mockUserService)
	settler := new(mockSettler)

	svc := NewGroupService(repo, products, users).(*groupService)
	svc.SetSettler(settler)
	return svc, repo, products, users, settler
}

// --- tests ------------------------------------------------------------

func TestCreateGroup(t *testing.T) {
	t.Run("snapshots pricing and applies defaults", func(t *testing.T) {
		svc, repo, products, users, _ := newService()

		products.On("GetByID", "prod-1").Return(testProduct(), nil)
		repo.On("HasActiveGroup", "prod-1").Return(false, nil)
		repo.On("Create", mock.AnythingOfType("*model.Group")).Return(nil)
		users.On("RecordStats", "creator-1", userRepo.StatsDelta{GroupsOrganized: 1}).Return(nil)

		group, err := svc.Create("creator-1", CreateGroupInput{ProductID: "prod-1"})
		require.NoError(t, err)

		assert.Equal(t, 3, group.MinParticipants)
		assert.Equal(t, 100, group.MaxParticipants)
		assert.Equal(t, 1000.0, group.BasePrice)
		assert.Equal(t, testTiers(), group.PriceTiers)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), group.Deadline, time.Minute)
		repo.AssertExpectations(t)
		users.AssertExpectations(t)
	})

	t.Run("rejects inactive product", func(t *testing.T) {
		svc, _, products, _, _ := newService()
		product := testProduct()
		product.IsActive = false
		products.On("GetByID", "prod-1").Return(product, nil)

		_, err := svc.Create("creator-1", CreateGroupInput{ProductID: "prod-1"})
		assert.ErrorIs(t, err, ErrProductUnavailable)
	})

	t.Run("rejects second active group for the product", func(t *testing.T) {
		svc, repo, products, _, _ := newService()
		products.On("GetByID", "prod-1").Return(testProduct(), nil)
		repo.On("HasActiveGroup", "prod-1").Return(true, nil)

		_, err := svc.Create("creator-1", CreateGroupInput{ProductID: "prod-1"})
		assert.ErrorIs(t, err, ErrProductHasActive)
	})

	t.Run("rejects max below min", func(t *testing.T) {
		svc, repo, products, _, _ := newService()
		products.On("GetByID", "prod-1").Return(testProduct(), nil)
		repo.On("HasActiveGroup", "prod-1").Return(false, nil)

		_, err := svc.Create("creator-1", CreateGroupInput{ProductID: "prod-1", MaxParticipants: 2})
		assert.ErrorIs(t, err, ErrBadLimits)
	})
}

func TestJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful join returns fresh group", func(t *testing.T) {
		svc, repo, _, _, _ := newService()
		repo.On("AddMember", "group-1", "user-2").Return(nil)
		repo.On("GetByID", "group-1").Return(testGroup(2), nil)

		group, err := svc.Join(ctx, "group-1", "user-2")
		require.NoError(t, err)
		assert.Equal(t, 2, group.CurrentCount)
		repo.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
	})

	t.Run("full group surfaces the repository error", func(t *testing.T) {
		svc, repo, _, _, _ := newService()
		repo.On("AddMember", "group-1", "user-2").Return(repository.ErrGroupFull)

		_, err := svc.Join(ctx, "group-1", "user-2")
		assert.ErrorIs(t, err, repository.ErrGroupFull)
	})

	t.Run("double join surfaces the repository error", func(t *testing.T) {
		svc, repo, _, _, _ := newService()
		repo.On("AddMember", "group-1", "user-2").Return(repository.ErrAlreadyMember)

		_, err := svc.Join(ctx, "group-1", "user-2")
		assert.ErrorIs(t, err, repository.ErrAlreadyMember)
	})

	t.Run("resolved group refuses joins", func(t *testing.T) {
		svc, repo, _, _, _ := newService()
		repo.On("AddMember", "group-1", "user-2").Return(repository.ErrGroupNotActive)

		_, err := svc.Join(ctx, "group-1", "user-2")
		assert.ErrorIs(t, err, repository.ErrGroupNotActive)
	})

	t.Run("third join reaches the minimum and settles the group", func(t *testing.T) {
		svc, repo, _, users, settler := newService()

		// min is 3, max is 5: the group resolves as soon as the threshold
		// is met, not when it fills up. Tier price at 3 is 900.
		met := testGroup(3)
		completed := testGroup(3)
		completed.Status = model.StatusCompleted

		repo.On("AddMember", "group-1", "user-3").Return(nil)
		repo.On("GetByID", "group-1").Return(met, nil).Once()
		repo.On("MarkCompleted", "group-1", 900.0).Return(nil)
		settler.On("OnGroupCompleted", ctx, "group-1", 900.0).Return(nil)
		repo.On("ListMembers", "group-1").Return([]model.GroupMember{
			{GroupID: "group-1", UserID: "creator-1"},
			{GroupID: "group-1", UserID: "user-2"},
			{GroupID: "group-1", UserID: "user-3"},
		}, nil)
		users.On("RecordStats", mock.Anything, userRepo.StatsDelta{Savings: 100}).Return(nil)
		repo.On("GetByID", "group-1").Return(completed, nil).Once()

		group, err := svc.Join(ctx, "group-1", "user-3")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, group.Status)
		repo.AssertExpectations(t)
		settler.AssertExpectations(t)
	})

	t.Run("reaching the cap settles the group", func(t *testing.T) {
		svc, repo, _, users, settler := newService()

		full := testGroup(5) // max is 5, tier price at 5 is 800
		completed := testGroup(5)
		completed.Status = model.StatusCompleted

		repo.On("AddMember", "group-1", "user-5").Return(nil)
		repo.On("GetByID", "group-1").Return(full, nil).Once()
		repo.On("MarkCompleted", "group-1", 800.0).Return(nil)
		settler.On("OnGroupCompleted", ctx, "group-1", 800.0).Return(nil)
		repo.On("ListMembers", "group-1").Return([]model.GroupMember{
			{GroupID: "group-1", UserID: "creator-1"},
			{GroupID: "group-1", UserID: "user-5"},
		}, nil)
		users.On("RecordStats", mock.Anything, userRepo.StatsDelta{Savings: 200}).Return(nil)
		repo.On("GetByID", "group-1").Return(completed, nil).Once()

		group, err := svc.Join(ctx, "group-1", "user-5")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, group.Status)
		settler.AssertExpectations(t)
	})
}

func TestLeave(t *testing.T) {
	t.Run("member with a live order cannot leave", func(t *testing.T) {
		svc, repo, _, _, settler := newService()
		settler.On("HasOrder", "group-1", "user-2").Return(true, nil)

		err := svc.Leave("group-1", "user-2")
		assert.ErrorIs(t, err, ErrMemberHasOrder)
		repo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything)
	})

	t.Run("member without order leaves", func(t *testing.T) {
		svc, repo, _, _, settler := newService()
		settler.On("HasOrder", "group-1", "user-2").Return(false, nil)
		repo.On("RemoveMember", "group-1", "user-2").Return(nil)

		assert.NoError(t, svc.Leave("group-1", "user-2"))
		repo.AssertExpectations(t)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("only creator or admin may cancel", func(t *testing.T) {
		svc, repo, _, _, _ := newService()
		repo.On("GetByID", "group-1").Return(testGroup(2), nil)

		err := svc.Cancel(ctx, "group-1", "someone-else", false)
		assert.ErrorIs(t, err, ErrNotCreator)
	})

	t.Run("creator cancel releases holds", func(t *testing.T) {
		svc, repo, _, _, settler := newService()
		repo.On("GetByID", "group-1").Return(testGroup(2), nil)
		repo.On("MarkCancelled", "group-1").Return(nil)
		settler.On("OnGroupFailed", ctx, "group-1", "cancelled").Return(nil)
		repo.On("ListMembers", "group-1").Return([]model.GroupMember{}, nil)

		require.NoError(t, svc.Cancel(ctx, "group-1", "creator-1", false))
		settler.AssertExpectations(t)
	})

	t.Run("admin may cancel someone else's group", func(t *testing.T) {
		svc, repo, _, _, settler := newService()
		repo.On("GetByID", "group-1").Return(testGroup(2), nil)
		repo.On("MarkCancelled", "group-1").Return(nil)
		settler.On("OnGroupFailed", ctx, "group-1", "cancelled").Return(nil)
		repo.On("ListMembers", "group-1").Return([]model.GroupMember{}, nil)

		require.NoError(t, svc.Cancel(ctx, "group-1", "admin-1", true))
	})
}

func TestResolveExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("threshold met completes, below fails", func(t *testing.T) {
		svc, repo, _, users, settler := newService()

		met := testGroup(4) // >= min of 3, tier at 4 -> 900
		met.ID = "group-met"
		short := testGroup(2)
		short.ID = "group-short"

		repo.On("ListExpired", mock.AnythingOfType("time.Time"), sweepBatchSize).
			Return([]model.Group{*met, *short}, nil)

		repo.On("MarkCompleted", "group-met", 900.0).Return(nil)
		settler.On("OnGroupCompleted", ctx, "group-met", 900.0).Return(nil)
		repo.On("ListMembers", "group-met").Return([]model.GroupMember{
			{GroupID: "group-met", UserID: "creator-1"},
		}, nil)
		users.On("RecordStats", "creator-1", userRepo.StatsDelta{Savings: 100}).Return(nil)

		repo.On("MarkFailed", "group-short").Return(nil)
		settler.On("OnGroupFailed", ctx, "group-short", "deadline reached below minimum").Return(nil)
		repo.On("ListMembers", "group-short").Return([]model.GroupMember{}, nil)

		require.NoError(t, svc.ResolveExpired(ctx))
		repo.AssertExpectations(t)
		settler.AssertExpectations(t)
	})

	t.Run("already resolved group is skipped quietly", func(t *testing.T) {
		svc, repo, _, _, settler := newService()

		raced := testGroup(5)
		raced.ID = "group-raced"

		repo.On("ListExpired", mock.AnythingOfType("time.Time"), sweepBatchSize).
			Return([]model.Group{*raced}, nil)
		repo.On("MarkCompleted", "group-raced", 800.0).Return(repository.ErrAlreadyResolved)

		require.NoError(t, svc.ResolveExpired(ctx))
		settler.AssertNotCalled(t, "OnGroupCompleted", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNotifyExpiring(t *testing.T) {
	svc, repo, _, _, _ := newService()

	expiring := testGroup(2)
	repo.On("ListExpiring", mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]model.Group{*expiring}, nil)
	repo.On("ListMembers", "group-1").Return([]model.GroupMember{}, nil)
	repo.On("MarkExpiryNotified", "group-1").Return(nil)

	require.NoError(t, svc.NotifyExpiring(context.Background()))
	repo.AssertExpectations(t)
}
