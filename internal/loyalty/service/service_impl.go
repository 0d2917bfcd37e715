package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/clock"
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	"github.com/smallbiznis/loyalty/internal/loyalty/domain"
	"github.com/smallbiznis/loyalty/internal/observability/metrics"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/db"
	"github.com/smallbiznis/loyalty/pkg/db/pagination"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxTxRetries bounds internal retries of serialization conflicts before
// the failure is surfaced as concurrency_conflict.
const maxTxRetries = 3

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	CustomerRepo customerdomain.Repository
	TierRepo     tierdomain.Repository
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	customerRepo customerdomain.Repository
	tierRepo     tierdomain.Repository
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("loyalty.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		customerRepo: p.CustomerRepo,
		tierRepo:     p.TierRepo,
		metrics:      p.Metrics,
	}
}

// appendInput describes one ledger append. BonusDay is set only for
// birthday_bonus entries and drives the idempotent insert path.
type appendInput struct {
	Type          domain.TransactionType
	Points        int64
	Description   string
	RelatedSaleID *snowflake.ID
	BonusDay      string
}

type appendOutcome struct {
	Transaction    domain.PointsTransaction
	NewBalance     int64
	LifetimePoints int64
	NewTier        tierdomain.Tier
	Skipped        bool
}

func (s *Service) AwardForSale(ctx context.Context, req domain.AwardRequest) (domain.AwardResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.AwardResult{}, domain.ErrInvalidTenant
	}

	customerID, err := s.parseID(req.CustomerID)
	if err != nil {
		return domain.AwardResult{}, err
	}
	if req.SaleAmount < 0 {
		return domain.AwardResult{}, domain.ErrInvalidPoints
	}

	var saleID *snowflake.ID
	if strings.TrimSpace(req.SaleID) != "" {
		parsed, err := s.parseID(req.SaleID)
		if err != nil {
			return domain.AwardResult{}, err
		}
		saleID = &parsed
	}

	var result domain.AwardResult
	err = s.runInTx(ctx, func(tx *gorm.DB) error {
		customer, ladder, err := s.lockCustomer(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}

		unit := s.pointsPerUnit(ctx, tx, tenantID)
		basePoints := req.SaleAmount / unit

		multiplier := 1.0
		if cfg, ok := ladder.ForTier(customer.Tier); ok && cfg.PointsMultiplier > 1 {
			multiplier = cfg.PointsMultiplier
		}
		bonusPoints := int64(float64(basePoints) * (multiplier - 1))
		totalPoints := basePoints + bonusPoints

		if totalPoints == 0 {
			// Sales below the earning unit award nothing. Expected, not an error.
			result = domain.AwardResult{
				NewBalance: customer.CurrentBalance,
				NewTier:    customer.Tier,
			}
			return nil
		}

		outcome, err := s.appendLocked(ctx, tx, tenantID, customer, ladder, appendInput{
			Type:          domain.TransactionTypeEarned,
			Points:        totalPoints,
			Description:   fmt.Sprintf("sale award: %d base + %d bonus (%s tier)", basePoints, bonusPoints, customer.Tier),
			RelatedSaleID: saleID,
		})
		if err != nil {
			return err
		}

		result = domain.AwardResult{
			PointsAwarded: totalPoints,
			BasePoints:    basePoints,
			BonusPoints:   bonusPoints,
			NewBalance:    outcome.NewBalance,
			NewTier:       outcome.NewTier,
		}
		return nil
	})
	if err != nil {
		return domain.AwardResult{}, err
	}

	if s.metrics != nil {
		s.metrics.AddPointsIssued(string(domain.TransactionTypeEarned), result.PointsAwarded)
	}

	return result, nil
}

func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (domain.RedeemResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.RedeemResult{}, domain.ErrInvalidTenant
	}

	customerID, err := s.parseID(req.CustomerID)
	if err != nil {
		return domain.RedeemResult{}, err
	}
	if req.Points <= 0 {
		return domain.RedeemResult{}, domain.ErrInvalidPoints
	}
	if !req.RewardType.Valid() {
		return domain.RedeemResult{}, domain.ErrInvalidRewardType
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("redeemed %d points for %s", req.Points, req.RewardType)
	}

	var result domain.RedeemResult
	err = s.runInTx(ctx, func(tx *gorm.DB) error {
		customer, ladder, err := s.lockCustomer(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}

		outcome, err := s.appendLocked(ctx, tx, tenantID, customer, ladder, appendInput{
			Type:        domain.TransactionTypeRedeemed,
			Points:      -req.Points,
			Description: description,
		})
		if err != nil {
			return err
		}

		// The reward record and the debit commit or abort together.
		reward := domain.LoyaltyReward{
			ID:          s.genID.Generate(),
			TenantID:    tenantID,
			CustomerID:  customerID,
			PointsCost:  req.Points,
			RewardType:  req.RewardType,
			RewardValue: req.RewardValue,
			RedeemedAt:  s.clock.Now(),
		}
		if err := tx.WithContext(ctx).Create(&reward).Error; err != nil {
			return fmt.Errorf("failed to insert loyalty reward: %w", err)
		}

		result = domain.RedeemResult{
			Reward:     reward,
			NewBalance: outcome.NewBalance,
		}
		return nil
	})
	if err != nil {
		return domain.RedeemResult{}, err
	}

	if s.metrics != nil {
		s.metrics.AddPointsRedeemed(string(domain.TransactionTypeRedeemed), req.Points)
	}

	return result, nil
}

func (s *Service) Adjust(ctx context.Context, req domain.AdjustRequest) (domain.AdjustResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.AdjustResult{}, domain.ErrInvalidTenant
	}

	customerID, err := s.parseID(req.CustomerID)
	if err != nil {
		return domain.AdjustResult{}, err
	}
	if req.Points == 0 {
		return domain.AdjustResult{}, domain.ErrInvalidPoints
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.AdjustResult{}, domain.ErrInvalidPoints
	}

	var result domain.AdjustResult
	err = s.runInTx(ctx, func(tx *gorm.DB) error {
		customer, ladder, err := s.lockCustomer(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}

		outcome, err := s.appendLocked(ctx, tx, tenantID, customer, ladder, appendInput{
			Type:        domain.TransactionTypeAdjusted,
			Points:      req.Points,
			Description: description,
		})
		if err != nil {
			return err
		}

		result = domain.AdjustResult{
			Transaction: outcome.Transaction,
			NewBalance:  outcome.NewBalance,
			NewTier:     outcome.NewTier,
		}
		return nil
	})
	if err != nil {
		return domain.AdjustResult{}, err
	}

	if s.metrics != nil {
		if req.Points > 0 {
			s.metrics.AddPointsIssued(string(domain.TransactionTypeAdjusted), req.Points)
		} else {
			s.metrics.AddPointsRedeemed(string(domain.TransactionTypeAdjusted), -req.Points)
		}
	}

	return result, nil
}

func (s *Service) AwardBirthdayBonus(ctx context.Context, customerID snowflake.ID, day time.Time) (domain.BirthdayBonusResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.BirthdayBonusResult{}, domain.ErrInvalidTenant
	}
	if customerID == 0 {
		return domain.BirthdayBonusResult{}, domain.ErrInvalidID
	}

	bonusDay := day.UTC().Format("2006-01-02")

	var result domain.BirthdayBonusResult
	err := s.runInTx(ctx, func(tx *gorm.DB) error {
		customer, ladder, err := s.lockCustomer(ctx, tx, tenantID, customerID)
		if err != nil {
			return err
		}

		cfg, ok := ladder.ForTier(customer.Tier)
		if !ok || cfg.BirthdayBonus <= 0 {
			result = domain.BirthdayBonusResult{
				CustomerID: customerID,
				Tier:       customer.Tier,
				Skipped:    true,
				Reason:     "no birthday bonus configured for tier",
			}
			return nil
		}

		outcome, err := s.appendLocked(ctx, tx, tenantID, customer, ladder, appendInput{
			Type:        domain.TransactionTypeBirthdayBonus,
			Points:      cfg.BirthdayBonus,
			Description: fmt.Sprintf("birthday bonus (%s tier)", customer.Tier),
			BonusDay:    bonusDay,
		})
		if err != nil {
			return err
		}
		if outcome.Skipped {
			result = domain.BirthdayBonusResult{
				CustomerID: customerID,
				Tier:       customer.Tier,
				Skipped:    true,
				Reason:     "already awarded today",
			}
			return nil
		}

		result = domain.BirthdayBonusResult{
			CustomerID:    customerID,
			PointsAwarded: cfg.BirthdayBonus,
			NewBalance:    outcome.NewBalance,
			Tier:          outcome.NewTier,
		}
		return nil
	})
	if err != nil {
		return domain.BirthdayBonusResult{}, err
	}

	if s.metrics != nil && !result.Skipped {
		s.metrics.AddPointsIssued(string(domain.TransactionTypeBirthdayBonus), result.PointsAwarded)
	}

	return result, nil
}

func (s *Service) Balance(ctx context.Context, customerID string) (domain.BalanceResult, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.BalanceResult{}, domain.ErrInvalidTenant
	}

	id, err := s.parseID(customerID)
	if err != nil {
		return domain.BalanceResult{}, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.BalanceResult{}, err
	}
	if customer == nil {
		return domain.BalanceResult{}, domain.ErrCustomerNotFound
	}

	return domain.BalanceResult{
		CustomerID:     customer.ID,
		CurrentBalance: customer.CurrentBalance,
		LifetimePoints: customer.LifetimePoints,
		Tier:           customer.Tier,
	}, nil
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) (domain.HistoryResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.HistoryResponse{}, domain.ErrInvalidTenant
	}

	id, err := s.parseID(req.CustomerID)
	if err != nil {
		return domain.HistoryResponse{}, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.HistoryResponse{}, err
	}
	if customer == nil {
		return domain.HistoryResponse{}, domain.ErrCustomerNotFound
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.PointsTransaction{}).
		Where("tenant_id = ? AND customer_id = ?", tenantID, id)
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.HistoryResponse{}, err
		}
		if cursor.ID != "" {
			afterID, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return domain.HistoryResponse{}, domain.ErrInvalidID
			}
			// Snowflake ids are time-ordered, so the id alone is a stable
			// cursor regardless of how the dialect stores timestamps.
			stmt = stmt.Where("id < ?", afterID)
		}
	}

	var items []*domain.PointsTransaction
	err = stmt.
		Order("id desc").
		Limit(int(pageSize) + 1).
		Find(&items).Error
	if err != nil {
		return domain.HistoryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(tx *domain.PointsTransaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: tx.ID.String(),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	transactions := make([]domain.PointsTransaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		transactions = append(transactions, *item)
	}

	resp := domain.HistoryResponse{Transactions: transactions}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Settings{}, domain.ErrInvalidTenant
	}

	var settings domain.Settings
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM loyalty_settings WHERE tenant_id = ?`,
		tenantID,
	).Scan(&settings).Error
	if err != nil {
		return domain.Settings{}, err
	}
	if settings.TenantID == 0 {
		return domain.Settings{
			TenantID:      tenantID,
			PointsPerUnit: domain.DefaultPointsPerUnit,
		}, nil
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.UpdateSettingsRequest) (domain.Settings, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Settings{}, domain.ErrInvalidTenant
	}
	if req.PointsPerUnit <= 0 {
		return domain.Settings{}, domain.ErrInvalidPoints
	}

	settings := domain.Settings{
		TenantID:      tenantID,
		PointsPerUnit: req.PointsPerUnit,
		UpdatedAt:     s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points_per_unit", "updated_at"}),
	}).Create(&settings).Error
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to upsert loyalty settings: %w", err)
	}

	s.log.Info("loyalty settings updated",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("points_per_unit", req.PointsPerUnit),
	)
	return settings, nil
}

// lockCustomer locks the customer row for the transaction and loads the
// tenant's tier ladder. A tenant mismatch reads as not found so customer
// existence does not leak across tenants.
func (s *Service) lockCustomer(ctx context.Context, tx *gorm.DB, tenantID, customerID snowflake.ID) (*customerdomain.Customer, tierdomain.Ladder, error) {
	customer, err := s.customerRepo.FindForUpdate(ctx, tx, tenantID, customerID)
	if err != nil {
		return nil, nil, err
	}
	if customer == nil {
		return nil, nil, domain.ErrCustomerNotFound
	}
	if !customer.IsActive {
		return nil, nil, domain.ErrCustomerInactive
	}

	ladder, err := s.tierRepo.Ladder(ctx, tx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if len(ladder) == 0 {
		ladder = tierdomain.DefaultLadder()
	}

	return customer, ladder, nil
}

// appendLocked is the append-and-project primitive: insert the ledger row,
// move the balance, bump lifetime points on credits, and reclassify the
// tier, all against a customer row already locked in tx. The four steps
// commit or abort together.
func (s *Service) appendLocked(
	ctx context.Context,
	tx *gorm.DB,
	tenantID snowflake.ID,
	customer *customerdomain.Customer,
	ladder tierdomain.Ladder,
	in appendInput,
) (appendOutcome, error) {
	if err := validateEntry(in.Type, in.Points); err != nil {
		return appendOutcome{}, err
	}

	if in.Points < 0 && customer.CurrentBalance+in.Points < 0 {
		return appendOutcome{}, &domain.InsufficientPointsError{
			Available: customer.CurrentBalance,
			Requested: -in.Points,
		}
	}

	entry := domain.PointsTransaction{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		CustomerID:    customer.ID,
		Type:          in.Type,
		Points:        in.Points,
		RelatedSaleID: in.RelatedSaleID,
		Description:   in.Description,
		CreatedAt:     s.clock.Now(),
	}

	stmt := tx.WithContext(ctx)
	if in.BonusDay != "" {
		bonusDay := in.BonusDay
		entry.BonusDay = &bonusDay
		// The unique index over (tenant_id, customer_id, type, bonus_day)
		// turns a duplicate daily bonus into a no-op instead of a race.
		stmt = stmt.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"},
				{Name: "customer_id"},
				{Name: "type"},
				{Name: "bonus_day"},
			},
			DoNothing: true,
		})
	}

	res := stmt.Create(&entry)
	if res.Error != nil {
		if in.BonusDay != "" && db.IsDuplicateKeyErr(res.Error) {
			return appendOutcome{Skipped: true}, nil
		}
		return appendOutcome{}, fmt.Errorf("failed to insert points transaction: %w", res.Error)
	}
	if in.BonusDay != "" && res.RowsAffected == 0 {
		s.log.Info("birthday bonus already recorded for day",
			zap.String("customer_id", customer.ID.String()),
			zap.String("bonus_day", in.BonusDay),
		)
		return appendOutcome{Skipped: true}, nil
	}

	newBalance := customer.CurrentBalance + in.Points
	lifetime := customer.LifetimePoints
	if in.Points > 0 {
		lifetime += in.Points
	}

	// Tier only ever moves up: the classifier reports the qualifying tier
	// and the current tier wins when it outranks it.
	newTier := tierdomain.Classify(lifetime, ladder)
	if !newTier.Outranks(customer.Tier) {
		newTier = customer.Tier
	}

	err := s.customerRepo.UpdateProjection(ctx, tx, tenantID, customer.ID, customerdomain.Projection{
		CurrentBalance: newBalance,
		LifetimePoints: lifetime,
		Tier:           newTier,
	})
	if err != nil {
		return appendOutcome{}, fmt.Errorf("failed to update balance projection: %w", err)
	}

	customer.CurrentBalance = newBalance
	customer.LifetimePoints = lifetime
	customer.Tier = newTier

	return appendOutcome{
		Transaction:    entry,
		NewBalance:     newBalance,
		LifetimePoints: lifetime,
		NewTier:        newTier,
	}, nil
}

func validateEntry(txType domain.TransactionType, points int64) error {
	switch txType {
	case domain.TransactionTypeEarned, domain.TransactionTypeBirthdayBonus:
		if points <= 0 {
			return domain.ErrInvalidTransactionType
		}
	case domain.TransactionTypeRedeemed:
		if points >= 0 {
			return domain.ErrInvalidTransactionType
		}
	case domain.TransactionTypeAdjusted:
		if points == 0 {
			return domain.ErrInvalidTransactionType
		}
	default:
		return domain.ErrInvalidTransactionType
	}
	return nil
}

// runInTx executes fn in a transaction, retrying bounded times on lock or
// serialization failures before surfacing concurrency_conflict.
func (s *Service) runInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !db.IsSerializationErr(err) {
			return err
		}
		s.log.Warn("retrying transaction after serialization conflict",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, err)
}

func (s *Service) pointsPerUnit(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) int64 {
	var settings domain.Settings
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM loyalty_settings WHERE tenant_id = ?`,
		tenantID,
	).Scan(&settings).Error
	if err != nil || settings.PointsPerUnit <= 0 {
		return domain.DefaultPointsPerUnit
	}
	return settings.PointsPerUnit
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
