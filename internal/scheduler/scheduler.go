package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/clock"
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/loyalty/internal/loyalty/domain"
	"github.com/smallbiznis/loyalty/internal/observability/metrics"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler requires db, logger, loyalty service, customer repository and clock")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	LoyaltySvc   loyaltydomain.Service
	CustomerRepo customerdomain.Repository
	Clock        clock.Clock
	Metrics      *metrics.Metrics `optional:"true"`
	Config       Config           `optional:"true"`
}

// Scheduler runs the recurring loyalty jobs. It holds no state between
// invocations beyond what it reads from the store; the timer loop lives
// in the entrypoint, and RunOnce is safe to trigger externally.
type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	loyaltySvc   loyaltydomain.Service
	customerRepo customerdomain.Repository
	clock        clock.Clock
	metrics      *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.LoyaltySvc == nil || p.CustomerRepo == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		loyaltySvc:   p.LoyaltySvc,
		customerRepo: p.CustomerRepo,
		clock:        p.Clock,
		metrics:      p.Metrics,
	}, nil
}

// BirthdayItemResult records the outcome for one customer in a run.
type BirthdayItemResult struct {
	CustomerID    snowflake.ID `json:"customer_id"`
	PointsAwarded int64        `json:"points_awarded,omitempty"`
	Skipped       bool         `json:"skipped,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// BirthdayRunResult aggregates a birthday bonus run for one tenant.
type BirthdayRunResult struct {
	TenantID     snowflake.ID         `json:"tenant_id"`
	AwardedCount int                  `json:"awarded_count"`
	SkippedCount int                  `json:"skipped_count"`
	FailedCount  int                  `json:"failed_count"`
	Results      []BirthdayItemResult `json:"results"`
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "birthday_bonuses", s.cfg.JobTimeout, func(ctx context.Context) error {
		_, err := s.RunBirthdayBonuses(ctx, 0)
		return err
	})
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if s.metrics != nil {
		s.metrics.IncJobRun(name)
		defer func() {
			s.metrics.ObserveJobDuration(name, time.Since(start))
		}()
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return err
}

// RunBirthdayBonuses awards the tier-sized birthday bonus to every active
// customer born today. Safe to invoke more than once per day: the ledger's
// per-day unique constraint turns duplicates into skips. A tenantID of 0
// runs every tenant. One customer's failure never aborts the rest.
func (s *Scheduler) RunBirthdayBonuses(ctx context.Context, tenantID snowflake.ID) ([]BirthdayRunResult, error) {
	tenants := []snowflake.ID{tenantID}
	if tenantID == 0 {
		var err error
		tenants, err = s.listTenants(ctx)
		if err != nil {
			return nil, err
		}
	}

	today := s.clock.Now()
	results := make([]BirthdayRunResult, 0, len(tenants))
	var jobErr error

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		run, err := s.runBirthdayBonusesForTenant(ctx, tenant, today)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		results = append(results, run)
	}

	return results, jobErr
}

func (s *Scheduler) runBirthdayBonusesForTenant(ctx context.Context, tenantID snowflake.ID, today time.Time) (BirthdayRunResult, error) {
	run := BirthdayRunResult{TenantID: tenantID}
	log := s.log.With(
		zap.String("job", "birthday_bonuses"),
		zap.String("tenant_id", tenantID.String()),
		zap.String("day", today.UTC().Format("2006-01-02")),
	)

	customers, err := s.customerRepo.FindBirthdays(ctx, s.db, tenantID, today)
	if err != nil {
		log.Error("failed to list birthday customers", zap.Error(err))
		return run, err
	}

	tenantCtx := tenantctx.WithTenantID(ctx, tenantID)
	for _, customer := range customers {
		if customer == nil {
			continue
		}
		if ctx.Err() != nil {
			return run, ctx.Err()
		}

		item, err := s.loyaltySvc.AwardBirthdayBonus(tenantCtx, customer.ID, today)
		if err != nil {
			// Per-item failure: record and keep going. Batch jobs never
			// abort sibling customers.
			run.FailedCount++
			run.Results = append(run.Results, BirthdayItemResult{
				CustomerID: customer.ID,
				Error:      err.Error(),
			})
			if s.metrics != nil {
				s.metrics.IncJobError("birthday_bonuses")
			}
			log.Warn("birthday bonus failed",
				zap.String("customer_id", customer.ID.String()),
				zap.Error(err),
			)
			continue
		}

		if item.Skipped {
			run.SkippedCount++
			run.Results = append(run.Results, BirthdayItemResult{
				CustomerID: customer.ID,
				Skipped:    true,
				Reason:     item.Reason,
			})
			if s.metrics != nil {
				s.metrics.IncJobSkip("birthday_bonuses")
			}
			continue
		}

		run.AwardedCount++
		run.Results = append(run.Results, BirthdayItemResult{
			CustomerID:    customer.ID,
			PointsAwarded: item.PointsAwarded,
		})
	}

	log.Info("birthday bonus run finished",
		zap.Int("awarded", run.AwardedCount),
		zap.Int("skipped", run.SkippedCount),
		zap.Int("failed", run.FailedCount),
	)

	return run, nil
}

func (s *Scheduler) listTenants(ctx context.Context) ([]snowflake.ID, error) {
	var tenants []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT tenant_id FROM customers ORDER BY tenant_id`,
	).Scan(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}
