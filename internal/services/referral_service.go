package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/presale-platform/backend/internal/config"
	"github.com/presale-platform/backend/internal/models"
	"github.com/presale-platform/backend/internal/repositories"
)

// referralGraph is the slice of the user repository the resolver needs.
type referralGraph interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetReferrer(ctx context.Context, refereeID, referrerID uuid.UUID) (bool, error)
	GetReferrerID(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
	GetDirectReferees(ctx context.Context, referrerIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

type purchaseTotals interface {
	TotalsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]repositories.UserPurchaseTotal, error)
}

type payoutLedger interface {
	PayoutTotals(ctx context.Context, referrerID uuid.UUID) (paid, pending string, err error)
}

type ReferralService struct {
	users     referralGraph
	purchases purchaseTotals
	payouts   payoutLedger
	audit     auditor
	cfg       *config.Config
	log       *zap.Logger
}

func NewReferralService(
	users referralGraph,
	purchases purchaseTotals,
	payouts payoutLedger,
	audit auditor,
	cfg *config.Config,
	log *zap.Logger,
) *ReferralService {
	return &ReferralService{
		users:     users,
		purchases: purchases,
		payouts:   payouts,
		audit:     audit,
		cfg:       cfg,
		log:       log,
	}
}

// Ancestor is one hop of a referral chain walked upward.
type Ancestor struct {
	UserID uuid.UUID
	Level  int // 1 = direct referrer
}

// AncestorsOf walks the referrer chain upward to maxLevel hops. The walk
// is iterative and keeps a visited set, so a corrupted graph cannot hang
// the caller.
func (s *ReferralService) AncestorsOf(ctx context.Context, userID uuid.UUID, maxLevel int) ([]Ancestor, error) {
	if maxLevel <= 0 {
		maxLevel = s.cfg.MaxReferralDepth
	}

	visited := map[uuid.UUID]bool{userID: true}
	var ancestors []Ancestor

	current := userID
	for level := 1; level <= maxLevel; level++ {
		parent, err := s.users.GetReferrerID(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("walk referrer chain: %w", err)
		}
		if parent == nil {
			break
		}
		if visited[*parent] {
			s.log.Error("referral cycle detected during walk",
				zap.String("user_id", userID.String()),
				zap.String("repeated", parent.String()),
			)
			break
		}
		visited[*parent] = true
		ancestors = append(ancestors, Ancestor{UserID: *parent, Level: level})
		current = *parent
	}
	return ancestors, nil
}

// DescendantsByLevel collects the referral subtree grouped by depth, one
// batched query per level.
func (s *ReferralService) DescendantsByLevel(ctx context.Context, userID uuid.UUID, maxLevel int) (map[int][]uuid.UUID, error) {
	if maxLevel <= 0 {
		maxLevel = s.cfg.MaxReferralDepth
	}

	visited := map[uuid.UUID]bool{userID: true}
	result := make(map[int][]uuid.UUID)
	frontier := []uuid.UUID{userID}

	for level := 1; level <= maxLevel && len(frontier) > 0; level++ {
		children, err := s.users.GetDirectReferees(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("expand referral level %d: %w", level, err)
		}

		var next []uuid.UUID
		for _, parent := range frontier {
			for _, child := range children[parent] {
				if visited[child] {
					continue
				}
				visited[child] = true
				result[level] = append(result[level], child)
				next = append(next, child)
			}
		}
		frontier = next
	}
	return result, nil
}

// LinkReferrer attaches a referee to the owner of a referral code. The
// edge is write-once and the chain above the referrer is checked so the
// new edge cannot close a cycle.
func (s *ReferralService) LinkReferrer(ctx context.Context, refereeID uuid.UUID, code string) (*models.User, error) {
	referrer, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("referral code not found")
	}
	if referrer.ID == refereeID {
		return nil, fmt.Errorf("self-referral is not allowed")
	}

	referee, err := s.users.GetByID(ctx, refereeID)
	if err != nil {
		return nil, err
	}
	if referee.ReferrerID != nil {
		return nil, fmt.Errorf("referrer already set")
	}

	// Walk the full chain above the referrer. Finding the referee there
	// means the new edge would close a loop.
	chain, err := s.AncestorsOf(ctx, referrer.ID, s.cfg.MaxReferralDepth*10)
	if err != nil {
		return nil, err
	}
	for _, a := range chain {
		if a.UserID == refereeID {
			return nil, fmt.Errorf("referral link would create a cycle")
		}
	}

	won, err := s.users.SetReferrer(ctx, refereeID, referrer.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("referrer already set")
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &refereeID,
		ActorType:   "user",
		Action:      "referral_linked",
		EntityType:  "user",
		EntityID:    &refereeID,
		Meta:        map[string]any{"referrer_id": referrer.ID.String(), "code": code},
	})

	return referrer, nil
}

// Stats aggregates a referrer's subtree into the per-level earnings report.
func (s *ReferralService) Stats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
	byLevel, err := s.DescendantsByLevel(ctx, userID, s.cfg.MaxReferralDepth)
	if err != nil {
		return nil, err
	}

	stats := &models.ReferralStats{}
	totalEarnings := decimal.Zero

	for level := 1; level <= s.cfg.MaxReferralDepth; level++ {
		referees := byLevel[level]
		if len(referees) == 0 {
			continue
		}

		entry := models.LevelEarnings{
			Level:    level,
			Referees: len(referees),
		}
		stats.TotalReferees += len(referees)

		totals, err := s.purchases.TotalsByUsers(ctx, referees)
		if err != nil {
			return nil, fmt.Errorf("aggregate level %d purchases: %w", level, err)
		}

		bought := decimal.Zero
		for _, t := range totals {
			entry.Purchases += t.Purchases
			tokens, err := decimal.NewFromString(t.Tokens)
			if err != nil {
				continue
			}
			bought = bought.Add(tokens)
		}

		rate := decimal.New(int64(s.cfg.ReferralRateBPS(level)), -4)
		bonus := bought.Mul(rate)

		entry.TokensBought = bought.String()
		entry.BonusTokens = bonus.String()
		totalEarnings = totalEarnings.Add(bonus)
		stats.Levels = append(stats.Levels, entry)
	}

	paid, pending, err := s.payouts.PayoutTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("payout totals: %w", err)
	}
	stats.TotalEarnings = totalEarnings.String()
	stats.PaidOut = paid
	stats.PendingPayout = pending
	return stats, nil
}
