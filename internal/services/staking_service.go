package services

import (
	"context"
	"fmt"
	"math/big"

	"dex-backend/internal/dto"
	"dex-backend/internal/events"
	"dex-backend/internal/metrics"
	"dex-backend/internal/models"
	"dex-backend/internal/repository"
	"dex-backend/internal/types"
	"dex-backend/internal/utils"

	"github.com/sirupsen/logrus"
)

// StakingService applies watch tower staking deltas and serves the staking views
type StakingService struct {
	store     repository.Store
	publisher events.Publisher
	logger    *logrus.Logger
}

// NewStakingService creates a StakingService
func NewStakingService(store repository.Store, publisher events.Publisher, logger *logrus.Logger) *StakingService {
	return &StakingService{store: store, publisher: publisher, logger: logger}
}

// slotAndChain parses the slot and chain_id pair shared by every staking request
func slotAndChain(slot, chainID *uint64) (uint64, uint64, error) {
	if slot == nil {
		return 0, 0, types.NewFieldError("slot", types.ErrMissingField)
	}
	var p fieldParser
	chain := p.chainID("chain_id", chainID)
	return *slot, chain, p.err
}

// ApplyStake adds amount to the user's stake for (slot, chain), or subtracts it when withdraw is 1
func (s *StakingService) ApplyStake(ctx context.Context, req *dto.StakingRequest) (*models.StakingEntry, error) {
	if err := requireFields(
		presence{"address", req.Address != ""},
		presence{"amount", req.Amount != ""},
		presence{"slot", req.Slot != nil},
		presence{"chain_id", req.ChainID != nil},
	); err != nil {
		return nil, rejected(err)
	}
	var p fieldParser
	user := p.checksumAddress("address", req.Address)
	amount := p.decimal("amount", req.Amount)
	if p.err != nil {
		return nil, rejected(p.err)
	}
	slot, chainID, err := slotAndChain(req.Slot, req.ChainID)
	if err != nil {
		return nil, rejected(err)
	}

	delta := new(big.Int).Set(amount)
	kind := "stake"
	if req.Withdraw != nil {
		switch *req.Withdraw {
		case 0:
		case 1:
			delta.Neg(delta)
			kind = "unstake"
		default:
			return nil, rejected(types.NewFieldError("withdraw", types.ErrWrongType))
		}
	}

	var entry *models.StakingEntry
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().Ensure(ctx, user.Hex()); err != nil {
			return fmt.Errorf("failed to provision staker: %w", err)
		}
		e, err := tx.Staking().AddStake(ctx, user.Hex(), slot, chainID, delta)
		if err != nil {
			return fmt.Errorf("failed to apply stake: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StakingDeltas.WithLabelValues(kind).Inc()
	s.logger.WithFields(logrus.Fields{
		"address":  user.Hex(),
		"slot":     slot,
		"chain_id": chainID,
		"delta":    delta.String(),
	}).Info("Stake applied")

	s.publish(ctx, events.Message{
		Group: events.ChainGroup(chainID),
		Tag:   events.TagNewStacking,
		Payload: map[string]interface{}{
			"address":  user.Hex(),
			"slot":     slot,
			"chain_id": chainID,
			"amount":   utils.FormatDecimal(delta),
			"total":    entry.Amount.String(),
		},
	})
	return entry, nil
}

// ApplyFees adds collected fees for (token, slot, chain)
func (s *StakingService) ApplyFees(ctx context.Context, req *dto.StakingFeesRequest) (*models.StakingFeesEntry, error) {
	if err := requireFields(
		presence{"token", req.Token != ""},
		presence{"amount", req.Amount != ""},
		presence{"slot", req.Slot != nil},
		presence{"chain_id", req.ChainID != nil},
	); err != nil {
		return nil, rejected(err)
	}
	var p fieldParser
	token := p.address("token", req.Token)
	amount := p.decimal("amount", req.Amount)
	if p.err != nil {
		return nil, rejected(p.err)
	}
	slot, chainID, err := slotAndChain(req.Slot, req.ChainID)
	if err != nil {
		return nil, rejected(err)
	}

	entry, err := s.store.Staking().AddFees(ctx, token.Hex(), slot, chainID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to apply fees: %w", err)
	}

	metrics.StakingDeltas.WithLabelValues("fees").Inc()
	s.logger.WithFields(logrus.Fields{
		"token":    token.Hex(),
		"slot":     slot,
		"chain_id": chainID,
		"amount":   amount.String(),
	}).Info("Staking fees applied")

	s.publish(ctx, events.Message{
		Group:   events.ChainGroup(chainID),
		Tag:     events.TagNewFees,
		Payload: entry,
	})
	return entry, nil
}

// MarkWithdrawal records that a user withdrew a token's fees for a slot.
// Repeating the call for the same key is a no-op.
func (s *StakingService) MarkWithdrawal(ctx context.Context, req *dto.FeesWithdrawalRequest) (*models.StakingFeesWithdrawal, error) {
	if err := requireFields(
		presence{"token", req.Token != ""},
		presence{"address", req.Address != ""},
		presence{"slot", req.Slot != nil},
		presence{"chain_id", req.ChainID != nil},
	); err != nil {
		return nil, rejected(err)
	}
	var p fieldParser
	token := p.address("token", req.Token)
	user := p.checksumAddress("address", req.Address)
	if p.err != nil {
		return nil, rejected(p.err)
	}
	slot, chainID, err := slotAndChain(req.Slot, req.ChainID)
	if err != nil {
		return nil, rejected(err)
	}

	var marker *models.StakingFeesWithdrawal
	var created bool
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().Ensure(ctx, user.Hex()); err != nil {
			return fmt.Errorf("failed to provision user: %w", err)
		}
		m, c, err := tx.Staking().MarkWithdrawal(ctx, user.Hex(), token.Hex(), slot, chainID)
		if err != nil {
			return fmt.Errorf("failed to record withdrawal: %w", err)
		}
		marker, created = m, c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.WithFields(logrus.Fields{
			"address": user.Hex(),
			"token":   token.Hex(),
			"slot":    slot,
		}).Debug("Fees withdrawal already recorded")
		return marker, nil
	}

	metrics.StakingDeltas.WithLabelValues("withdrawal").Inc()
	s.publish(ctx, events.Message{
		Group:   events.ChainGroup(chainID),
		Tag:     events.TagNewFSAWithdrawal,
		Payload: marker,
	})
	return marker, nil
}

// UserStakes returns the caller's staking entries on a chain
func (s *StakingService) UserStakes(ctx context.Context, user string, chainID uint64) ([]*models.StakingEntry, error) {
	return s.store.Staking().FindStakes(ctx, user, chainID)
}

// Fees returns every fees entry on a chain
func (s *StakingService) Fees(ctx context.Context, chainID uint64) ([]*models.StakingFeesEntry, error) {
	return s.store.Staking().FindFees(ctx, chainID)
}

// UserWithdrawals returns the caller's fees withdrawal markers on a chain
func (s *StakingService) UserWithdrawals(ctx context.Context, user string, chainID uint64) ([]*models.StakingFeesWithdrawal, error) {
	return s.store.Staking().FindWithdrawals(ctx, user, chainID)
}

// GlobalStakes returns [slot, sum] pairs ordered by slot descending
func (s *StakingService) GlobalStakes(ctx context.Context, chainID uint64) ([][2]interface{}, error) {
	rows, err := s.store.Staking().GlobalStakes(ctx, chainID)
	if err != nil {
		return nil, err
	}
	out := make([][2]interface{}, len(rows))
	for i, r := range rows {
		out[i] = [2]interface{}{r.Slot, r.Amount.String()}
	}
	return out, nil
}

func (s *StakingService) publish(ctx context.Context, msg events.Message) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"group": msg.Group,
			"tag":   msg.Tag,
		}).WithError(err).Error("Event publication failed")
	}
}
