package services

import (
	"context"
	"fmt"
	"time"

	"dex-backend/internal/dto"
	"dex-backend/internal/repository"
	"dex-backend/internal/signing"
	"dex-backend/internal/types"
	"dex-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// AccountService verifies signed account messages, provisions users and issues sessions
type AccountService struct {
	store    repository.Store
	sessions *SessionManager
	window   time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewAccountService creates an AccountService
func NewAccountService(store repository.Store, sessions *SessionManager, window time.Duration, logger *logrus.Logger) *AccountService {
	return &AccountService{
		store:    store,
		sessions: sessions,
		window:   window,
		logger:   logger,
		now:      time.Now,
	}
}

// verify checks the account message and returns the signer's checksum address
func (s *AccountService) verify(req *dto.AccountRequest) (common.Address, error) {
	if req.Address == "" {
		return common.Address{}, types.NewFieldError("address", types.ErrMissingField)
	}
	if req.Signature == "" {
		return common.Address{}, types.NewFieldError("signature", types.ErrMissingField)
	}
	if req.Timestamp == nil {
		return common.Address{}, types.NewFieldError("timestamp", types.ErrMissingField)
	}
	owner, err := utils.ParseChecksumAddress("address", req.Address)
	if err != nil {
		return common.Address{}, err
	}
	sig, err := utils.ParseSignature("signature", req.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if *req.Timestamp < 0 {
		return common.Address{}, types.NewFieldError("timestamp", types.ErrWrongTimestamp)
	}
	ts, now := *req.Timestamp, s.now().Unix()
	if ts < 0 {
		return common.Address{}, types.NewFieldError("timestamp", types.ErrUserTimestamp)
	}
	skew := now - ts
	if ts > now {
		skew = ts - now
	}
	// compared in seconds; a Duration product overflows for far-off timestamps
	if skew > int64(s.window/time.Second) {
		return common.Address{}, types.NewFieldError("timestamp", types.ErrUserTimestamp)
	}

	hash := signing.MessageHash(signing.AccountPreimage(owner, uint64(*req.Timestamp)))
	if err := signing.VerifySigner(hash, sig, owner); err != nil {
		return common.Address{}, err
	}
	return owner, nil
}

// CreateAccount provisions the signer (idempotently) and returns a session token
func (s *AccountService) CreateAccount(ctx context.Context, req *dto.AccountRequest) (*dto.AuthResponse, error) {
	owner, err := s.verify(req)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Users().Ensure(ctx, owner.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if created {
		s.logger.WithField("address", owner.Hex()).Info("User created")
	}
	resp, err := s.issue(owner)
	if err != nil {
		return nil, err
	}
	resp.Created = created
	return resp, nil
}

// Login verifies the account message for an existing or new user and returns a session token
func (s *AccountService) Login(ctx context.Context, req *dto.AccountRequest) (*dto.AuthResponse, error) {
	owner, err := s.verify(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Users().Ensure(ctx, owner.Hex()); err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}
	return s.issue(owner)
}

func (s *AccountService) issue(owner common.Address) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.sessions.Issue(owner.Hex())
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{Address: owner.Hex(), Token: token, ExpiresAt: expiresAt.Unix()}, nil
}
