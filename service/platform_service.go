package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"driverledger/pkg/address"
	"driverledger/pkg/logger"
	"driverledger/pkg/metrics"
	"driverledger/pkg/models"
	"driverledger/storage"
)

type PlatformService interface {
	Register(ctx context.Context, owner models.Identity, name string) (*models.Platform, error)
	Get(ctx context.Context, ref address.Address) (*models.Platform, error)
	GetByOwner(ctx context.Context, owner models.Identity) (*models.Platform, error)
}

type platformService struct {
	stg     storage.IRegistryStorage
	log     logger.ILogger
	metrics *metrics.Metrics
}

func NewPlatformService(stg storage.IStorage, log logger.ILogger, m *metrics.Metrics) PlatformService {
	return &platformService{
		stg:     stg.Registry(),
		log:     log,
		metrics: m,
	}
}

// Register creates the owner's platform. A second registration by the same
// owner fails with storage.ErrAlreadyExists and leaves the first untouched.
func (s *platformService) Register(ctx context.Context, owner models.Identity, name string) (*models.Platform, error) {
	start := time.Now()
	platform, err := s.register(ctx, owner, name)
	s.metrics.Observe("register_platform", ErrorKind(err), time.Since(start))

	switch {
	case err == nil:
		s.log.Info("platform registered",
			logger.Stringer("address", platform.Address),
			logger.String("name", platform.Name),
			logger.String("owner", owner.String()))
	case isRejection(err):
		s.log.Warning("platform registration rejected", logger.String("owner", owner.String()), logger.Error(err))
	default:
		s.log.Error("failed to register platform", logger.String("owner", owner.String()), logger.Error(err))
	}
	return platform, err
}

func (s *platformService) register(ctx context.Context, owner models.Identity, name string) (*models.Platform, error) {
	if err := validateIdentity("owner", owner); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateText("name", name, MaxNameLength); err != nil {
		return nil, err
	}

	platform := &models.Platform{
		Address:     PlatformAddress(owner),
		Owner:       owner,
		Name:        name,
		Verified:    false,
		DriverCount: 0,
	}
	data, err := storage.Encode(platform)
	if err != nil {
		return nil, err
	}

	err = s.stg.InTx(ctx, func(tx storage.ITx) error {
		_, err := tx.Create(ctx, platform.Address, owner, storage.KindPlatform, data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("register platform: %w", err)
	}
	return platform, nil
}

func (s *platformService) Get(ctx context.Context, ref address.Address) (*models.Platform, error) {
	rec, err := s.stg.Read(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get platform: %w", err)
	}
	return decode[models.Platform](rec, storage.KindPlatform)
}

func (s *platformService) GetByOwner(ctx context.Context, owner models.Identity) (*models.Platform, error) {
	return s.Get(ctx, PlatformAddress(owner))
}
