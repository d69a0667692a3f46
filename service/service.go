package service

import (
	"driverledger/pkg/logger"
	"driverledger/pkg/metrics"
	"driverledger/storage"
)

type IServiceManager interface {
	Platform() PlatformService
	Driver() DriverService
	Review() ReviewService
}

type service struct {
	platformService PlatformService
	driverService   DriverService
	reviewService   ReviewService
}

// New wires the registry services over one store. m and redeemer may be nil.
func New(stg storage.IStorage, log logger.ILogger, m *metrics.Metrics, redeemer ProofRedeemer) IServiceManager {
	return &service{
		platformService: NewPlatformService(stg, log, m),
		driverService:   NewDriverService(stg, log, m),
		reviewService:   NewReviewService(stg, log, m, redeemer),
	}
}

func (s *service) Platform() PlatformService {
	return s.platformService
}

func (s *service) Driver() DriverService {
	return s.driverService
}

func (s *service) Review() ReviewService {
	return s.reviewService
}
