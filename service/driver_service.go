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

type DriverService interface {
	Register(ctx context.Context, req RegisterDriverRequest) (*models.DriverProfile, *models.LicensePlateMapping, error)
	Get(ctx context.Context, ref address.Address) (*models.DriverProfile, error)
	GetByIdentity(ctx context.Context, driver models.Identity) (*models.DriverProfile, error)
	GetByPlate(ctx context.Context, plate string) (*models.DriverProfile, error)
}

type RegisterDriverRequest struct {
	// PlatformAuthority is the verified caller; it must own the platform.
	PlatformAuthority models.Identity
	PlatformRef       address.Address
	Driver            models.Identity
	Name              string
	LicensePlate      string
}

type driverService struct {
	stg     storage.IRegistryStorage
	log     logger.ILogger
	metrics *metrics.Metrics
}

func NewDriverService(stg storage.IStorage, log logger.ILogger, m *metrics.Metrics) DriverService {
	return &driverService{
		stg:     stg.Registry(),
		log:     log,
		metrics: m,
	}
}

func (s *driverService) Register(ctx context.Context, req RegisterDriverRequest) (*models.DriverProfile, *models.LicensePlateMapping, error) {
	start := time.Now()
	driver, mapping, err := s.register(ctx, req)
	s.metrics.Observe("register_driver", ErrorKind(err), time.Since(start))

	fields := []logger.Field{
		logger.Stringer("platform", req.PlatformRef),
		logger.String("driver", req.Driver.String()),
		logger.String("license_plate", req.LicensePlate),
	}
	switch {
	case err == nil:
		s.log.Info("driver registered", append(fields, logger.Stringer("address", driver.Address))...)
	case isRejection(err):
		s.log.Warning("driver registration rejected", append(fields, logger.Error(err))...)
	default:
		s.log.Error("failed to register driver", append(fields, logger.Error(err))...)
	}
	return driver, mapping, err
}

// register increments the platform's driver count and creates the profile and
// the plate mapping in one transaction. The mapping address is derived from
// the plate alone, so a plate already claimed by anyone fails with
// storage.ErrAlreadyExists.
func (s *driverService) register(ctx context.Context, req RegisterDriverRequest) (*models.DriverProfile, *models.LicensePlateMapping, error) {
	plate := NormalizePlate(req.LicensePlate)
	if err := validateIdentity("platform authority", req.PlatformAuthority); err != nil {
		return nil, nil, err
	}
	if err := validateIdentity("driver", req.Driver); err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := validateText("name", name, MaxNameLength); err != nil {
		return nil, nil, err
	}
	if err := validateText("license plate", plate, MaxPlateLength); err != nil {
		return nil, nil, err
	}

	driver := &models.DriverProfile{
		Address:      DriverAddress(req.Driver),
		Owner:        req.Driver,
		PlatformRef:  req.PlatformRef,
		Name:         name,
		LicensePlate: plate,
	}
	mapping := &models.LicensePlateMapping{
		Address:      PlateAddress(plate),
		LicensePlate: plate,
		DriverRef:    driver.Address,
	}

	err := s.stg.InTx(ctx, func(tx storage.ITx) error {
		rec, err := tx.Read(ctx, req.PlatformRef)
		if err != nil {
			return err
		}
		platform, err := decode[models.Platform](rec, storage.KindPlatform)
		if err != nil {
			return err
		}
		if platform.Owner != req.PlatformAuthority {
			return ErrInvalidAuthority
		}

		_, err = tx.Mutate(ctx, req.PlatformRef, mutateAs(func(p *models.Platform) error {
			count, err := checkedAdd(p.DriverCount, 1)
			if err != nil {
				return fmt.Errorf("platform driver count: %w", err)
			}
			p.DriverCount = count
			return nil
		}))
		if err != nil {
			return err
		}

		driverData, err := storage.Encode(driver)
		if err != nil {
			return err
		}
		if _, err := tx.Create(ctx, driver.Address, req.PlatformAuthority, storage.KindDriver, driverData); err != nil {
			return fmt.Errorf("driver profile: %w", err)
		}

		mappingData, err := storage.Encode(mapping)
		if err != nil {
			return err
		}
		if _, err := tx.Create(ctx, mapping.Address, req.PlatformAuthority, storage.KindPlate, mappingData); err != nil {
			return fmt.Errorf("license plate %q: %w", plate, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register driver: %w", err)
	}
	return driver, mapping, nil
}

func (s *driverService) Get(ctx context.Context, ref address.Address) (*models.DriverProfile, error) {
	rec, err := s.stg.Read(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return decode[models.DriverProfile](rec, storage.KindDriver)
}

func (s *driverService) GetByIdentity(ctx context.Context, driver models.Identity) (*models.DriverProfile, error) {
	return s.Get(ctx, DriverAddress(driver))
}

func (s *driverService) GetByPlate(ctx context.Context, plate string) (*models.DriverProfile, error) {
	rec, err := s.stg.Read(ctx, PlateAddress(NormalizePlate(plate)))
	if err != nil {
		return nil, fmt.Errorf("get license plate: %w", err)
	}
	mapping, err := decode[models.LicensePlateMapping](rec, storage.KindPlate)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, mapping.DriverRef)
}
