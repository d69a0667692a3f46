package service

import (
	"context"
	"fmt"
	"time"

	"driverledger/pkg/address"
	"driverledger/pkg/logger"
	"driverledger/pkg/metrics"
	"driverledger/pkg/models"
	"driverledger/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ReviewService interface {
	Leave(ctx context.Context, driverRef address.Address, reviewer models.Identity, rating int, contentPointer string) (*models.Review, error)
	Get(ctx context.Context, driverRef address.Address, index uint64) (*models.Review, error)
	List(ctx context.Context, driverRef address.Address, offset, limit uint64) ([]*models.Review, error)
}

type reviewService struct {
	stg      storage.IRegistryStorage
	log      logger.ILogger
	metrics  *metrics.Metrics
	redeemer ProofRedeemer
}

func NewReviewService(stg storage.IStorage, log logger.ILogger, m *metrics.Metrics, redeemer ProofRedeemer) ReviewService {
	if redeemer == nil {
		redeemer = NopProofRedeemer{}
	}
	return &reviewService{
		stg:      stg.Registry(),
		log:      log,
		metrics:  m,
		redeemer: redeemer,
	}
}

func (s *reviewService) Leave(ctx context.Context, driverRef address.Address, reviewer models.Identity, rating int, contentPointer string) (*models.Review, error) {
	start := time.Now()
	review, err := s.leave(ctx, driverRef, reviewer, rating, contentPointer)
	s.metrics.Observe("leave_review", ErrorKind(err), time.Since(start))

	fields := []logger.Field{
		logger.Stringer("driver", driverRef),
		logger.String("reviewer", reviewer.String()),
		logger.Int("rating", rating),
	}
	switch {
	case err == nil:
		s.log.Info("review recorded", append(fields, logger.Uint64("index", review.Index))...)
	case isRejection(err):
		s.log.Warning("review rejected", append(fields, logger.Error(err))...)
	default:
		s.log.Error("failed to record review", append(fields, logger.Error(err))...)
	}
	return review, err
}

// leave writes the review at the driver's current review count and advances
// the driver's aggregates in the same transaction, so indices stay contiguous.
func (s *reviewService) leave(ctx context.Context, driverRef address.Address, reviewer models.Identity, rating int, contentPointer string) (*models.Review, error) {
	if err := ValidateRating(rating); err != nil {
		return nil, err
	}
	if err := validateIdentity("reviewer", reviewer); err != nil {
		return nil, err
	}

	var review *models.Review
	err := s.stg.InTx(ctx, func(tx storage.ITx) error {
		rec, err := tx.Read(ctx, driverRef)
		if err != nil {
			return err
		}
		driver, err := decode[models.DriverProfile](rec, storage.KindDriver)
		if err != nil {
			return err
		}
		index := driver.ReviewCount

		r := &models.Review{
			Address:        ReviewAddress(driverRef, index),
			DriverRef:      driverRef,
			Index:          index,
			Reviewer:       reviewer,
			Rating:         uint8(rating),
			ContentPointer: contentPointer,
		}
		data, err := storage.Encode(r)
		if err != nil {
			return err
		}
		if _, err := tx.Create(ctx, r.Address, reviewer, storage.KindReview, data); err != nil {
			return fmt.Errorf("review %d: %w", index, err)
		}

		_, err = tx.Mutate(ctx, driverRef, mutateAs(func(d *models.DriverProfile) error {
			if d.ReviewCount != index {
				return storage.ErrConflictingMutation
			}
			sum, err := checkedAdd(d.RatingSum, uint64(rating))
			if err != nil {
				return fmt.Errorf("driver rating sum: %w", err)
			}
			count, err := checkedAdd(d.ReviewCount, 1)
			if err != nil {
				return fmt.Errorf("driver review count: %w", err)
			}
			d.RatingSum = sum
			d.ReviewCount = count
			return nil
		}))
		if err != nil {
			return err
		}

		if err := s.redeemer.Redeem(ctx, driverRef, reviewer); err != nil {
			return fmt.Errorf("redeem proof of service: %w", err)
		}
		review = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("leave review: %w", err)
	}
	return review, nil
}

func (s *reviewService) Get(ctx context.Context, driverRef address.Address, index uint64) (*models.Review, error) {
	rec, err := s.stg.Read(ctx, ReviewAddress(driverRef, index))
	if err != nil {
		return nil, fmt.Errorf("get review %d: %w", index, err)
	}
	return decode[models.Review](rec, storage.KindReview)
}

// List walks indices [offset, offset+limit) bounded by the driver's review count.
func (s *reviewService) List(ctx context.Context, driverRef address.Address, offset, limit uint64) ([]*models.Review, error) {
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rec, err := s.stg.Read(ctx, driverRef)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	driver, err := decode[models.DriverProfile](rec, storage.KindDriver)
	if err != nil {
		return nil, err
	}

	reviews := make([]*models.Review, 0)
	for i := offset; i < driver.ReviewCount && i-offset < limit; i++ {
		review, err := s.Get(ctx, driverRef, i)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}
