package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"driverledger/pkg/logger"
	"driverledger/pkg/models"
	"driverledger/service"
	"driverledger/storage"
)

func (b *Bot) session(senderID int64) *UserSession {
	s, ok := b.sessions[senderID]
	if !ok {
		s = &UserSession{State: StateIdle}
		b.sessions[senderID] = s
	}
	return s
}

func (b *Bot) resetSession(senderID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[senderID] = &UserSession{State: StateIdle}
}

func (b *Bot) registerPlatform(ctx context.Context, senderID int64, payload string) string {
	name := strings.TrimSpace(payload)
	if name == "" {
		return messages["usage_platform"]
	}
	platform, err := b.Svc.Platform().Register(ctx, IdentityOf(senderID), name)
	if err != nil {
		return errorMessage(err)
	}
	return fmt.Sprintf(messages["platform_created"], platform.Name, platform.Address)
}

// parseDriverCommand splits "<identity> <plate> <name...>".
func parseDriverCommand(payload string) (identity models.Identity, plate, name string, ok bool) {
	fields := strings.Fields(payload)
	if len(fields) < 3 {
		return "", "", "", false
	}
	return models.Identity(fields[0]), fields[1], strings.Join(fields[2:], " "), true
}

// registerDriver registers under the sender's own platform.
func (b *Bot) registerDriver(ctx context.Context, senderID int64, payload string) string {
	driver, plate, name, ok := parseDriverCommand(payload)
	if !ok {
		return messages["usage_driver"]
	}
	owner := IdentityOf(senderID)
	profile, mapping, err := b.Svc.Driver().Register(ctx, service.RegisterDriverRequest{
		PlatformAuthority: owner,
		PlatformRef:       service.PlatformAddress(owner),
		Driver:            driver,
		Name:              name,
		LicensePlate:      plate,
	})
	if err != nil {
		return errorMessage(err)
	}
	return fmt.Sprintf(messages["driver_created"], profile.Name, mapping.LicensePlate, profile.Address)
}

func formatRating(d *models.DriverProfile) string {
	avg, ok := d.AverageRating()
	score := messages["no_rating"]
	if ok {
		score = strconv.FormatFloat(avg, 'f', 2, 64)
	}
	return fmt.Sprintf(messages["rating"], d.Name, d.LicensePlate, score, d.ReviewCount)
}

func (b *Bot) showRating(ctx context.Context, payload string) string {
	plate := strings.TrimSpace(payload)
	if plate == "" {
		return fmt.Sprintf(messages["usage_plate"], "/rating")
	}
	driver, err := b.Svc.Driver().GetByPlate(ctx, plate)
	if err != nil {
		return errorMessage(err)
	}
	return formatRating(driver)
}

// startReview looks the driver up and waits for a rating. ok reports whether
// the rating keyboard should follow the text.
func (b *Bot) startReview(ctx context.Context, senderID int64, payload string) (string, bool) {
	plate := strings.TrimSpace(payload)
	if plate == "" {
		return fmt.Sprintf(messages["usage_plate"], "/review"), false
	}
	driver, err := b.Svc.Driver().GetByPlate(ctx, plate)
	if err != nil {
		return errorMessage(err), false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[senderID] = &UserSession{State: StateAwaitingRating, Driver: driver}
	return fmt.Sprintf(messages["choose_rating"], driver.Name, driver.LicensePlate), true
}

func (b *Bot) chooseRating(senderID int64, choice string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.session(senderID)
	if s.State != StateAwaitingRating {
		return messages["no_review_pending"]
	}
	if choice == "cancel" {
		b.sessions[senderID] = &UserSession{State: StateIdle}
		return messages["review_cancelled"]
	}
	rating, err := strconv.Atoi(choice)
	if err != nil {
		return errorMessage(fmt.Errorf("%w: %q", service.ErrRatingOutOfRange, choice))
	}
	if err := service.ValidateRating(rating); err != nil {
		return errorMessage(err)
	}
	s.Rating = rating
	s.State = StateAwaitingText
	return fmt.Sprintf(messages["ask_pointer"], rating)
}

// submitReview treats text as the content pointer of a pending review.
// handled is false when the sender has no review waiting for text.
func (b *Bot) submitReview(ctx context.Context, senderID int64, text string) (reply string, handled bool) {
	b.mu.Lock()
	s := b.session(senderID)
	if s.State != StateAwaitingText {
		b.mu.Unlock()
		return "", false
	}
	driver, rating := s.Driver, s.Rating
	b.mu.Unlock()

	review, err := b.Svc.Review().Leave(ctx, driver.Address, IdentityOf(senderID), rating, strings.TrimSpace(text))
	if errors.Is(err, storage.ErrConflictingMutation) {
		return messages["busy"], true
	}
	b.resetSession(senderID)
	if err != nil {
		return errorMessage(err), true
	}
	b.Log.Debug("review submitted from telegram", logger.Int64("sender", senderID), logger.Uint64("index", review.Index))
	return fmt.Sprintf(messages["review_saved"], review.Index), true
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrRatingOutOfRange):
		return "⚠️ Rating must be between 1 and 5."
	case errors.Is(err, service.ErrInvalidAuthority):
		return "🚫 Only the platform owner can do that."
	case errors.Is(err, service.ErrInvalidArgument):
		return "⚠️ " + err.Error()
	case errors.Is(err, storage.ErrAlreadyExists):
		return "⚠️ Already registered."
	case errors.Is(err, storage.ErrRecordNotFound):
		return "🔍 Not found. Register a platform first with /platform, or check the plate."
	case errors.Is(err, storage.ErrInsufficientResources):
		return "⚠️ Too long."
	case errors.Is(err, service.ErrArithmeticOverflow):
		return "⚠️ Counter limit reached."
	case errors.Is(err, storage.ErrConflictingMutation):
		return messages["busy"]
	default:
		return "❌ Something went wrong, try again later."
	}
}
