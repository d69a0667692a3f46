package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverledger/pkg/logger"
	"driverledger/pkg/models"
	"driverledger/service"
	"driverledger/storage/memory"
)

const (
	ownerID int64 = 1001
	riderID int64 = 2002
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	return newBot(service.New(memory.New(1024), logger.NewNop(), nil, nil), logger.NewNop())
}

func seedDriver(t *testing.T, b *Bot) {
	t.Helper()
	ctx := context.Background()
	b.registerPlatform(ctx, ownerID, "Rapido")
	b.registerDriver(ctx, ownerID, "driver-raju KA-01-1234 Raju Kumar")
	_, err := b.Svc.Driver().GetByPlate(ctx, "KA-01-1234")
	require.NoError(t, err)
}

func TestIdentityOf(t *testing.T) {
	assert.Equal(t, models.Identity("tg:42"), IdentityOf(42))
}

func TestParseDriverCommand(t *testing.T) {
	identity, plate, name, ok := parseDriverCommand("  driver-raju KA-01-1234 Raju  Kumar ")
	require.True(t, ok)
	assert.Equal(t, models.Identity("driver-raju"), identity)
	assert.Equal(t, "KA-01-1234", plate)
	assert.Equal(t, "Raju Kumar", name)

	_, _, _, ok = parseDriverCommand("driver-raju KA-01-1234")
	assert.False(t, ok)
}

func TestRegisterPlatformAndDriver(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	assert.Equal(t, messages["usage_platform"], b.registerPlatform(ctx, ownerID, "  "))
	assert.Contains(t, b.registerPlatform(ctx, ownerID, "Rapido"), "registered")
	assert.Equal(t, "⚠️ Already registered.", b.registerPlatform(ctx, ownerID, "Rapido"))

	assert.Equal(t, messages["usage_driver"], b.registerDriver(ctx, ownerID, "only-two args"))
	assert.Contains(t, b.registerDriver(ctx, ownerID, "driver-raju ka-01-1234 Raju"), "KA-01-1234")

	// A sender without a platform has nothing to register under.
	assert.Contains(t, b.registerDriver(ctx, riderID, "driver-x DL-05-7788 X"), "Not found")

	platform, err := b.Svc.Platform().GetByOwner(ctx, IdentityOf(ownerID))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), platform.DriverCount)
}

func TestReviewConversation(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()
	seedDriver(t, b)

	reply, handled := b.submitReview(ctx, riderID, "ar://early")
	assert.False(t, handled)
	assert.Empty(t, reply)

	text, ok := b.startReview(ctx, riderID, "ka-01-1234")
	require.True(t, ok)
	assert.Contains(t, text, "Raju Kumar")

	assert.Contains(t, b.chooseRating(riderID, "9"), "between 1 and 5")
	assert.Contains(t, b.chooseRating(riderID, "4"), "4 selected")

	reply, handled = b.submitReview(ctx, riderID, "ar://review-text")
	require.True(t, handled)
	assert.Contains(t, reply, "#0")

	driver, err := b.Svc.Driver().GetByPlate(ctx, "KA-01-1234")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), driver.RatingSum)
	assert.Equal(t, uint64(1), driver.ReviewCount)

	review, err := b.Svc.Review().Get(ctx, driver.Address, 0)
	require.NoError(t, err)
	assert.Equal(t, IdentityOf(riderID), review.Reviewer)
	assert.Equal(t, "ar://review-text", review.ContentPointer)

	_, handled = b.submitReview(ctx, riderID, "again")
	assert.False(t, handled)

	assert.Contains(t, b.showRating(ctx, "KA-01-1234"), "4.00 from 1 review(s)")
}

func TestReviewCancelled(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()
	seedDriver(t, b)

	_, ok := b.startReview(ctx, riderID, "KA-01-1234")
	require.True(t, ok)
	assert.Equal(t, messages["review_cancelled"], b.chooseRating(riderID, "cancel"))
	assert.Equal(t, messages["no_review_pending"], b.chooseRating(riderID, "5"))
}

func TestReviewUnknownPlate(t *testing.T) {
	b := newTestBot(t)
	text, ok := b.startReview(context.Background(), riderID, "NOPE")
	assert.False(t, ok)
	assert.Contains(t, text, "Not found")

	text, ok = b.startReview(context.Background(), riderID, "")
	assert.False(t, ok)
	assert.Contains(t, text, "/review")
}

func TestShowRatingWithoutReviews(t *testing.T) {
	b := newTestBot(t)
	seedDriver(t, b)
	assert.Contains(t, b.showRating(context.Background(), "KA-01-1234"), messages["no_rating"])
}
