package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"driverledger/config"
	"driverledger/pkg/logger"
	"driverledger/pkg/models"
	"driverledger/service"
)

const (
	StateIdle           = "idle"
	StateAwaitingRating = "awaiting_rating"
	StateAwaitingText   = "awaiting_content_pointer"

	ratingCallbackPrefix = "rate_"
)

type UserSession struct {
	State  string
	Driver *models.DriverProfile
	Rating int
}

type Bot struct {
	Bot *tele.Bot
	Log logger.ILogger
	Svc service.IServiceManager

	mu       sync.Mutex
	sessions map[int64]*UserSession
}

func New(cfg config.Config, svc service.IServiceManager, log logger.ILogger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	bot := newBot(svc, log)
	bot.Bot = b
	bot.registerHandlers()
	return bot, nil
}

func newBot(svc service.IServiceManager, log logger.ILogger) *Bot {
	return &Bot{
		Log:      log,
		Svc:      svc,
		sessions: make(map[int64]*UserSession),
	}
}

// Run polls until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		b.Bot.Stop()
	}()
	b.Log.Info("telegram bot started")
	b.Bot.Start()
	return nil
}

// IdentityOf is the registry identity of a Telegram account.
func IdentityOf(senderID int64) models.Identity {
	return models.Identity("tg:" + strconv.FormatInt(senderID, 10))
}

var messages = map[string]string{
	"welcome": "👋 Driver reputation registry.\n\n" +
		"/platform <name> - register your platform\n" +
		"/driver <identity> <plate> <name> - register a driver on your platform\n" +
		"/rating <plate> - show a driver's rating\n" +
		"/review <plate> - review a driver",
	"usage_platform":    "Usage: /platform <name>",
	"usage_driver":      "Usage: /driver <identity> <plate> <name>",
	"usage_plate":       "Usage: %s <plate>",
	"platform_created":  "✅ Platform %q registered.\nAddress: %s",
	"driver_created":    "✅ Driver %s registered with plate %s.\nAddress: %s",
	"rating":            "🚖 %s (%s)\n⭐ %s from %d review(s)",
	"no_rating":         "no rating yet",
	"choose_rating":     "Rate %s (%s):",
	"ask_pointer":       "⭐ %d selected. Send the link to your review text.",
	"review_saved":      "✅ Review #%d saved. Thank you!",
	"review_cancelled":  "❌ Review cancelled.",
	"no_review_pending": "Start with /review <plate>.",
	"busy":              "⏳ Someone reviewed this driver at the same moment. Please send the link again.",
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle("/platform", b.handlePlatform)
	b.Bot.Handle("/driver", b.handleDriver)
	b.Bot.Handle("/rating", b.handleRating)
	b.Bot.Handle("/review", b.handleReview)
	b.Bot.Handle("/cancel", b.handleCancel)

	b.Bot.Handle(tele.OnCallback, b.handleCallback)
	b.Bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	b.resetSession(c.Sender().ID)
	return c.Send(messages["welcome"])
}

func (b *Bot) handlePlatform(c tele.Context) error {
	return c.Send(b.registerPlatform(context.Background(), c.Sender().ID, c.Message().Payload))
}

func (b *Bot) handleDriver(c tele.Context) error {
	return c.Send(b.registerDriver(context.Background(), c.Sender().ID, c.Message().Payload))
}

func (b *Bot) handleRating(c tele.Context) error {
	return c.Send(b.showRating(context.Background(), c.Message().Payload))
}

func (b *Bot) handleReview(c tele.Context) error {
	text, ok := b.startReview(context.Background(), c.Sender().ID, c.Message().Payload)
	if !ok {
		return c.Send(text)
	}
	menu := &tele.ReplyMarkup{}
	var buttons []tele.Btn
	for rating := service.MinRating; rating <= service.MaxRating; rating++ {
		buttons = append(buttons, menu.Data(strings.Repeat("⭐", rating), fmt.Sprintf("%s%d", ratingCallbackPrefix, rating)))
	}
	menu.Inline(menu.Row(buttons...), menu.Row(menu.Data("❌ Cancel", "rate_cancel")))
	return c.Send(text, menu)
}

func (b *Bot) handleCancel(c tele.Context) error {
	b.resetSession(c.Sender().ID)
	return c.Send(messages["review_cancelled"])
}

func (b *Bot) handleCallback(c tele.Context) error {
	data := strings.TrimSpace(c.Callback().Data)
	if !strings.HasPrefix(data, ratingCallbackPrefix) {
		return c.Respond()
	}
	text := b.chooseRating(c.Sender().ID, strings.TrimPrefix(data, ratingCallbackPrefix))
	if err := c.Respond(); err != nil {
		b.Log.Warning("callback respond failed", logger.Error(err))
	}
	return c.Edit(text)
}

func (b *Bot) handleText(c tele.Context) error {
	text, handled := b.submitReview(context.Background(), c.Sender().ID, c.Text())
	if !handled {
		return nil
	}
	return c.Send(text)
}
