// Package telegram is a chat front-end: users send a photo of an item and the
// bot replies with its waste category.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/teslashibe/recycleeye/internal/httpc"
	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
)

// maxPhotoBytes caps downloaded photos.
const maxPhotoBytes = 10 << 20

const helpText = "Send me a photo of an item and I will tell you which bin it goes in.\nCommands: /start, /health"

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// PhotoClassifier classifies one photo without touching app state.
// *app.App implements it.
type PhotoClassifier interface {
	ClassifyPhoto(ctx context.Context, photo *capture.Photo) *classify.Result
}

// Bot answers photo messages with a classification.
type Bot struct {
	api        API
	classifier PhotoClassifier
	http       *http.Client
	quality    func() float64
	logger     *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Bot.
type Option func(*Bot)

// WithHTTPClient sets the client used to download photos.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.http = c }
}

// WithQuality sets the JPEG quality photos are re-encoded at before
// classification, read for every photo.
func WithQuality(fn func() float64) Option {
	return func(b *Bot) { b.quality = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a bot over api.
func New(api API, classifier PhotoClassifier, opts ...Option) *Bot {
	b := &Bot{
		api:        api,
		classifier: classifier,
		http:       httpc.NewClient(60 * time.Second),
		quality:    func() float64 { return capture.DefaultLibraryQuality },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "telegram")
	return b
}

// NewFromToken connects to the Bot API with token.
func NewFromToken(token string, classifier PhotoClassifier, opts ...Option) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	api.Debug = false
	return New(api, classifier, opts...), nil
}

// Run long-polls for updates until ctx is done. Each update is handled on
// its own goroutine.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot polling for updates")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// HandleUpdate answers one update.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	cid := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.send(cid, helpText)
		case "health":
			b.send(cid, "OK")
		default:
			b.send(cid, "Unknown command. "+helpText)
		}
		return
	}

	fileID, name := photoFile(msg)
	if fileID == "" {
		b.send(cid, helpText)
		return
	}

	data, err := b.download(ctx, fileID)
	if err != nil {
		b.logger.Warn("photo download failed", "chat", cid, "error", err)
		b.send(cid, app.AlertPickFailed)
		return
	}

	data, err = capture.Reencode(data, b.quality())
	if err != nil {
		b.logger.Warn("photo decode failed", "chat", cid, "error", err)
		b.send(cid, app.AlertPickFailed)
		return
	}

	res := b.classifier.ClassifyPhoto(ctx, capture.NewPhoto("telegram://"+name, data))
	b.logger.Info("photo classified",
		"chat", cid,
		"label", res.Label,
		"kind", res.Kind,
		"latency_ms", res.Latency().Milliseconds(),
	)
	b.send(cid, Reply(res))
}

// Reply renders a result as chat text.
func Reply(res *classify.Result) string {
	switch res.Kind {
	case classify.KindOK:
		if res.Confidence > 0 {
			return fmt.Sprintf("♻️ %s (%.0f%%)", res.Label, res.Confidence*100)
		}
		return "♻️ " + res.Label
	case classify.KindNoPrediction:
		return "🤷 " + res.Label
	default:
		return app.AlertAnalysisFailed
	}
}

// photoFile picks the largest photo size, or an image sent as a document.
func photoFile(msg *tgbotapi.Message) (fileID, name string) {
	if n := len(msg.Photo); n > 0 {
		ph := msg.Photo[n-1]
		return ph.FileID, ph.FileUniqueID + ".jpg"
	}
	if d := msg.Document; d != nil && strings.HasPrefix(d.MimeType, "image/") {
		return d.FileID, d.FileName
	}
	return "", ""
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send failed", "chat", chatID, "error", err)
	}
}
