package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/pipeline"
	"github.com/wha7/wha7/pkg/types"
)

const (
	startText = "Send me a photo of an outfit and I'll find similar items for you."
	errorText = "Sorry, something went wrong while looking at your photo. Please try again."
)

// MessageProcessor runs one inbound message through the pipeline.
type MessageProcessor interface {
	Process(ctx context.Context, msg types.InboundMessage) (*pipeline.Result, error)
}

type botAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetFileDirectURL(fileID string) (string, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type batch struct {
	chatID int64
	images []types.ImageRef
	timer  *time.Timer
}

// Bot turns Telegram photo messages into pipeline runs and replies with the links.
// Photos of one album are collected until no new photo arrives for the debounce period.
type Bot struct {
	api         botAPI
	processor   MessageProcessor
	httpClient  *http.Client
	pollTimeout int
	debounce    time.Duration
	log         *zap.Logger

	mu      sync.Mutex
	batches map[string]*batch
	wg      sync.WaitGroup
}

// New connects to the Bot API with the given token.
func New(token string, pollTimeout int, debug bool, processor MessageProcessor, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	log.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return newBot(api, processor, pollTimeout, 1500*time.Millisecond, log), nil
}

func newBot(api botAPI, processor MessageProcessor, pollTimeout int, debounce time.Duration, log *zap.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		api:         api,
		processor:   processor,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		pollTimeout: pollTimeout,
		debounce:    debounce,
		log:         log,
		batches:     make(map[string]*batch),
	}
}

// Run long-polls for updates until ctx is cancelled, then waits for in-flight messages.
func (b *Bot) Run(ctx context.Context) error {
	offset := 0
	baseDelay := time.Second
	maxDelay := 15 * time.Second

	defer b.wg.Wait()
	for {
		if ctx.Err() != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = b.pollTimeout

		updates, err := b.api.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			b.log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate dispatches one update.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}

	if len(msg.Photo) == 0 {
		if msg.Text != "" {
			b.send(msg.Chat.ID, startText)
		}
		return
	}

	// the last size is the largest
	ph := msg.Photo[len(msg.Photo)-1]
	url, err := b.api.GetFileDirectURL(ph.FileID)
	if err != nil {
		b.log.Error("failed to resolve photo", redactedError(err))
		b.send(msg.Chat.ID, errorText)
		return
	}
	data, contentType, err := client.FetchImage(ctx, b.httpClient, url)
	if err != nil {
		b.log.Error("failed to download photo", redactedError(err))
		b.send(msg.Chat.ID, errorText)
		return
	}

	ref := types.ImageRef{Data: data, ContentType: contentType, Name: ph.FileUniqueID}
	key := "chat:" + strconv.FormatInt(msg.Chat.ID, 10)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}
	b.collect(ctx, key, msg.Chat.ID, ref)
}

func (b *Bot) collect(ctx context.Context, key string, chatID int64, ref types.ImageRef) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bt, ok := b.batches[key]
	if !ok {
		bt = &batch{chatID: chatID}
		b.batches[key] = bt
	}
	bt.images = append(bt.images, ref)

	if b.debounce <= 0 {
		delete(b.batches, key)
		b.wg.Add(1)
		go b.process(context.WithoutCancel(ctx), bt)
		return
	}
	if bt.timer != nil && bt.timer.Stop() {
		// the stopped callback will never run
		b.wg.Done()
	}
	b.wg.Add(1)
	bt.timer = time.AfterFunc(b.debounce, func() {
		b.mu.Lock()
		if b.batches[key] != bt {
			b.mu.Unlock()
			b.wg.Done()
			return
		}
		delete(b.batches, key)
		b.mu.Unlock()
		b.process(context.WithoutCancel(ctx), bt)
	})
}

func (b *Bot) process(ctx context.Context, bt *batch) {
	defer b.wg.Done()

	res, err := b.processor.Process(ctx, types.InboundMessage{
		Sender: "tg:" + strconv.FormatInt(bt.chatID, 10),
		Images: bt.images,
	})
	if err != nil {
		b.log.Error("failed to process photos", zap.Int64("chat_id", bt.chatID), zap.Error(err))
		b.send(bt.chatID, errorText)
		return
	}

	for _, text := range pipeline.FormatReply(res) {
		b.send(bt.chatID, text)
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// File URLs embed the bot token as /bot<token>/ and net/http errors quote the URL.
var reBotToken = regexp.MustCompile(`/bot[^/\s"]+`)

func redactedError(err error) zap.Field {
	return zap.String("error", reBotToken.ReplaceAllString(err.Error(), "/bot<redacted>"))
}

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return time.Second
}
