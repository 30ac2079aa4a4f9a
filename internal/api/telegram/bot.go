package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "caries-demo/internal/application"
	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/imaging"
)

const (
	msgStart = `👋 Hi! I look for caries on dental X-rays.

📸 Send me an X-ray image and I will mark suspicious regions.

📋 Commands:
/check — start a new check
/help — help
/stats — how many images you have checked
/cancel — cancel the current operation`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send a dental X-ray (as a photo or as an image file)
2️⃣ The bot analyses the image
3️⃣ You get the image back: a bounding box is drawn only if caries are detected, and the caption says whether caries were found

📋 Commands:
/check — start a check
/cancel — cancel the operation`

	msgAwaitingPhoto   = "📸 Send a dental X-ray to check for caries."
	msgCancelled       = "❌ Cancelled. Send /check to start a new check."
	msgSendPhoto       = "📸 Please send a dental X-ray image."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgStatsFormat     = "📊 Images checked: %d"
	msgProcessing      = "⏳ Processing the image..."
	msgProcessingError = "⚠️ Could not process the image. Please try another one."
)

// Bot Telegram-фронтенд демо поверх того же FrontendService, что и веб-страница
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *app.UserService
	frontend *app.FrontendService
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, frontend *app.FrontendService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return newBot(api, users, frontend), nil
}

func newBot(api *tgbotapi.BotAPI, users *app.UserService, frontend *app.FrontendService) *Bot {
	return &Bot{
		api:      api,
		users:    users,
		frontend: frontend,
	}
}

// Run запускает основной цикл обработки сообщений до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		// Берём файл с максимальным разрешением
		b.handleImage(ctx, msg, msg.Photo[len(msg.Photo)-1].FileID)
		return
	}

	// Снимки часто присылают файлом, чтобы Telegram не сжимал их
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		b.handleImage(ctx, msg, msg.Document.FileID)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var err error

	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		_, err = b.users.BeginCheck(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "stats":
		var user *entity.User
		user, err = b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
		if err == nil {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgStatsFormat, user.Checks))
		}

	case "cancel":
		_, err = b.users.Cancel(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		log.Printf("Error updating user state: %v", err)
	}
}

// handleImage скачивает снимок, отправляет его предиктору и возвращает результат
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	if _, err := b.users.BeginProcessing(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		log.Printf("Error updating user state: %v", err)
	}
	defer func() {
		// Возвращаем в главное меню
		if _, err := b.users.Cancel(ctx, msg.From.ID, msg.Chat.ID); err != nil {
			log.Printf("Error updating user state: %v", err)
		}
	}()

	b.sendMessage(msg.Chat.ID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	sub, err := b.frontend.SubmitPhoto(ctx, imageData)
	if err != nil {
		log.Printf("Error processing photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	if _, err := b.users.RecordCheck(ctx, msg.From.ID, msg.Chat.ID, sub.RequestID); err != nil {
		log.Printf("Error updating user stats: %v", err)
	}

	if err := b.sendPrediction(msg.Chat.ID, sub); err != nil {
		log.Printf("Error sending result: %v", err)
		b.sendMessage(msg.Chat.ID, sub.Prediction.Status)
	}
}

func (b *Bot) sendPrediction(chatID int64, sub *app.Submission) error {
	if sub.Prediction.Annotated == nil {
		b.sendMessage(chatID, sub.Prediction.Status)
		return nil
	}

	data, err := imaging.EncodePNG(sub.Prediction.Annotated)
	if err != nil {
		return err
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: sub.RequestID + ".png", Bytes: data})
	photo.Caption = sub.Prediction.Status
	_, err = b.api.Send(photo)
	return err
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
