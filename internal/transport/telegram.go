package transport

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	platformtypes "github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const telegramComponent = "transport.telegram"

// TelegramAdapter wraps a telego.Bot, using the same bot handle the
// teacher's ManageTelegramTool (pkg/tools/telegram.go) operates on for
// topic/pin management, here driving plain send/receive instead.
type TelegramAdapter struct {
	bot     *telego.Bot
	onEvent IncomingHandler
}

func NewTelegramAdapter(bot *telego.Bot, onEvent IncomingHandler) *TelegramAdapter {
	return &TelegramAdapter{bot: bot, onEvent: onEvent}
}

// Listen starts a long-polling loop that forwards every incoming text
// message to onEvent until ctx is cancelled.
func (a *TelegramAdapter) Listen(ctx context.Context) error {
	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return platformtypes.ExternalFailure(telegramComponent, "starting long polling failed", err)
	}
	go func() {
		for update := range updates {
			a.handleUpdate(update)
		}
	}()
	return nil
}

func (a *TelegramAdapter) handleUpdate(update telego.Update) {
	if update.Message == nil || update.Message.Text == "" || a.onEvent == nil {
		return
	}
	m := update.Message
	name := ""
	if m.From != nil {
		name = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	}
	a.onEvent(context.Background(), platformtypes.RawInboundEvent{
		Content:       m.Text,
		ChannelUserID: strconv.FormatInt(m.Chat.ID, 10),
		Channel:       platformtypes.ChannelTelegram,
		SenderName:    name,
		Metadata:      platformtypes.Metadata{"message_id": m.MessageID},
	})
}

func (a *TelegramAdapter) chatID(channelUserID string) (int64, error) {
	id, err := strconv.ParseInt(channelUserID, 10, 64)
	if err != nil {
		return 0, platformtypes.InvalidInput(telegramComponent, "invalid telegram chat id "+channelUserID)
	}
	return id, nil
}

func (a *TelegramAdapter) SendMessage(ctx context.Context, channelUserID, content string) error {
	id, err := a.chatID(channelUserID)
	if err != nil {
		return err
	}
	if _, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(id), content)); err != nil {
		return platformtypes.ExternalFailure(telegramComponent, "send message failed", err)
	}
	return nil
}

func (a *TelegramAdapter) SendImage(ctx context.Context, channelUserID, url, caption string) error {
	id, err := a.chatID(channelUserID)
	if err != nil {
		return err
	}
	photo := tu.Photo(tu.ID(id), tu.FileFromURL(url)).WithCaption(caption)
	if _, err := a.bot.SendPhoto(ctx, photo); err != nil {
		return platformtypes.ExternalFailure(telegramComponent, "send photo failed", err)
	}
	return nil
}

func (a *TelegramAdapter) SendButtons(ctx context.Context, channelUserID, content string, buttons []string) error {
	id, err := a.chatID(channelUserID)
	if err != nil {
		return err
	}
	var rows [][]telego.InlineKeyboardButton
	for _, b := range buttons {
		rows = append(rows, tu.InlineKeyboardRow(tu.InlineKeyboardButton(b).WithCallbackData(b)))
	}
	msg := tu.Message(tu.ID(id), content).WithReplyMarkup(tu.InlineKeyboard(rows...))
	if _, err := a.bot.SendMessage(ctx, msg); err != nil {
		return platformtypes.ExternalFailure(telegramComponent, "send buttons failed", err)
	}
	return nil
}

func (a *TelegramAdapter) SendTemplate(ctx context.Context, channelUserID, templateName string, vars map[string]string) error {
	return platformtypes.InvalidStateTransition(telegramComponent, "telegram has no native template mechanism; render template "+templateName+" via internal/template before calling SendMessage")
}

func (a *TelegramAdapter) VerifyWebhook(token string) bool { return true }
