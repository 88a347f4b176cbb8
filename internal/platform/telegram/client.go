// Package telegram adapts the Telegram Bot API (github.com/go-telegram/bot)
// to platform.API.
package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"pm-relay/internal/platform"
)

// Client calls the Bot API through a shared outbound rate limiter.
type Client struct {
	bot     *bot.Bot
	limiter *rate.Limiter
}

// NewClient builds a client for token. rps bounds outbound calls per second
// across the process; extra options go straight to bot.New.
func NewClient(token string, rps float64, opts ...bot.Option) (*Client, error) {
	if rps <= 0 {
		rps = 25
	}
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return &Client{bot: b, limiter: rate.NewLimiter(rate.Limit(rps), int(rps))}, nil
}

// SetWebhook registers url as the update endpoint.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := c.bot.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	return classify(err)
}

// DeleteWebhook removes the registered endpoint.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.bot.DeleteWebhook(ctx, &bot.DeleteWebhookParams{})
	return classify(err)
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func (c *Client) CreateThread(ctx context.Context, chatID int64, name string) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	topic, err := c.bot.CreateForumTopic(ctx, &bot.CreateForumTopicParams{ChatID: chatID, Name: name})
	if err != nil {
		return 0, classify(err)
	}
	return topic.MessageThreadID, nil
}

func (c *Client) EditThread(ctx context.Context, chatID int64, threadID int, name string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.EditForumTopic(ctx, &bot.EditForumTopicParams{ChatID: chatID, MessageThreadID: threadID, Name: name})
	return classify(err)
}

func (c *Client) DeleteThread(ctx context.Context, chatID int64, threadID int) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.DeleteForumTopic(ctx, &bot.DeleteForumTopicParams{ChatID: chatID, MessageThreadID: threadID})
	return classify(err)
}

func (c *Client) CopyMessage(ctx context.Context, dst int64, threadID int, src platform.Ref) (platform.Ref, error) {
	if err := c.wait(ctx); err != nil {
		return platform.Ref{}, err
	}
	id, err := c.bot.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:          dst,
		MessageThreadID: threadID,
		FromChatID:      src.ChatID,
		MessageID:       src.MessageID,
	})
	if err != nil {
		return platform.Ref{}, classify(err)
	}
	return platform.Ref{ChatID: dst, MessageID: id.ID}, nil
}

func (c *Client) SendText(ctx context.Context, dst int64, threadID int, text string, opts platform.SendOptions) (platform.Ref, error) {
	if err := c.wait(ctx); err != nil {
		return platform.Ref{}, err
	}
	params := &bot.SendMessageParams{
		ChatID:          dst,
		MessageThreadID: threadID,
		Text:            text,
		ParseMode:       parseMode(opts),
		ReplyParameters: replyTo(opts),
	}
	if kb := keyboard(opts.Keyboard); kb != nil {
		params.ReplyMarkup = kb
	}
	msg, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return platform.Ref{}, classify(err)
	}
	return platform.Ref{ChatID: dst, MessageID: msg.ID}, nil
}

func (c *Client) SendMedia(ctx context.Context, dst int64, threadID int, media platform.Media, opts platform.SendOptions) (platform.Ref, error) {
	if err := c.wait(ctx); err != nil {
		return platform.Ref{}, err
	}
	file := &models.InputFileString{Data: media.FileID}
	mode := parseMode(opts)
	var markup models.ReplyMarkup
	if kb := keyboard(opts.Keyboard); kb != nil {
		markup = kb
	}

	var (
		msg *models.Message
		err error
	)
	switch media.Kind {
	case platform.KindPhoto:
		msg, err = c.bot.SendPhoto(ctx, &bot.SendPhotoParams{ChatID: dst, MessageThreadID: threadID, Photo: file, Caption: media.Caption, ParseMode: mode, ReplyMarkup: markup})
	case platform.KindVideo:
		msg, err = c.bot.SendVideo(ctx, &bot.SendVideoParams{ChatID: dst, MessageThreadID: threadID, Video: file, Caption: media.Caption, ParseMode: mode, ReplyMarkup: markup})
	case platform.KindDocument:
		msg, err = c.bot.SendDocument(ctx, &bot.SendDocumentParams{ChatID: dst, MessageThreadID: threadID, Document: file, Caption: media.Caption, ParseMode: mode, ReplyMarkup: markup})
	case platform.KindAudio:
		msg, err = c.bot.SendAudio(ctx, &bot.SendAudioParams{ChatID: dst, MessageThreadID: threadID, Audio: file, Caption: media.Caption, ParseMode: mode, ReplyMarkup: markup})
	case platform.KindVoice:
		msg, err = c.bot.SendVoice(ctx, &bot.SendVoiceParams{ChatID: dst, MessageThreadID: threadID, Voice: file, Caption: media.Caption, ParseMode: mode, ReplyMarkup: markup})
	case platform.KindAnimation:
		msg, err = c.bot.SendAnimation(ctx, &bot.SendAnimationParams{ChatID: dst, MessageThreadID: threadID, Animation: file, Caption: media.Caption, ParseMode: mode, ReplyMarkup: markup})
	case platform.KindSticker:
		msg, err = c.bot.SendSticker(ctx, &bot.SendStickerParams{ChatID: dst, MessageThreadID: threadID, Sticker: file, ReplyMarkup: markup})
	default:
		return platform.Ref{}, fmt.Errorf("telegram: unsupported media kind %q", media.Kind)
	}
	if err != nil {
		return platform.Ref{}, classify(err)
	}
	return platform.Ref{ChatID: dst, MessageID: msg.ID}, nil
}

func (c *Client) SendMediaGroup(ctx context.Context, dst int64, threadID int, items []platform.Media) ([]platform.Ref, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	media := make([]models.InputMedia, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case platform.KindPhoto:
			media = append(media, &models.InputMediaPhoto{Media: it.FileID, Caption: it.Caption})
		case platform.KindVideo:
			media = append(media, &models.InputMediaVideo{Media: it.FileID, Caption: it.Caption})
		case platform.KindDocument:
			media = append(media, &models.InputMediaDocument{Media: it.FileID, Caption: it.Caption})
		case platform.KindAudio:
			media = append(media, &models.InputMediaAudio{Media: it.FileID, Caption: it.Caption})
		}
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("telegram: empty media group")
	}
	sent, err := c.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{ChatID: dst, MessageThreadID: threadID, Media: media})
	if err != nil {
		return nil, classify(err)
	}
	refs := make([]platform.Ref, 0, len(sent))
	for _, m := range sent {
		refs = append(refs, platform.Ref{ChatID: dst, MessageID: m.ID})
	}
	return refs, nil
}

func (c *Client) EditText(ctx context.Context, ref platform.Ref, text string, kb *platform.Keyboard) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	params := &bot.EditMessageTextParams{ChatID: ref.ChatID, MessageID: ref.MessageID, Text: text}
	if markup := keyboard(kb); markup != nil {
		params.ReplyMarkup = markup
	}
	_, err := c.bot.EditMessageText(ctx, params)
	return classify(err)
}

func (c *Client) DeleteMessage(ctx context.Context, ref platform.Ref) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: ref.ChatID, MessageID: ref.MessageID})
	return classify(err)
}

func (c *Client) PinMessage(ctx context.Context, ref platform.Ref) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.PinChatMessage(ctx, &bot.PinChatMessageParams{ChatID: ref.ChatID, MessageID: ref.MessageID, DisableNotification: true})
	return classify(err)
}

func (c *Client) ProfilePhoto(ctx context.Context, userID int64) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	photos, err := c.bot.GetUserProfilePhotos(ctx, &bot.GetUserProfilePhotosParams{UserID: userID, Limit: 1})
	if err != nil {
		return "", classify(err)
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}
	sizes := photos.Photos[0]
	return sizes[len(sizes)-1].FileID, nil
}

func (c *Client) AnswerButton(ctx context.Context, pressID, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: pressID, Text: text})
	return classify(err)
}

func parseMode(opts platform.SendOptions) models.ParseMode {
	if opts.HTML {
		return models.ParseModeHTML
	}
	return ""
}

func replyTo(opts platform.SendOptions) *models.ReplyParameters {
	if opts.ReplyTo == 0 {
		return nil
	}
	return &models.ReplyParameters{MessageID: opts.ReplyTo, AllowSendingWithoutReply: true}
}

// keyboard converts to the SDK markup; nil stays nil so no reply_markup is sent.
func keyboard(kb *platform.Keyboard) *models.InlineKeyboardMarkup {
	if kb == nil {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

var _ platform.API = (*Client)(nil)
