package telegram

import (
	"github.com/go-telegram/bot/models"

	"pm-relay/internal/event"
	"pm-relay/internal/platform"
)

// Audience tells the normalizer who the owner is and where the staff group lives.
type Audience struct {
	OwnerID int64
	GroupID int64
}

// Normalize turns a Bot API update into a relay event. Updates the relay has
// no use for (edits, channel posts, strangers in the group) report false.
func Normalize(u *models.Update, aud Audience) (event.Event, bool) {
	switch {
	case u == nil:
		return nil, false
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.From.ID != aud.OwnerID {
			return nil, false
		}
		press := platform.ButtonPress{ID: cq.ID, From: convertUser(&cq.From), Data: cq.Data}
		switch {
		case cq.Message.Message != nil:
			press.Source = platform.Ref{ChatID: cq.Message.Message.Chat.ID, MessageID: cq.Message.Message.ID}
		case cq.Message.InaccessibleMessage != nil:
			press.Source = platform.Ref{ChatID: cq.Message.InaccessibleMessage.Chat.ID, MessageID: cq.Message.InaccessibleMessage.MessageID}
		}
		return event.ButtonPress{UpdateID: u.ID, Press: press}, true
	case u.Message != nil:
		if u.Message.From == nil || u.Message.From.IsBot {
			return nil, false
		}
		msg := ConvertMessage(u.Message)
		switch {
		case msg.ChatType == platform.ChatPrivate && msg.From.ID != aud.OwnerID:
			if msg.MediaGroupID != "" && msg.Kind.Groupable() {
				return event.AlbumItem{UpdateID: u.ID, Message: msg}, true
			}
			return event.UserMessage{UpdateID: u.ID, Message: msg}, true
		case msg.ChatID == aud.GroupID && msg.From.ID == aud.OwnerID:
			if msg.MediaGroupID != "" && msg.Kind.Groupable() && msg.IsTopicMessage {
				return event.AlbumItem{UpdateID: u.ID, Message: msg, FromOwner: true}, true
			}
			return event.OwnerMessage{UpdateID: u.ID, Message: msg}, true
		}
	}
	return nil, false
}

// ConvertMessage flattens an SDK message into platform.Message.
func ConvertMessage(m *models.Message) platform.Message {
	out := platform.Message{
		ID:             m.ID,
		ChatID:         m.Chat.ID,
		ChatType:       platform.ChatType(m.Chat.Type),
		ThreadID:       m.MessageThreadID,
		IsTopicMessage: m.IsTopicMessage,
		Text:           m.Text,
		Caption:        m.Caption,
		MediaGroupID:   m.MediaGroupID,
		Kind:           platform.KindOther,
	}
	if m.From != nil {
		out.From = convertUser(m.From)
	}
	switch {
	case len(m.Photo) > 0:
		out.Kind, out.FileID = platform.KindPhoto, m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		out.Kind, out.FileID = platform.KindVideo, m.Video.FileID
	case m.Animation != nil:
		out.Kind, out.FileID = platform.KindAnimation, m.Animation.FileID
	case m.Document != nil:
		out.Kind, out.FileID = platform.KindDocument, m.Document.FileID
	case m.Audio != nil:
		out.Kind, out.FileID = platform.KindAudio, m.Audio.FileID
	case m.Voice != nil:
		out.Kind, out.FileID = platform.KindVoice, m.Voice.FileID
	case m.Sticker != nil:
		out.Kind, out.FileID = platform.KindSticker, m.Sticker.FileID
	case m.Text != "":
		out.Kind = platform.KindText
	}
	return out
}

func convertUser(u *models.User) platform.User {
	return platform.User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LanguageCode,
		IsPremium:    u.IsPremium,
	}
}
