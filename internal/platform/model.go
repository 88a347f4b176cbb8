package platform

import "strings"

// ---------------------------------------------
// Normalized platform shapes
// ---------------------------------------------

// User is the sender of an inbound message or button press.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	IsPremium    bool
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is used for thread labels and log lines.
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return ""
}

// ChatType mirrors the platform chat categories the relay cares about.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// MediaKind is the content kind of a single message.
type MediaKind string

const (
	KindText      MediaKind = "text"
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindDocument  MediaKind = "document"
	KindAudio     MediaKind = "audio"
	KindVoice     MediaKind = "voice"
	KindSticker   MediaKind = "sticker"
	KindAnimation MediaKind = "animation"
	KindOther     MediaKind = "other"
)

// Groupable reports whether items of this kind may be part of a grouped send.
func (k MediaKind) Groupable() bool {
	switch k {
	case KindPhoto, KindVideo, KindDocument, KindAudio:
		return true
	}
	return false
}

// Ref addresses one message in one chat.
type Ref struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the ref points nowhere.
func (r Ref) IsZero() bool { return r.ChatID == 0 || r.MessageID == 0 }

// Message is an inbound message stripped of SDK specifics.
type Message struct {
	ID             int
	ChatID         int64
	ChatType       ChatType
	ThreadID       int
	IsTopicMessage bool
	From           User
	Kind           MediaKind
	Text           string
	Caption        string
	FileID         string
	MediaGroupID   string
}

// Ref returns the address of the message itself.
func (m Message) Ref() Ref { return Ref{ChatID: m.ChatID, MessageID: m.ID} }

// Command returns the bot command carried by a text message ("/start@bot x" -> "start").
func (m Message) Command() string {
	if m.Kind != KindText || !strings.HasPrefix(m.Text, "/") {
		return ""
	}
	cmd := strings.Fields(m.Text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// ButtonPress is an inline-button callback.
type ButtonPress struct {
	ID     string
	From   User
	Data   string
	Source Ref // the message carrying the pressed button
}

// Media is one item of an outbound media or grouped-media send.
type Media struct {
	Kind    MediaKind
	FileID  string
	Caption string
}

// Button is an inline button carrying a callback payload.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard. A non-nil keyboard with no rows clears the buttons.
type Keyboard struct {
	Rows [][]Button
}

// ClearKeyboard returns a keyboard that removes existing buttons when applied.
func ClearKeyboard() *Keyboard { return &Keyboard{Rows: [][]Button{}} }

// SendOptions tune a text or media send.
type SendOptions struct {
	HTML     bool
	Keyboard *Keyboard
	ReplyTo  int
}
