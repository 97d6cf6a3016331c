package domain

import "time"

type Credentials struct {
	APIID    int    `json:"apiId" yaml:"api_id"`
	APIHash  string `json:"apiHash" yaml:"api_hash"`
	Phone    string `json:"phoneNumber" yaml:"phone"`
	Password string `json:"password,omitempty" yaml:"password"`
	Session  string `json:"session,omitempty" yaml:"session"`
}

type MediaType string

const (
	MediaPhoto       MediaType = "photo"
	MediaVideo       MediaType = "video"
	MediaAudio       MediaType = "audio"
	MediaVoice       MediaType = "voice"
	MediaDocument    MediaType = "document"
	MediaSticker     MediaType = "sticker"
	MediaWebPage     MediaType = "webpage"
	MediaLocation    MediaType = "location"
	MediaContact     MediaType = "contact"
	MediaPoll        MediaType = "poll"
	MediaDice        MediaType = "dice"
	MediaGame        MediaType = "game"
	MediaInvoice     MediaType = "invoice"
	MediaStory       MediaType = "story"
	MediaGiveaway    MediaType = "giveaway"
	MediaPaid        MediaType = "paid"
	MediaUnsupported MediaType = "unsupported"
)

type MediaSummary struct {
	Type     MediaType `json:"type"`
	FileName string    `json:"fileName,omitempty"`
	MimeType string    `json:"mimeType,omitempty"`
	Size     int64     `json:"size,omitempty"`
}

type Message struct {
	ID      int           `json:"id"`
	Date    time.Time     `json:"date"`
	Text    string        `json:"text"`
	FromID  *int64        `json:"fromId,omitempty"`
	ChatID  int64         `json:"chatId,omitempty"`
	ReplyTo int           `json:"replyToMessageId,omitempty"`
	Edited  *time.Time    `json:"editDate,omitempty"`
	Service string        `json:"service,omitempty"`
	Media   *MediaSummary `json:"media,omitempty"`
}

type ForwardedMessage struct {
	OriginalID int       `json:"originalId"`
	ID         int       `json:"id"`
	Date       time.Time `json:"date,omitempty"`
}

type DeleteResult struct {
	Deleted []int `json:"deleted"`
	Revoke  bool  `json:"revoke"`
	Pts     int   `json:"pts,omitempty"`
	Count   int   `json:"count"`
}

type Membership struct {
	ChatID  int64  `json:"chatId"`
	Joined  bool   `json:"joined,omitempty"`
	Left    bool   `json:"left,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

type ChatMember struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Bot       bool   `json:"bot"`
	Scam      bool   `json:"scam"`
	Fake      bool   `json:"fake"`
}

type ChatAdmin struct {
	ChatMember
	Creator bool   `json:"creator"`
	Rank    string `json:"rank,omitempty"`
}

type UserInfo struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Username   string `json:"username,omitempty"`
	Phone      string `json:"phone,omitempty"`
	About      string `json:"about,omitempty"`
	Bot        bool   `json:"bot"`
	Verified   bool   `json:"verified"`
	Premium    bool   `json:"premium"`
	Restricted bool   `json:"restricted"`
	Scam       bool   `json:"scam"`
	Fake       bool   `json:"fake"`
}

type ChatType string

const (
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

type ChatInfo struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Type        ChatType `json:"type"`
	Username    string   `json:"username,omitempty"`
	Description string   `json:"description,omitempty"`
	MemberCount int      `json:"memberCount,omitempty"`
}

type PeerSummary struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

type TelegramQRToken struct {
	URL            string    `json:"url"`
	PNG            []byte    `json:"-"`
	ExpiresAt      time.Time `json:"expiresAt"`
	PasswordNeeded bool      `json:"passwordNeeded"`
}

type CachedPeer struct {
	Identifier string    `json:"identifier"`
	Kind       string    `json:"kind"`
	ID         int64     `json:"id"`
	AccessHash int64     `json:"-"`
	Megagroup  bool      `json:"megagroup,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt"`
}
