package gateway

import "encoding/json"

// ClientEvent is the envelope for everything a connection sends us.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the envelope for everything we push to a connection.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client event names.
const (
	evJoinRoom        = "joinRoom"
	evLeaveRoom       = "leaveRoom"
	evCreateGroupChat = "createGroupChat"
	evSendMessage     = "sendMessage"
	evLeaveGroup      = "leaveGroup"
	evChangeChatName  = "changeChatName"
	evBanUser         = "banUser"
	evUnbanUser       = "unBanUser"
	evMuteUser        = "muteUser"
	evUnmuteUser      = "unMuteUser"
	evChangeRole      = "changeRole"
	evSetAccess       = "setAccess"
	evSetPassword     = "setPassword"
	evResponseFriend  = "response-friend"
	evResponseGame    = "response-game"
)

// Server event names not already defined by the chat dispatcher.
const (
	evError          = "error"
	evLeaveChat      = "leaveChat"
	evUpdateChatName = "updateChatName"
	evUserBan        = "userBan"
	evUserUnban      = "userUnBan"
	evUserMute       = "userMute"
	evUserUnmute     = "userUnMute"
	evUpdateRole     = "updateRole"
)

// EventFriendAccepted tells the original requester their friend request was
// accepted. Exported because the REST friend-response handler emits it too.
const EventFriendAccepted = "friend-accepted"

// FriendAcceptedEvent is the payload of the "friend-accepted" server event.
type FriendAcceptedEvent struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type roomPayload struct {
	ChatID string `json:"chatId"`
}

type createGroupChatPayload struct {
	GroupName       string   `json:"groupName"`
	MemberUsernames []string `json:"memberUsernames"`
	IsGroupChat     bool     `json:"isGroupChat"`
	Accessibility   string   `json:"accessibility"`
	Password        string   `json:"password"`
}

type sendMessagePayload struct {
	ChatID   string `json:"chatId"`
	Content  string `json:"content"`
	FriendID int64  `json:"friendId"`
}

type renamePayload struct {
	ChatID  string `json:"chatId"`
	NewName string `json:"newName"`
}

type moderationPayload struct {
	ChatID string `json:"chatId"`
	UserID int64  `json:"userId"`
	// DurationSeconds is nil for an indefinite mute or ban.
	DurationSeconds *int64 `json:"duration"`
}

type changeRolePayload struct {
	ChatID    string `json:"chatId"`
	UserID    int64  `json:"userId"`
	NewRoleID int    `json:"newRoleId"`
}

type setAccessPayload struct {
	ChatID      string `json:"chatId"`
	IsProtected bool   `json:"isProtected"`
	Password    string `json:"password"`
}

type setPasswordPayload struct {
	ChatID   string `json:"chatId"`
	Password string `json:"password"`
}

type responsePayload struct {
	Response bool   `json:"response"`
	Friend   string `json:"friend"`
	FriendID int64  `json:"friendId"`
}

type errorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type expiryPayload struct {
	ChatID    string `json:"chatId"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type rolePayload struct {
	ChatID    string `json:"chatId"`
	UserID    int64  `json:"userId"`
	NewRoleID int    `json:"newRoleId"`
}

