package models

import "encoding/json"

// Outbound event types sent from the server to connections.
const (
	EventRoomList      = "roomList"
	EventAdminSuccess  = "adminSuccess"
	EventAdminFailed   = "adminFailed"
	EventJoinSuccess   = "joinSuccess"
	EventJoinFailed    = "joinFailed"
	EventCreateFailed  = "createFailed"
	EventDeleteFailed  = "deleteFailed"
	EventSendFailed    = "sendFailed"
	EventChatHistory   = "chatHistory"
	EventNewMessage    = "newMessage"
	EventSystemMessage = "systemMessage"
	EventRoomUsers     = "roomUsers"
	EventBanned        = "banned"
	EventBanList       = "banList"
	EventWarned        = "warned"
)

// Inbound event types received from connections.
const (
	EventAdminLogin  = "adminLogin"
	EventCreateRoom  = "createRoom"
	EventSearchRooms = "searchRooms"
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventDeleteRoom  = "deleteRoom"
	EventBanUser     = "banUser"
	EventUnbanUser   = "unbanUser"
	EventWarnUser    = "warnUser"
	EventListBans    = "listBans"
	EventListUsers   = "listUsers"
)

// Event is the outbound envelope written to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// InboundEvent is the tagged envelope read from websocket clients. Payload
// stays raw until the dispatcher knows which request type to decode into, so
// malformed input fails deterministically at the boundary.
type InboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AdminLoginRequest carries the reserved admin name and its secret.
type AdminLoginRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// CreateRoomRequest creates a room and auto-joins the creator.
type CreateRoomRequest struct {
	RoomName    string `json:"roomName"`
	HasPassword bool   `json:"hasPassword"`
	Password    string `json:"password"`
	Nickname    string `json:"nickname"`
}

// SearchRoomsRequest filters the room list by a case-sensitive substring.
type SearchRoomsRequest struct {
	Keyword string `json:"keyword"`
}

// JoinRoomRequest joins an existing room.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// LeaveRoomRequest leaves a room without disconnecting.
type LeaveRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

// SendMessageRequest posts a text or file message to a room.
type SendMessageRequest struct {
	RoomID   string      `json:"roomId"`
	Nickname string      `json:"nickname"`
	Kind     MessageKind `json:"type"`
	Message  string      `json:"message"`
	File     *FileRef    `json:"file"`
}

// DeleteRoomRequest deletes a room; owner only.
type DeleteRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

// TargetUserRequest names the target of an admin ban/warn/unban action.
type TargetUserRequest struct {
	TargetNick string `json:"targetNick"`
	Origin     string `json:"origin"`
}

// ListUsersRequest asks for the member list of a room; admin only.
type ListUsersRequest struct {
	RoomID string `json:"roomId"`
}

// JoinSuccessPayload confirms a join or create and names the room joined.
type JoinSuccessPayload struct {
	RoomID string `json:"roomId"`
}

// ReasonPayload carries the human-readable reason of a failure event.
type ReasonPayload struct {
	Reason string `json:"reason"`
}

// SystemMessagePayload is a server-generated notice in a room's stream.
type SystemMessagePayload struct {
	Text string `json:"text"`
}
