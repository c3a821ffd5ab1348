package models

import (
	"encoding/json"
	"strings"
)

// WSFrame is the envelope for every message in both directions.
type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client -> hub frame types.
const (
	TypeCreateRoom    = "create-room"
	TypeJoinRoom      = "join-room"
	TypeShareDocument = "share-document"
	TypeStrokeStart   = "stroke-start"
	TypeStrokeMove    = "stroke-move"
	TypeStrokeEnd     = "stroke-end"
	TypeAddShape      = "add-shape"
	TypeUndo          = "undo"
	TypeClearPage     = "clear-page"
	TypeCursorMove    = "cursor-move"
	TypePageChange    = "page-change"
	TypeChatMessage   = "chat-message"
)

// Hub -> client frame types (reuses the event types above for fan-out).
const (
	TypeRoomCreated    = "room-created"
	TypeRoomJoined     = "room-joined"
	TypeError          = "error"
	TypeUserJoined     = "user-joined"
	TypeUserLeft       = "user-left"
	TypeDocumentShared = "document-shared"
	TypePageEdits      = "page-edits"
)

// Error codes carried by TypeError frames.
const (
	ErrRoomNotFound    = "room_not_found"
	ErrInvalidUsername = "invalid_username"
	ErrUnknownType     = "unknown_type"
)

// User is one member of a room, stable for the lifetime of its connection.
type User struct {
	ID       string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Initials string `json:"initials"`
	Page     int    `json:"page"`
}

// NewUser derives initials from the username and starts everyone on page 1.
func NewUser(id, username, color string) User {
	return User{
		ID:       id,
		Username: username,
		Color:    color,
		Initials: initials(username),
		Page:     1,
	}
}

func initials(username string) string {
	r := []rune(strings.TrimSpace(username))
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}

// EditKind discriminates the two persisted edit variants.
type EditKind string

const (
	EditStroke EditKind = "stroke"
	EditShape  EditKind = "shape"
)

// Edit is one persisted contribution to a page. Geometry is opaque to the
// hub: it is stored, replicated and replayed verbatim, never inspected.
type Edit struct {
	Kind      EditKind        `json:"kind,omitempty"`
	Geometry  json.RawMessage `json:"geometry,omitempty"`
	OwnerID   string          `json:"userId"`
	OwnerName string          `json:"username"`
}

// Document is the shared binary blob, transferred inline as base64.
type Document struct {
	Data      string `json:"data"`
	Name      string `json:"name"`
	PageCount int    `json:"pageCount"`
}

/*** Requests ***/

type CreateRoomRequest struct {
	Username string `json:"username"`
}

type JoinRoomRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
}

type EditRequest struct {
	Page int  `json:"page"`
	Edit Edit `json:"edit"`
}

type ShapeRequest struct {
	Page  int  `json:"page"`
	Shape Edit `json:"shape"`
}

type PageRequest struct {
	Page int `json:"page"`
}

type CursorMove struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Page int     `json:"page"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

/*** Acks and broadcasts ***/

type RoomCreated struct {
	Code    string `json:"code"`
	User    User   `json:"user"`
	Members []User `json:"members"`
}

type RoomJoined struct {
	Code        string         `json:"code"`
	User        User           `json:"user"`
	Members     []User         `json:"members"`
	PageHistory map[int][]Edit `json:"pageHistory"`
	Document    *Document      `json:"document"`
}

type ErrorData struct {
	Code string `json:"code"`
}

// PageEdits is the full-state replacement broadcast used by undo and
// clear-page instead of a delta.
type PageEdits struct {
	Page  int    `json:"page"`
	Edits []Edit `json:"edits"`
}

type EditBroadcast struct {
	Page int  `json:"page"`
	Edit Edit `json:"edit"`
}

type ShapeBroadcast struct {
	Page  int  `json:"page"`
	Shape Edit `json:"shape"`
}

type CursorBroadcast struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Color    string  `json:"color"`
	Initials string  `json:"initials"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Page     int     `json:"page"`
}

type PageChangeBroadcast struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Page     int    `json:"page"`
}

type ChatMessage struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	Initials  string `json:"initials"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type UserLeft struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// StatusResponse is the read-only operational status report.
type StatusResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
}
