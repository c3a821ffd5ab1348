package session

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"codraw/internal/models"
)

// Session binds one connection to a room and a user. The binding is
// established by create-room or join-room; until then (and after a
// disconnect) every other inbound event is silently discarded, since such
// events can legitimately race the connection teardown.
type Session struct {
	registry *Registry
	client   *Client
	log      *zap.Logger

	room *Room
	user models.User
}

func NewSession(registry *Registry, client *Client, log *zap.Logger) *Session {
	return &Session{registry: registry, client: client, log: log}
}

// HandleFrame dispatches one inbound frame.
func (s *Session) HandleFrame(frame models.WSFrame) {
	switch frame.Type {
	case models.TypeCreateRoom:
		s.handleCreateRoom(frame.Data)
	case models.TypeJoinRoom:
		s.handleJoinRoom(frame.Data)
	case models.TypeShareDocument:
		s.handleShareDocument(frame.Data)
	case models.TypeStrokeStart, models.TypeStrokeMove:
		s.relayLive(frame.Type, frame.Data)
	case models.TypeStrokeEnd:
		s.handleStrokeEnd(frame.Data)
	case models.TypeAddShape:
		s.handleAddShape(frame.Data)
	case models.TypeUndo:
		s.handleUndo(frame.Data)
	case models.TypeClearPage:
		s.handleClearPage(frame.Data)
	case models.TypeCursorMove:
		s.handleCursorMove(frame.Data)
	case models.TypePageChange:
		s.handlePageChange(frame.Data)
	case models.TypeChatMessage:
		s.handleChatMessage(frame.Data)
	default:
		s.client.Send(errFrame(models.ErrUnknownType))
	}
}

func (s *Session) active() bool { return s.room != nil }

func (s *Session) handleCreateRoom(data interface{}) {
	var req models.CreateRoomRequest
	decode(data, &req)
	username := strings.TrimSpace(req.Username)
	if username == "" {
		s.client.Send(errFrame(models.ErrInvalidUsername))
		return
	}

	// A connection belongs to at most one room; rebinding leaves the old
	// room first.
	s.leaveRoom()

	room := s.registry.CreateRoom()
	user := models.NewUser(s.client.ID, username, room.PickColor())
	for !room.Join(s.client, user) {
		// A stale timer reclaimed the reissued code before we entered;
		// take a fresh room.
		room = s.registry.CreateRoom()
		user = models.NewUser(s.client.ID, username, room.PickColor())
	}
	s.room, s.user = room, user

	s.log.Info("user created room",
		zap.String("code", room.Code), zap.String("username", username))

	// Reply to the requester only; there is nobody else to tell yet.
	s.client.Send(models.WSFrame{Type: models.TypeRoomCreated, Data: models.RoomCreated{
		Code:    room.Code,
		User:    user,
		Members: room.Members(),
	}})
}

func (s *Session) handleJoinRoom(data interface{}) {
	var req models.JoinRoomRequest
	decode(data, &req)
	username := strings.TrimSpace(req.Username)
	if username == "" {
		s.client.Send(errFrame(models.ErrInvalidUsername))
		return
	}

	room, ok := s.registry.Lookup(req.Code)
	if !ok {
		s.client.Send(errFrame(models.ErrRoomNotFound))
		return
	}

	// A connection belongs to at most one room; rebinding leaves the old
	// room first.
	s.leaveRoom()

	user := models.NewUser(s.client.ID, username, room.PickColor())
	for !room.Join(s.client, user) {
		// The deletion timer reclaimed the room between lookup and join;
		// re-resolve the code.
		room, ok = s.registry.Lookup(req.Code)
		if !ok {
			s.client.Send(errFrame(models.ErrRoomNotFound))
			return
		}
		user = models.NewUser(s.client.ID, username, room.PickColor())
	}
	s.room, s.user = room, user

	room.Broadcast(s.client, models.WSFrame{Type: models.TypeUserJoined, Data: user})

	members, history, doc := room.Snapshot()
	s.log.Info("user joined room",
		zap.String("code", room.Code), zap.String("username", username),
		zap.Int("members", len(members)))

	s.client.Send(models.WSFrame{Type: models.TypeRoomJoined, Data: models.RoomJoined{
		Code:        room.Code,
		User:        user,
		Members:     members,
		PageHistory: history,
		Document:    doc,
	}})
}

func (s *Session) handleShareDocument(data interface{}) {
	if !s.active() {
		return
	}
	var doc models.Document
	decode(data, &doc)
	s.room.SetDocument(doc)
	s.room.Broadcast(s.client, models.WSFrame{Type: models.TypeDocumentShared, Data: doc})
	s.log.Info("document shared",
		zap.String("code", s.room.Code), zap.String("name", doc.Name),
		zap.Int("pages", doc.PageCount))
}

// relayLive forwards in-progress stroke geometry with the sender attached.
// These frames are never persisted and never replayed to late joiners.
func (s *Session) relayLive(frameType string, data interface{}) {
	if !s.active() {
		return
	}
	payload, ok := data.(map[string]interface{})
	if !ok {
		payload = make(map[string]interface{})
	}
	payload["userId"] = s.user.ID
	payload["username"] = s.user.Username
	s.room.Broadcast(s.client, models.WSFrame{Type: frameType, Data: payload})
}

func (s *Session) handleStrokeEnd(data interface{}) {
	if !s.active() {
		return
	}
	var req models.EditRequest
	decode(data, &req)
	if req.Page < 1 {
		return
	}
	edit := s.own(req.Edit, models.EditStroke)
	s.room.AppendEdit(req.Page, edit)
	s.room.Broadcast(s.client, models.WSFrame{Type: models.TypeStrokeEnd, Data: models.EditBroadcast{
		Page: req.Page,
		Edit: edit,
	}})
}

func (s *Session) handleAddShape(data interface{}) {
	if !s.active() {
		return
	}
	var req models.ShapeRequest
	decode(data, &req)
	if req.Page < 1 {
		return
	}
	shape := s.own(req.Shape, models.EditShape)
	s.room.AppendEdit(req.Page, shape)
	s.room.Broadcast(s.client, models.WSFrame{Type: models.TypeAddShape, Data: models.ShapeBroadcast{
		Page:  req.Page,
		Shape: shape,
	}})
}

// own tags an incoming edit with the sending user, overriding whatever the
// client claimed.
func (s *Session) own(e models.Edit, kind models.EditKind) models.Edit {
	if e.Kind == "" {
		e.Kind = kind
	}
	e.OwnerID = s.user.ID
	e.OwnerName = s.user.Username
	return e
}

func (s *Session) handleUndo(data interface{}) {
	if !s.active() {
		return
	}
	var req models.PageRequest
	decode(data, &req)
	if req.Page < 1 {
		return
	}
	edits := s.room.UndoLast(req.Page, s.user.ID)
	s.room.BroadcastAll(models.WSFrame{Type: models.TypePageEdits, Data: models.PageEdits{
		Page:  req.Page,
		Edits: edits,
	}})
}

func (s *Session) handleClearPage(data interface{}) {
	if !s.active() {
		return
	}
	var req models.PageRequest
	decode(data, &req)
	if req.Page < 1 {
		return
	}
	edits := s.room.ClearPage(req.Page)
	s.room.BroadcastAll(models.WSFrame{Type: models.TypePageEdits, Data: models.PageEdits{
		Page:  req.Page,
		Edits: edits,
	}})
}

func (s *Session) handleCursorMove(data interface{}) {
	if !s.active() {
		return
	}
	var req models.CursorMove
	decode(data, &req)
	s.room.Broadcast(s.client, models.WSFrame{Type: models.TypeCursorMove, Data: models.CursorBroadcast{
		UserID:   s.user.ID,
		Username: s.user.Username,
		Color:    s.user.Color,
		Initials: s.user.Initials,
		X:        req.X,
		Y:        req.Y,
		Page:     req.Page,
	}})
}

func (s *Session) handlePageChange(data interface{}) {
	if !s.active() {
		return
	}
	var req models.PageRequest
	decode(data, &req)
	if req.Page < 1 {
		return
	}
	// The room's membership table is the single source for currentPage.
	s.room.SetMemberPage(s.client, req.Page)
	s.room.Broadcast(s.client, models.WSFrame{Type: models.TypePageChange, Data: models.PageChangeBroadcast{
		UserID:   s.user.ID,
		Username: s.user.Username,
		Page:     req.Page,
	}})
}

func (s *Session) handleChatMessage(data interface{}) {
	if !s.active() {
		return
	}
	var req models.ChatRequest
	decode(data, &req)
	// Echoed to the sender too, so every client renders the chat log from
	// the same authoritative sequence.
	s.room.BroadcastAll(models.WSFrame{Type: models.TypeChatMessage, Data: models.ChatMessage{
		UserID:    s.user.ID,
		Username:  s.user.Username,
		Color:     s.user.Color,
		Initials:  s.user.Initials,
		Text:      req.Text,
		Timestamp: time.Now().UnixMilli(),
	}})
}

// Close runs disconnect cleanup: the member leaves its room, the remaining
// members hear about it, and an emptied room is scheduled for deletion.
func (s *Session) Close() {
	s.leaveRoom()
}

// leaveRoom detaches the session from its current room, if any. Also the
// first step of rebinding via a second create-room/join-room.
func (s *Session) leaveRoom() {
	if s.room == nil {
		return
	}
	room := s.room
	s.room = nil

	remaining := room.Leave(s.client)
	room.BroadcastAll(models.WSFrame{Type: models.TypeUserLeft, Data: models.UserLeft{
		UserID:   s.user.ID,
		Username: s.user.Username,
	}})
	s.log.Info("user left room",
		zap.String("code", room.Code), zap.String("username", s.user.Username),
		zap.Int("remaining", remaining))

	if remaining == 0 {
		s.registry.ScheduleDeletion(room.Code)
	}
}

func decode(in, out any) {
	b, _ := json.Marshal(in)
	_ = json.Unmarshal(b, out)
}

func errFrame(code string) models.WSFrame {
	return models.WSFrame{Type: models.TypeError, Data: models.ErrorData{Code: code}}
}
