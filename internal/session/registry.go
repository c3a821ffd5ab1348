package session

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const codeBytes = 3 // 6 hex characters

// DefaultGraceWindow is how long an empty room survives before deletion.
const DefaultGraceWindow = 5 * time.Minute

// Registry owns the table of live rooms. Codes are unique among live
// rooms only; a deleted room's code may be reused later.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	grace time.Duration
	log   *zap.Logger
}

func NewRegistry(grace time.Duration, log *zap.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Registry{
		rooms: make(map[string]*Room),
		grace: grace,
		log:   log,
	}
}

// CreateRoom generates a fresh code, retrying on collision, and inserts an
// empty room under it.
func (g *Registry) CreateRoom() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := generateCode()
	for {
		if _, taken := g.rooms[code]; !taken {
			break
		}
		code = generateCode()
	}
	room := NewRoom(code)
	g.rooms[code] = room
	g.log.Info("room created", zap.String("code", code))
	return room
}

// GetOrCreate returns the room under code, creating an empty one if
// needed. Used internally so components can address rooms without
// null-checking.
func (g *Registry) GetOrCreate(code string) *Room {
	code = normalizeCode(code)
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[code]; ok {
		return r
	}
	r := NewRoom(code)
	g.rooms[code] = r
	return r
}

// Lookup is case-insensitive and never creates: a mistyped code on join
// must fail visibly, not mint a fresh empty room.
func (g *Registry) Lookup(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[normalizeCode(code)]
	return r, ok
}

func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// ScheduleDeletion arms a one-shot timer for the room. Membership is
// re-checked when the timer fires, not now, so a rejoin during the grace
// window rescues the room; stale timers from earlier empty periods are
// harmless for the same reason. Marking the room deleted under its own
// lock makes the reclaim atomic against a join that already resolved the
// code: such a join fails and re-resolves instead of entering a room the
// registry just dropped.
func (g *Registry) ScheduleDeletion(code string) {
	code = normalizeCode(code)
	time.AfterFunc(g.grace, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		room, ok := g.rooms[code]
		if !ok || !room.markDeleted() {
			return
		}
		delete(g.rooms, code)
		g.log.Info("room deleted", zap.String("code", code))
	})
}

func generateCode() string {
	b := make([]byte, codeBytes)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
