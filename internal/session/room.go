package session

import (
	"math/rand"
	"sync"
	"time"

	"codraw/internal/models"
)

// userColors is the palette members are assigned from. Collisions between
// members are tolerated once the palette runs out.
var userColors = []string{
	"#6c5ce7", "#ff6b6b", "#339af0", "#51cf66", "#fcc419",
	"#ff922b", "#f06595", "#20c997", "#845ef7", "#e64980",
	"#5c7cfa", "#ff8787", "#38d9a9", "#fab005", "#4dabf7",
}

// Room holds the authoritative state for one collaborative session:
// membership, the per-page edit history and the shared document. All
// mutation is serialized by a single mutex; rooms are fully independent.
type Room struct {
	Code      string
	CreatedAt time.Time

	mu       sync.Mutex
	members  map[*Client]*models.User
	history  map[int][]models.Edit
	document *models.Document
	deleted  bool
}

func NewRoom(code string) *Room {
	return &Room{
		Code:      code,
		CreatedAt: time.Now(),
		members:   make(map[*Client]*models.User),
		history:   make(map[int][]models.Edit),
	}
}

// Join adds the member. It fails only when the room has already been
// reclaimed by the registry; callers handle that by re-resolving the code.
func (r *Room) Join(c *Client, u models.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return false
	}
	r.members[c] = &u
	return true
}

// markDeleted flags an empty room as reclaimed, so a join racing the
// deletion timer fails instead of entering a room the registry no longer
// knows. Fails if a member arrived first.
func (r *Room) markDeleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return false
	}
	r.deleted = true
	return true
}

// Leave removes the client and reports how many members remain.
func (r *Room) Leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
	return len(r.members)
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a copy of the current membership.
func (r *Room) Members() []models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

func (r *Room) membersLocked() []models.User {
	out := make([]models.User, 0, len(r.members))
	for _, u := range r.members {
		out = append(out, *u)
	}
	return out
}

// PickColor prefers a palette color no current member uses and falls back
// to a random one.
func (r *Room) PickColor() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	used := make(map[string]bool, len(r.members))
	for _, u := range r.members {
		used[u.Color] = true
	}
	free := make([]string, 0, len(userColors))
	for _, c := range userColors {
		if !used[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return userColors[rand.Intn(len(userColors))]
	}
	return free[rand.Intn(len(free))]
}

// Snapshot returns the full current state sent to a joining member. This
// is the hub's sole consistency mechanism; there is no event replay.
func (r *Room) Snapshot() ([]models.User, map[int][]models.Edit, *models.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make(map[int][]models.Edit, len(r.history))
	for page, edits := range r.history {
		// Non-nil copies so cleared pages serialize as [] rather than null.
		cp := make([]models.Edit, len(edits))
		copy(cp, edits)
		history[page] = cp
	}
	return r.membersLocked(), history, r.document
}

// SetDocument stores a newly shared document and drops the entire page
// history: edits are page-relative, so a new document invalidates them all.
func (r *Room) SetDocument(doc models.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.document = &doc
	r.history = make(map[int][]models.Edit)
}

func (r *Room) AppendEdit(page int, e models.Edit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[page] = append(r.history[page], e)
}

// UndoLast removes the most recent edit on the page owned by ownerID, if
// any, and returns a copy of the page's current edits either way.
func (r *Room) UndoLast(page int, ownerID string) []models.Edit {
	r.mu.Lock()
	defer r.mu.Unlock()

	edits := r.history[page]
	for i := len(edits) - 1; i >= 0; i-- {
		if edits[i].OwnerID == ownerID {
			r.history[page] = append(edits[:i:i], edits[i+1:]...)
			break
		}
	}
	return append([]models.Edit{}, r.history[page]...)
}

// ClearPage unconditionally empties the page and returns the empty list.
func (r *Room) ClearPage(page int) []models.Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[page] = nil
	return []models.Edit{}
}

// SetMemberPage records the page a member was last observed viewing.
func (r *Room) SetMemberPage(c *Client, page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.members[c]; ok {
		u.Page = page
	}
}

// Broadcast fans a frame out to every member except the sender. Delivery
// is fire-and-forget; targets are collected under the lock and written
// outside it.
func (r *Room) Broadcast(sender *Client, frame models.WSFrame) {
	for _, c := range r.clients(sender) {
		c.Send(frame)
	}
}

// BroadcastAll fans a frame out to every member including the sender.
func (r *Room) BroadcastAll(frame models.WSFrame) {
	for _, c := range r.clients(nil) {
		c.Send(frame)
	}
}

func (r *Room) clients(skip *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.members))
	for c := range r.members {
		if c == skip {
			continue
		}
		out = append(out, c)
	}
	return out
}
