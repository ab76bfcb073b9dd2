package core

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"parlor/internal/models"
	"parlor/internal/validation"
)

// room is the registry's internal record. The password is only ever stored
// as a bcrypt hash; summaries expose just the hasPassword flag.
type room struct {
	id           string
	name         string
	hasPassword  bool
	passwordHash []byte
	owner        string
	members      []string // first-seen order, no duplicates
}

// RoomRegistry maps room ids to live rooms. Ids are time-derived and
// strictly increasing; a sequence bump breaks same-millisecond ties so two
// racing creations can never collide.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	order  []string // creation order, for stable room lists
	lastID int64
}

// NewRoomRegistry returns an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*room)}
}

func (r *RoomRegistry) nextID() string {
	id := time.Now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return strconv.FormatInt(id, 10)
}

// Create allocates a room with a fresh unique id, a sanitized name, and the
// creator as owner. The plaintext password never leaves this call.
func (r *RoomRegistry) Create(name string, hasPassword bool, password, owner string) (models.RoomSummary, error) {
	if err := validation.ValidateRoomName(name); err != nil {
		return models.RoomSummary{}, models.NewValidationError(err.Error())
	}
	if hasPassword && password == "" {
		return models.RoomSummary{}, models.NewValidationError("password must not be empty")
	}

	var hash []byte
	if hasPassword {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.RoomSummary{}, models.NewInternalError(err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm := &room{
		id:           r.nextID(),
		name:         validation.Sanitize(strings.TrimSpace(name)),
		hasPassword:  hasPassword,
		passwordHash: hash,
		owner:        owner,
	}
	r.rooms[rm.id] = rm
	r.order = append(r.order, rm.id)

	return summaryOf(rm), nil
}

// Exists reports whether the room id refers to a live room.
func (r *RoomRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok
}

// NameOf returns the (sanitized) display name of a room.
func (r *RoomRegistry) NameOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return "", false
	}
	return rm.name, true
}

// OwnerOf returns the owner nickname of a room.
func (r *RoomRegistry) OwnerOf(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return "", false
	}
	return rm.owner, true
}

// Authenticate checks a join attempt's password against the room's hash.
// Rooms without a password accept any input.
func (r *RoomRegistry) Authenticate(id, password string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[id]
	if !ok {
		return models.NewNotFoundError("room not found")
	}
	if !rm.hasPassword {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(rm.passwordHash, []byte(password)); err != nil {
		return models.NewUnauthorizedError("wrong password")
	}
	return nil
}

// Summaries returns all live rooms in creation order.
func (r *RoomRegistry) Summaries() []models.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RoomSummary, 0, len(r.order))
	for _, id := range r.order {
		if rm, ok := r.rooms[id]; ok {
			out = append(out, summaryOf(rm))
		}
	}
	return out
}

// Search returns rooms whose name contains keyword as a case-sensitive
// substring. An empty keyword matches all rooms. No ranking is applied.
func (r *RoomRegistry) Search(keyword string) []models.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RoomSummary, 0, len(r.order))
	for _, id := range r.order {
		rm, ok := r.rooms[id]
		if !ok {
			continue
		}
		if keyword == "" || strings.Contains(rm.name, keyword) {
			out = append(out, summaryOf(rm))
		}
	}
	return out
}

// Delete removes a room and returns the members that were forced out.
// Only the owner may delete a room.
func (r *RoomRegistry) Delete(id, requester string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return nil, models.NewNotFoundError("room not found")
	}
	if rm.owner != requester {
		return nil, models.NewUnauthorizedError("only the room owner can delete it")
	}

	members := make([]string, len(rm.members))
	copy(members, rm.members)

	delete(r.rooms, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return members, nil
}

// AddMember appends a nickname to the room's member list, preserving
// first-seen order. Idempotent.
func (r *RoomRegistry) AddMember(id, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return models.NewNotFoundError("room not found")
	}
	for _, m := range rm.members {
		if m == nickname {
			return nil
		}
	}
	rm.members = append(rm.members, nickname)
	return nil
}

// RemoveMember drops a nickname from the room's member list. No-op if the
// room or membership does not exist.
func (r *RoomRegistry) RemoveMember(id, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return
	}
	for i, m := range rm.members {
		if m == nickname {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			return
		}
	}
}

// Members returns a copy of the room's member list in join order.
func (r *RoomRegistry) Members(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[id]
	if !ok {
		return []string{}
	}
	out := make([]string, len(rm.members))
	copy(out, rm.members)
	return out
}

func summaryOf(rm *room) models.RoomSummary {
	return models.RoomSummary{
		ID:          rm.id,
		Name:        rm.name,
		HasPassword: rm.hasPassword,
		Owner:       rm.owner,
	}
}
