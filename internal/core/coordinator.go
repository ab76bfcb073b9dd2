package core

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"parlor/internal/models"
	"parlor/internal/observability"
	"parlor/internal/validation"
)

// Protocol reason strings. The ban and password texts are kept verbatim from
// the legacy client protocol.
const (
	ReasonBanned        = "밴됨"
	ReasonBannedByAdmin = "관리자에 의해 밴됨"
	ReasonRoomNotFound  = "존재하지 않는 방"
	ReasonWrongPassword = "비밀번호가 틀립니다"
	ReasonRoomDeleted   = "방이 삭제되었습니다"
)

const (
	defaultLoginLimit  = 5
	defaultLoginWindow = time.Minute
)

// Transport is the delivery boundary the coordinator drives. The hub owns
// the actual sockets; the coordinator only decides who receives what.
type Transport interface {
	// Send delivers an event to a single connection.
	Send(connID string, ev models.Event)
	// SendRoom delivers an event to every connection in a room group.
	SendRoom(roomID string, ev models.Event)
	// SendAll delivers an event to every connection.
	SendAll(ev models.Event)
	// JoinGroup adds a connection to a room's broadcast group.
	JoinGroup(roomID, connID string)
	// LeaveGroup removes a connection from a room's broadcast group.
	LeaveGroup(roomID, connID string)
	// Terminate force-disconnects a connection.
	Terminate(connID string)
}

// Config holds the coordinator's tunables.
type Config struct {
	AdminName       string
	AdminPassword   string
	HistoryCapacity int

	// Failed admin logins allowed per origin within LoginWindow before
	// further attempts are rejected outright.
	LoginLimit  int
	LoginWindow time.Duration
}

// session tracks one connection's place in the state machine:
// anonymous -> authenticated (nickname bound) -> in a room.
type session struct {
	id       string
	origin   string
	nickname string
	isAdmin  bool
	roomID   string
}

// Coordinator serializes every state mutation behind one mutex so
// interleaved events against the same room never observe a torn state, and
// broadcast order always equals append order.
type Coordinator struct {
	mu        sync.Mutex
	cfg       Config
	transport Transport

	bans     *BanList
	identity *IdentityBinding
	rooms    *RoomRegistry
	history  *HistoryBuffer

	sessions      map[string]*session
	loginFailures map[string][]time.Time

	log *observability.WSLogger
	now func() time.Time
}

// NewCoordinator wires the stores to a transport.
func NewCoordinator(cfg Config, transport Transport) *Coordinator {
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = defaultLoginLimit
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = defaultLoginWindow
	}
	return &Coordinator{
		cfg:           cfg,
		transport:     transport,
		bans:          NewBanList(),
		identity:      NewIdentityBinding(),
		rooms:         NewRoomRegistry(),
		history:       NewHistoryBuffer(cfg.HistoryCapacity),
		sessions:      make(map[string]*session),
		loginFailures: make(map[string][]time.Time),
		log:           observability.NewWSLogger("coordinator"),
		now:           time.Now,
	}
}

// Bans exposes the ban list for readiness and test inspection.
func (c *Coordinator) Bans() *BanList { return c.bans }

// Rooms exposes the room registry for the HTTP search surface.
func (c *Coordinator) Rooms() *RoomRegistry { return c.rooms }

// Connect admits a new connection, or rejects it immediately when its origin
// is banned. Admitted connections receive the current room list.
func (c *Coordinator) Connect(ctx context.Context, connID, origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bans.IsBanned(origin) {
		c.transport.Send(connID, models.Event{Type: models.EventBanned, Payload: models.ReasonPayload{Reason: ReasonBanned}})
		c.transport.Terminate(connID)
		c.log.LogDisconnect(ctx, connID, "", "banned origin")
		return
	}

	c.sessions[connID] = &session{id: connID, origin: origin}
	c.transport.Send(connID, c.roomListEvent())
	c.log.LogConnect(ctx, connID, "")
}

// AdminLogin grants the admin capability when both halves of the credential
// match. Failures are deliberately generic so a caller cannot learn which
// half was wrong, and repeated failures from one origin are throttled.
func (c *Coordinator) AdminLogin(ctx context.Context, connID string, req models.AdminLoginRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok {
		return
	}

	if c.loginThrottled(sess.origin) {
		c.transport.Send(connID, models.Event{Type: models.EventAdminFailed})
		return
	}

	nameOK := subtle.ConstantTimeCompare([]byte(req.Nickname), []byte(c.cfg.AdminName)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(c.cfg.AdminPassword)) == 1
	if !nameOK || !passOK {
		c.recordLoginFailure(sess.origin)
		c.transport.Send(connID, models.Event{Type: models.EventAdminFailed})
		c.log.LogMessage(ctx, connID, "", "admin login rejected")
		return
	}

	sess.isAdmin = true
	delete(c.loginFailures, sess.origin)
	c.transport.Send(connID, models.Event{Type: models.EventAdminSuccess})
	c.transport.Send(connID, models.Event{Type: models.EventBanList, Payload: c.bans.List()})
	c.log.LogMessage(ctx, connID, "", "admin login accepted")
}

// CreateRoom creates a room, claims the creator's identity, and auto-joins
// the creator. A failed creation leaves every store untouched.
func (c *Coordinator) CreateRoom(ctx context.Context, connID string, req models.CreateRoomRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok {
		return
	}

	fail := func(reason string) {
		c.transport.Send(connID, models.Event{Type: models.EventCreateFailed, Payload: models.ReasonPayload{Reason: reason}})
	}

	if err := validation.ValidateNickname(req.Nickname); err != nil {
		fail(err.Error())
		return
	}
	if err := validation.ValidateRoomName(req.RoomName); err != nil {
		fail(err.Error())
		return
	}
	if req.HasPassword && req.Password == "" {
		fail("password must not be empty")
		return
	}
	if c.bans.IsBanned(sess.origin) {
		fail(ReasonBanned)
		return
	}

	prevNick, hadPrev := c.identity.NameOf(sess.id)
	nickname := validation.Sanitize(strings.TrimSpace(req.Nickname))
	if err := c.claimIdentity(sess, nickname); err != nil {
		fail(models.Reason(err))
		return
	}

	summary, err := c.rooms.Create(req.RoomName, req.HasPassword, req.Password, nickname)
	if err != nil {
		// A failed create must leave the binding as it was
		if !hadPrev {
			c.identity.Release(sess.id)
			sess.nickname = ""
		} else if prevNick != nickname {
			_ = c.identity.Claim(prevNick, sess.id)
			sess.nickname = prevNick
		}
		fail(models.Reason(err))
		return
	}

	c.enterRoom(sess, summary.ID)
	c.transport.SendAll(c.roomListEvent())
	observability.RecordRoomCount(len(c.rooms.Summaries()))
	c.log.LogMessage(ctx, connID, summary.ID, "room created")
}

// JoinRoom moves an authenticated connection into a room, backfills its
// history, and announces the arrival to the whole room, joiner included.
func (c *Coordinator) JoinRoom(ctx context.Context, connID string, req models.JoinRoomRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok {
		return
	}

	fail := func(reason string) {
		c.transport.Send(connID, models.Event{Type: models.EventJoinFailed, Payload: models.ReasonPayload{Reason: reason}})
	}

	if !c.rooms.Exists(req.RoomID) {
		fail(ReasonRoomNotFound)
		return
	}
	if err := c.rooms.Authenticate(req.RoomID, req.Password); err != nil {
		fail(ReasonWrongPassword)
		return
	}
	if err := validation.ValidateNickname(req.Nickname); err != nil {
		fail(err.Error())
		return
	}
	if c.bans.IsBanned(sess.origin) {
		fail(ReasonBanned)
		return
	}

	nickname := validation.Sanitize(strings.TrimSpace(req.Nickname))
	if err := c.claimIdentity(sess, nickname); err != nil {
		fail(models.Reason(err))
		return
	}

	c.enterRoom(sess, req.RoomID)
	c.log.LogMessage(ctx, connID, req.RoomID, "joined room")
}

// SendMessage appends a message under the room's serialized section and then
// broadcasts it, so every member observes the same order as the history log.
func (c *Coordinator) SendMessage(ctx context.Context, connID string, req models.SendMessageRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok {
		return
	}

	fail := func(reason string) {
		c.transport.Send(connID, models.Event{Type: models.EventSendFailed, Payload: models.ReasonPayload{Reason: reason}})
	}

	if sess.nickname == "" || sess.nickname != validation.Sanitize(strings.TrimSpace(req.Nickname)) {
		fail("nickname is not bound to this connection")
		return
	}
	if !c.rooms.Exists(req.RoomID) {
		fail(ReasonRoomNotFound)
		return
	}

	msg := models.Message{
		Nickname: sess.nickname,
		Kind:     req.Kind,
		Time:     c.now(),
	}
	switch req.Kind {
	case models.KindFile:
		if req.File == nil || req.File.URL == "" {
			fail("file reference missing")
			return
		}
		// FileRefs come from the upload collaborator, not from free text;
		// they are passed through untouched.
		msg.File = req.File
	case models.KindText, "":
		if err := validation.ValidateMessage(req.Message); err != nil {
			fail(err.Error())
			return
		}
		msg.Kind = models.KindText
		msg.Text = validation.Sanitize(req.Message)
	default:
		fail(fmt.Sprintf("unknown message type %q", req.Kind))
		return
	}

	c.history.Append(req.RoomID, msg)
	c.transport.SendRoom(req.RoomID, models.Event{Type: models.EventNewMessage, Payload: msg})
	observability.RecordMessage(req.RoomID, string(msg.Kind))
}

// LeaveRoom moves a connection back to the authenticated state and notifies
// the remaining members.
func (c *Coordinator) LeaveRoom(ctx context.Context, connID string, req models.LeaveRoomRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok || sess.roomID == "" || sess.roomID != req.RoomID {
		return
	}
	c.exitRoom(sess, "님이 퇴장했습니다")
	c.log.LogMessage(ctx, connID, req.RoomID, "left room")
}

// DeleteRoom removes a room, its history, and its broadcast group. Owner
// only; members are forced back to the authenticated state.
func (c *Coordinator) DeleteRoom(ctx context.Context, connID string, req models.DeleteRoomRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok {
		return
	}

	members, err := c.rooms.Delete(req.RoomID, sess.nickname)
	if err != nil {
		c.transport.Send(connID, models.Event{Type: models.EventDeleteFailed, Payload: models.ReasonPayload{Reason: models.Reason(err)}})
		return
	}

	c.transport.SendRoom(req.RoomID, models.Event{Type: models.EventSystemMessage, Payload: models.SystemMessagePayload{Text: ReasonRoomDeleted}})
	for _, member := range members {
		if memberConn, ok := c.identity.Lookup(member); ok {
			if ms, ok := c.sessions[memberConn]; ok && ms.roomID == req.RoomID {
				ms.roomID = ""
			}
			c.transport.LeaveGroup(req.RoomID, memberConn)
		}
	}
	c.history.Drop(req.RoomID)
	c.transport.SendAll(c.roomListEvent())
	observability.RecordRoomCount(len(c.rooms.Summaries()))
	c.log.LogMessage(ctx, connID, req.RoomID, "room deleted")
}

// SearchRooms answers with the filtered room list. The keyword passes
// through the same sanitizer as stored names so escaped names still match.
func (c *Coordinator) SearchRooms(ctx context.Context, connID string, req models.SearchRoomsRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyword := validation.Sanitize(req.Keyword)
	c.transport.Send(connID, models.Event{Type: models.EventRoomList, Payload: c.rooms.Search(keyword)})
}

// BanUser bans the target's origin, force-disconnects it, and releases its
// bindings as if it had disconnected. Admin only; unknown targets are a
// no-op. Admin connections receive the refreshed ban list.
func (c *Coordinator) BanUser(ctx context.Context, connID string, req models.TargetUserRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok || !sess.isAdmin {
		return
	}

	targetConn, ok := c.identity.Lookup(req.TargetNick)
	if !ok {
		return
	}
	target, ok := c.sessions[targetConn]
	if !ok {
		return
	}

	c.bans.Ban(target.origin)
	c.transport.Send(targetConn, models.Event{Type: models.EventBanned, Payload: models.ReasonPayload{Reason: ReasonBannedByAdmin}})
	c.cleanupSession(target, "님이 추방되었습니다")
	c.transport.Terminate(targetConn)
	delete(c.sessions, targetConn)

	c.sendToAdmins(models.Event{Type: models.EventBanList, Payload: c.bans.List()})
	c.log.LogMessage(ctx, connID, "", "banned "+target.origin)
}

// UnbanUser removes an origin from the ban list. Admin only.
func (c *Coordinator) UnbanUser(ctx context.Context, connID string, req models.TargetUserRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok || !sess.isAdmin {
		return
	}

	c.bans.Unban(req.Origin)
	c.sendToAdmins(models.Event{Type: models.EventBanList, Payload: c.bans.List()})
	c.log.LogMessage(ctx, connID, "", "unbanned "+req.Origin)
}

// WarnUser delivers a warning to the target connection. Admin only; no
// state changes.
func (c *Coordinator) WarnUser(ctx context.Context, connID string, req models.TargetUserRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok || !sess.isAdmin {
		return
	}

	if targetConn, ok := c.identity.Lookup(req.TargetNick); ok {
		c.transport.Send(targetConn, models.Event{Type: models.EventWarned})
	}
}

// ListBans answers with the current ban list. Admin only.
func (c *Coordinator) ListBans(ctx context.Context, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok || !sess.isAdmin {
		return
	}
	c.transport.Send(connID, models.Event{Type: models.EventBanList, Payload: c.bans.List()})
}

// ListUsers answers with a room's member list. Admin only.
func (c *Coordinator) ListUsers(ctx context.Context, connID string, req models.ListUsersRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok || !sess.isAdmin {
		return
	}
	if !c.rooms.Exists(req.RoomID) {
		c.transport.Send(connID, models.Event{Type: models.EventSystemMessage, Payload: models.SystemMessagePayload{Text: ReasonRoomNotFound}})
		return
	}
	c.transport.Send(connID, models.Event{Type: models.EventRoomUsers, Payload: c.rooms.Members(req.RoomID)})
}

// Disconnect releases everything tied to the connection. Safe to call more
// than once; a second call finds no session and returns.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[connID]
	if !ok {
		return
	}
	c.cleanupSession(sess, "님이 퇴장했습니다")
	delete(c.sessions, connID)
	c.transport.SendAll(c.roomListEvent())
	c.log.LogDisconnect(ctx, connID, sess.roomID, "client disconnected")
}

// claimIdentity binds a nickname to the session. The reserved admin name can
// only be claimed by a connection that already holds the admin capability,
// and the failure is distinct from an ordinary name conflict.
func (c *Coordinator) claimIdentity(sess *session, nickname string) error {
	if nickname == c.cfg.AdminName && !sess.isAdmin {
		return models.NewUnauthorizedError("reserved nickname requires admin login")
	}
	if err := c.identity.Claim(nickname, sess.id); err != nil {
		return err
	}
	sess.nickname = nickname
	return nil
}

// enterRoom performs the shared join tail: membership, broadcast group,
// history backfill, member list, and the arrival notice.
func (c *Coordinator) enterRoom(sess *session, roomID string) {
	if sess.roomID != "" && sess.roomID != roomID {
		c.exitRoom(sess, "님이 퇴장했습니다")
	}

	_ = c.rooms.AddMember(roomID, sess.nickname)
	c.transport.JoinGroup(roomID, sess.id)
	sess.roomID = roomID

	c.transport.Send(sess.id, models.Event{Type: models.EventJoinSuccess, Payload: models.JoinSuccessPayload{RoomID: roomID}})
	c.transport.Send(sess.id, models.Event{Type: models.EventChatHistory, Payload: c.history.Snapshot(roomID)})
	c.transport.SendRoom(roomID, models.Event{Type: models.EventRoomUsers, Payload: c.rooms.Members(roomID)})
	c.transport.SendRoom(roomID, models.Event{Type: models.EventSystemMessage, Payload: models.SystemMessagePayload{Text: sess.nickname + "님이 입장했습니다"}})
}

// exitRoom removes the session from its room and tells the remaining
// members. The departure notice suffix is appended to the nickname.
func (c *Coordinator) exitRoom(sess *session, noticeSuffix string) {
	roomID := sess.roomID
	if roomID == "" {
		return
	}

	c.rooms.RemoveMember(roomID, sess.nickname)
	c.transport.LeaveGroup(roomID, sess.id)
	sess.roomID = ""

	c.transport.SendRoom(roomID, models.Event{Type: models.EventRoomUsers, Payload: c.rooms.Members(roomID)})
	c.transport.SendRoom(roomID, models.Event{Type: models.EventSystemMessage, Payload: models.SystemMessagePayload{Text: sess.nickname + noticeSuffix}})
}

// cleanupSession releases the identity binding and room membership of a
// session that is going away, banned or otherwise.
func (c *Coordinator) cleanupSession(sess *session, noticeSuffix string) {
	c.exitRoom(sess, noticeSuffix)
	c.identity.Release(sess.id)
	sess.nickname = ""
}

func (c *Coordinator) sendToAdmins(ev models.Event) {
	for _, s := range c.sessions {
		if s.isAdmin {
			c.transport.Send(s.id, ev)
		}
	}
}

func (c *Coordinator) roomListEvent() models.Event {
	return models.Event{Type: models.EventRoomList, Payload: c.rooms.Summaries()}
}

func (c *Coordinator) loginThrottled(origin string) bool {
	cutoff := c.now().Add(-c.cfg.LoginWindow)
	recent := c.loginFailures[origin][:0]
	for _, t := range c.loginFailures[origin] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	c.loginFailures[origin] = recent
	return len(recent) >= c.cfg.LoginLimit
}

func (c *Coordinator) recordLoginFailure(origin string) {
	c.loginFailures[origin] = append(c.loginFailures[origin], c.now())
}
