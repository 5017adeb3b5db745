package registry

import (
	"log/slog"
	"sync"
)

// Registry tracks live subscriber connections by identity and maintains
// agency membership independently of connection liveness. The two maps are
// guarded by separate locks so agency fan-out never blocks connect/disconnect
// traffic on unrelated identities.
type Registry struct {
	connsMu sync.RWMutex
	conns   map[string]map[Conn]struct{}

	groupsMu sync.RWMutex
	groups   map[int64]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]map[Conn]struct{}),
		groups: make(map[int64]map[string]struct{}),
	}
}

// Connect registers conn under identity. An identity may hold any number of
// simultaneous connections (multi-device).
func (r *Registry) Connect(identity string, conn Conn) {
	if identity == "" || conn == nil {
		slog.Warn("registry: rejecting connect", "identity", identity)
		return
	}

	r.connsMu.Lock()
	set, ok := r.conns[identity]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[identity] = set
	}
	set[conn] = struct{}{}
	r.connsMu.Unlock()

	slog.Info("registry: connected", "identity", identity)
}

// Disconnect removes exactly that handle and closes it. The last handle prunes
// the identity entry. Idempotent: an already-absent handle is a no-op.
func (r *Registry) Disconnect(identity string, conn Conn) {
	r.connsMu.Lock()
	set, ok := r.conns[identity]
	if ok {
		if _, present := set[conn]; present {
			delete(set, conn)
			conn.Close()
		}
		if len(set) == 0 {
			delete(r.conns, identity)
		}
	}
	r.connsMu.Unlock()

	slog.Info("registry: disconnected", "identity", identity)
}

// Subscribe adds identity to the agency's membership. Membership survives
// disconnects; delivery to an offline member is simply a no-op.
func (r *Registry) Subscribe(agencyID int64, identity string) {
	if agencyID <= 0 || identity == "" {
		slog.Warn("registry: invalid subscription", "agency_id", agencyID, "identity", identity)
		return
	}

	r.groupsMu.Lock()
	members, ok := r.groups[agencyID]
	if !ok {
		members = make(map[string]struct{})
		r.groups[agencyID] = members
	}
	members[identity] = struct{}{}
	r.groupsMu.Unlock()

	slog.Info("registry: subscribed", "agency_id", agencyID, "identity", identity)
}

func (r *Registry) Unsubscribe(agencyID int64, identity string) {
	if agencyID <= 0 || identity == "" {
		slog.Warn("registry: invalid unsubscription", "agency_id", agencyID, "identity", identity)
		return
	}

	r.groupsMu.Lock()
	if members, ok := r.groups[agencyID]; ok {
		delete(members, identity)
		if len(members) == 0 {
			delete(r.groups, agencyID)
		}
	}
	r.groupsMu.Unlock()

	slog.Info("registry: unsubscribed", "agency_id", agencyID, "identity", identity)
}

// Broadcast delivers msg to every connected handle across all identities.
// A failing handle is disconnected and delivery continues to the rest.
func (r *Registry) Broadcast(msg []byte) {
	if len(msg) == 0 {
		slog.Warn("registry: dropping empty broadcast")
		return
	}

	for _, target := range r.snapshot() {
		r.deliver(target.identity, target.conn, msg)
	}
}

// BroadcastToGroup delivers msg only to handles whose identity is currently
// subscribed to the agency. Membership without a live connection delivers
// nothing; a live connection without membership is skipped.
func (r *Registry) BroadcastToGroup(agencyID int64, msg []byte) {
	if agencyID <= 0 || len(msg) == 0 {
		slog.Warn("registry: invalid agency broadcast", "agency_id", agencyID)
		return
	}

	r.groupsMu.RLock()
	members := make([]string, 0, len(r.groups[agencyID]))
	for identity := range r.groups[agencyID] {
		members = append(members, identity)
	}
	r.groupsMu.RUnlock()

	for _, identity := range members {
		r.SendToIdentity(identity, msg)
	}
}

// SendToIdentity delivers msg to all handles of one identity, with the same
// per-handle failure isolation as Broadcast.
func (r *Registry) SendToIdentity(identity string, msg []byte) {
	if identity == "" || len(msg) == 0 {
		slog.Warn("registry: invalid identity send", "identity", identity)
		return
	}

	r.connsMu.RLock()
	handles := make([]Conn, 0, len(r.conns[identity]))
	for conn := range r.conns[identity] {
		handles = append(handles, conn)
	}
	r.connsMu.RUnlock()

	for _, conn := range handles {
		r.deliver(identity, conn, msg)
	}
}

func (r *Registry) deliver(identity string, conn Conn, msg []byte) {
	if err := conn.Send(msg); err != nil {
		slog.Error("registry: send failed, pruning connection", "identity", identity, "error", err)
		r.Disconnect(identity, conn)
	}
}

type connRef struct {
	identity string
	conn     Conn
}

// snapshot copies the connection set so delivery runs without holding the lock
// and a failing send can re-enter Disconnect.
func (r *Registry) snapshot() []connRef {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()

	refs := make([]connRef, 0, len(r.conns))
	for identity, set := range r.conns {
		for conn := range set {
			refs = append(refs, connRef{identity: identity, conn: conn})
		}
	}
	return refs
}

// IdentityOnline reports whether at least one handle remains registered.
func (r *Registry) IdentityOnline(identity string) bool {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()
	return len(r.conns[identity]) > 0
}

func (r *Registry) ConnCount() int {
	r.connsMu.RLock()
	defer r.connsMu.RUnlock()

	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}

func (r *Registry) GroupSize(agencyID int64) int {
	r.groupsMu.RLock()
	defer r.groupsMu.RUnlock()
	return len(r.groups[agencyID])
}

// Close disconnects every connection and clears all membership. Used at
// shutdown to drain the realtime layer.
func (r *Registry) Close() {
	r.connsMu.Lock()
	for identity, set := range r.conns {
		for conn := range set {
			conn.Close()
		}
		delete(r.conns, identity)
	}
	r.connsMu.Unlock()

	r.groupsMu.Lock()
	for agencyID := range r.groups {
		delete(r.groups, agencyID)
	}
	r.groupsMu.Unlock()

	slog.Info("registry: closed")
}
