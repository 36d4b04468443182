// Package identity exposes the "who is calling" facts the engine consumes.
// Authentication itself is out of scope: the wall trusts the identity header
// set by the front proxy, and admins are a configured id list.
package identity

// Identity answers the current-user questions the engine needs.
type Identity interface {
	CurrentUserID() string
	IsAdmin() bool
}

// Static is an immutable Identity snapshot, typically built per request or
// per websocket session.
type Static struct {
	UserID string
	Admin  bool
}

func (s Static) CurrentUserID() string { return s.UserID }
func (s Static) IsAdmin() bool         { return s.Admin }

// AdminSet resolves admin status from a configured id list.
type AdminSet map[string]struct{}

func NewAdminSet(ids []string) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (s AdminSet) Contains(userID string) bool {
	_, ok := s[userID]
	return ok
}
