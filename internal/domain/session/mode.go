// internal/domain/session/mode.go
package session

import "fmt"

// CurrentUser is the identity collaborator's view of the signed-in user
type CurrentUser struct {
	ID    string
	Email string
}

// Mode is either Guest or Authenticated(userID)
type Mode struct {
	userID string
}

// Guest returns the unauthenticated mode
func Guest() Mode {
	return Mode{}
}

// Authenticated returns the mode for a signed-in user
func Authenticated(userID string) Mode {
	return Mode{userID: userID}
}

// ModeFor maps an optional current user onto a session mode
func ModeFor(user *CurrentUser) Mode {
	if user == nil || user.ID == "" {
		return Guest()
	}
	return Authenticated(user.ID)
}

// IsGuest reports whether no user is signed in
func (m Mode) IsGuest() bool {
	return m.userID == ""
}

// UserID returns the authenticated user id, empty for guests
func (m Mode) UserID() string {
	return m.userID
}

// Scope selects the persistence tier for a device under this mode
func (m Mode) Scope(deviceID string) Scope {
	if m.IsGuest() {
		return LocalDevice(deviceID)
	}
	return RemoteUser(m.userID, deviceID)
}

func (m Mode) String() string {
	if m.IsGuest() {
		return "guest"
	}
	return fmt.Sprintf("authenticated(%s)", m.userID)
}

// ScopeKind is the tier a scope points at
type ScopeKind int

const (
	KindLocalDevice ScopeKind = iota
	KindRemoteUser
)

// Scope addresses a state blob: the local device cache or a per-user remote document.
// Remote scopes keep the device id so callers can fall back to the local tier.
type Scope struct {
	Kind     ScopeKind
	DeviceID string
	UserID   string
}

// LocalDevice returns the local cache scope of a device
func LocalDevice(deviceID string) Scope {
	return Scope{Kind: KindLocalDevice, DeviceID: deviceID}
}

// RemoteUser returns the remote document scope of a user
func RemoteUser(userID, deviceID string) Scope {
	return Scope{Kind: KindRemoteUser, UserID: userID, DeviceID: deviceID}
}

// IsRemote reports whether the scope targets the remote store
func (s Scope) IsRemote() bool {
	return s.Kind == KindRemoteUser
}

// Local returns the local fallback scope for the same device
func (s Scope) Local() Scope {
	return LocalDevice(s.DeviceID)
}

func (s Scope) String() string {
	if s.IsRemote() {
		return "remote:" + s.UserID
	}
	return "local:" + s.DeviceID
}
