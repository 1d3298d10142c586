package store

import "fmt"

// Kind identifies the lifetime/visibility domain of a store.
type Kind int

const (
	// KindApp is process-wide ephemeral state.
	KindApp Kind = iota + 1
	// KindPrefs is user-preference-like durable state.
	KindPrefs
	// KindFile is durable state kept in a single file-backed tree.
	KindFile
	// KindSession is per-interaction-session state, dropped with the session.
	KindSession
	// KindRemote is a remote-proxied namespace, optionally tied to a session.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindApp:
		return "app"
	case KindPrefs:
		return "prefs"
	case KindFile:
		return "file"
	case KindSession:
		return "session"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Scope is the hashable identity a store is cached under. The zero
// SessionID/Namespace are meaningful only for the kinds that use them.
type Scope struct {
	Kind      Kind
	SessionID string
	Namespace string
}

// App returns the process-wide scope.
func App() Scope { return Scope{Kind: KindApp} }

// Prefs returns the durable user-preference scope.
func Prefs() Scope { return Scope{Kind: KindPrefs} }

// FileScope returns the file-backed scope.
func FileScope() Scope { return Scope{Kind: KindFile} }

// Session returns the scope for one interaction session.
func Session(id string) Scope { return Scope{Kind: KindSession, SessionID: id} }

// Remote returns a remote-namespaced scope, optionally tied to a session.
func Remote(namespace, sessionID string) Scope {
	return Scope{Kind: KindRemote, Namespace: namespace, SessionID: sessionID}
}

func (s Scope) String() string {
	out := s.Kind.String()
	if s.Namespace != "" {
		out += ":" + s.Namespace
	}
	if s.SessionID != "" {
		out += "@" + s.SessionID
	}
	return out
}

// BackendKind names the persistence strategy behind a store.
type BackendKind int

const (
	BackendMemory BackendKind = iota + 1
	BackendSQLite
	BackendFile
	BackendRemote
)

func (b BackendKind) String() string {
	switch b {
	case BackendMemory:
		return "memory"
	case BackendSQLite:
		return "sqlite"
	case BackendFile:
		return "file"
	case BackendRemote:
		return "remote"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// DefaultBackend is the backend kind a scope pairs with unless the caller
// asks otherwise.
func (k Kind) DefaultBackend() BackendKind {
	switch k {
	case KindPrefs:
		return BackendSQLite
	case KindFile:
		return BackendFile
	case KindRemote:
		return BackendRemote
	default:
		return BackendMemory
	}
}
