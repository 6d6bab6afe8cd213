package types

// SessionContext carries the per-session identity shared by every component.
// It is constructed once in Session.Initialize and passed by pointer; no
// component reads identity from ambient globals.
type SessionContext struct {
	// OwnerID is the partner-supplied user identifier.
	OwnerID string
	// OwnerUUID is the server-assigned stable identifier, known only after the
	// first successful active-subscription fetch.
	OwnerUUID string
	APIKey    string
	// SessionID identifies one engine session, mostly for log correlation.
	SessionID           string
	LaunchedViaDeepLink bool
}
