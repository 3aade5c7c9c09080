package service

// Revocation names the live connections that must end once sessions are revoked.
type Revocation struct {
	// UserID 为 0 时只按 SessionHash 撤销
	UserID uint
	// SessionHash limits the revocation to one session.
	SessionHash string
	// KeepSessionHash survives a user-wide revocation.
	KeepSessionHash string
}

// RevokeFunc is notified after sessions are deleted server-side.
type RevokeFunc func(Revocation)
