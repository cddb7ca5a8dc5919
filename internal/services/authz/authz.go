// Package authz holds the session and role checks every authenticated
// handler runs before touching business state.
package authz

import (
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/session"
)

// RequireSession resolves the request's session token. On failure the second
// return value is the error response to send; the handler must not proceed.
func RequireSession(sessions *session.Store, req *protocol.Request) (session.Session, *protocol.Response) {
	if req.SessionID == "" {
		return session.Session{}, protocol.Errorf(req.RequestID, "Session required")
	}
	sess, ok := sessions.Get(req.SessionID)
	if !ok {
		return session.Session{}, protocol.Errorf(req.RequestID, "Invalid session")
	}
	return sess, nil
}

// RequireRole is RequireSession plus a role check.
func RequireRole(sessions *session.Store, req *protocol.Request, role string) (session.Session, *protocol.Response) {
	sess, errResp := RequireSession(sessions, req)
	if errResp != nil {
		return session.Session{}, errResp
	}
	if sess.User.Role != role {
		return session.Session{}, protocol.Errorf(req.RequestID, "Access denied. %s only.", role)
	}
	return sess, nil
}
