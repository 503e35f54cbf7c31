package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/StrungPattern-coder/context/store"
)

// StartSession opens a new context session for a user and returns it.
// An empty sessionID is generated.
func (s *Service) StartSession(ctx context.Context, userID, sessionID string, clientInfo map[string]any) (*store.ContextSession, error) {
	if sessionID == "" {
		sessionID = shortuuid.New()
	}
	nowTs := s.now().Unix()

	session, err := s.store.CreateContextSession(ctx, &store.ContextSession{
		UserID:         userID,
		SessionID:      sessionID,
		StartedTs:      nowTs,
		LastActivityTs: nowTs,
		ClientInfo:     clientInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return session, nil
}

// TouchSession bumps a session's last-activity time.
func (s *Service) TouchSession(ctx context.Context, sessionID string) error {
	nowTs := s.now().Unix()
	if _, err := s.store.UpdateContextSession(ctx, &store.UpdateContextSession{
		SessionID:      sessionID,
		LastActivityTs: &nowTs,
	}); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// EndSession closes a session, optionally recording a final context
// snapshot of the user's state.
func (s *Service) EndSession(ctx context.Context, sessionID string, contextSnapshot map[string]any) error {
	nowTs := s.now().Unix()
	if _, err := s.store.UpdateContextSession(ctx, &store.UpdateContextSession{
		SessionID:       sessionID,
		EndedTs:         &nowTs,
		ContextSnapshot: contextSnapshot,
	}); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// ReapStaleSessions ends active sessions with no activity for the
// given window. Their session-scoped ephemeral context falls to the
// regular expiry cleanup.
func (s *Service) ReapStaleSessions(ctx context.Context, idleAfter time.Duration) (int, error) {
	sessions, err := s.store.ListContextSessions(ctx, &store.FindContextSession{OnlyActive: true})
	if err != nil {
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	nowTs := s.now().Unix()
	cutoff := s.now().Add(-idleAfter).Unix()

	reaped := 0
	for _, session := range sessions {
		if session.LastActivityTs >= cutoff {
			continue
		}
		if _, err := s.store.UpdateContextSession(ctx, &store.UpdateContextSession{
			SessionID: session.SessionID,
			EndedTs:   &nowTs,
		}); err != nil {
			return reaped, fmt.Errorf("failed to end stale session %s: %w", session.SessionID, err)
		}
		reaped++
	}

	if reaped > 0 {
		slog.Info("stale sessions reaped", "sessions", reaped)
	}
	return reaped, nil
}

// GetSession loads a session by its public id.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*store.ContextSession, error) {
	list, err := s.store.ListContextSessions(ctx, &store.FindContextSession{SessionID: &sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
