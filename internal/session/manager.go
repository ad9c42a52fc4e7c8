package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emberline/hubd/internal/store"
)

// Manager issues and validates sessions bound to a terminal and staff
// member, and marks the terminal record ONLINE/OFFLINE accordingly.
type Manager struct {
	store  *store.Store
	tokens *TokenManager
}

// NewManager creates a session manager.
func NewManager(s *store.Store, tokens *TokenManager) *Manager {
	return &Manager{store: s, tokens: tokens}
}

// Login inserts a session row bound to (terminalID, staff.ID), marks the
// terminal ONLINE, and returns the signed session token.
func (m *Manager) Login(ctx context.Context, staff StaffProfile, terminalID string) (string, error) {
	sessionID := store.NewID()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, staff_id, terminal_id, role, issued_at)
			VALUES (?, ?, ?, ?, ?)
		`, sessionID, staff.ID, terminalID, staff.Role, now)
		if err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}

		if terminalID != "" {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO terminals (id, role, status, last_seen_at)
				VALUES (?, 'pos', 'ONLINE', ?)
				ON CONFLICT(id) DO UPDATE SET status = 'ONLINE', last_seen_at = excluded.last_seen_at
			`, terminalID, now)
			if err != nil {
				return fmt.Errorf("marking terminal online: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	token, err := m.tokens.Issue(Claims{
		SessionID:  sessionID,
		StaffID:    staff.ID,
		TerminalID: terminalID,
		Role:       staff.Role,
	})
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// Validate verifies the token's signature and confirms the underlying
// session row is still active (not revoked). This is the check the
// terminal HTTP surface's middleware runs on every protected request.
func (m *Manager) Validate(ctx context.Context, rawToken string) (*Claims, error) {
	claims, err := m.tokens.Validate(rawToken)
	if err != nil {
		return nil, err
	}

	var revokedAt sql.NullString
	err = m.store.DB().QueryRowContext(ctx, `
		SELECT revoked_at FROM sessions WHERE id = ?
	`, claims.SessionID).Scan(&revokedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if revokedAt.Valid {
		return nil, fmt.Errorf("session revoked")
	}

	return claims, nil
}

// Logout revokes a session by id, the explicit invalidation path since
// sessions otherwise have no expiry.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := m.store.DB().ExecContext(ctx, `
		UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`, now, sessionID)
	if err != nil {
		return fmt.Errorf("revoking session %s: %w", sessionID, err)
	}
	return nil
}
