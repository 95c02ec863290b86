package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vncsmyrnk/awards/internal/core/domain"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

// VoterRepository resolves the opaque token handed out at registration.
type VoterRepository struct{}

func NewVoterRepository() ports.VoterResolver {
	return &VoterRepository{}
}

func (r *VoterRepository) ResolveToken(ctx context.Context, conn ports.Conn, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, domain.ErrInvalidToken
	}

	query := `SELECT id FROM voters WHERE token = $1 AND revoked_at IS NULL`
	var id int64
	err := conn.QueryRowContext(ctx, query, token).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrInvalidToken
		}
		return 0, fmt.Errorf("failed to resolve voter token: %w", err)
	}
	return id, nil
}
