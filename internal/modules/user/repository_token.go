package user

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

// CreateToken inserts a new first-party token record.
func (r *repository) CreateToken(ctx context.Context, token *Token) error {
	token.CreatedAt = time.Now()

	query, args, err := r.psql.Insert("tokens").
		Columns("id", "user_id", "type", "token_hash", "expires_at", "created_at").
		Values(token.ID, token.UserID, token.Type, token.TokenHash, token.ExpiresAt, token.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// FindTokenByHash retrieves a token by its hash and type.
func (r *repository) FindTokenByHash(ctx context.Context, tokenHash string, tokenType TokenType) (*Token, error) {
	query, args, err := r.psql.Select("*").
		From("tokens").
		Where(squirrel.Eq{"token_hash": tokenHash, "type": tokenType}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var token Token
	err = pgxscan.Get(ctx, r.db, &token, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound.WithCause(err)
		}
		return nil, err
	}

	return &token, nil
}

// DeleteToken removes a token record by id.
func (r *repository) DeleteToken(ctx context.Context, id string) error {
	query, args, err := r.psql.Delete("tokens").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// DeleteTokensByUserAndType removes all tokens of a given type for a user.
// Used for refresh rotation: only one active REFRESH_USER token per user.
func (r *repository) DeleteTokensByUserAndType(ctx context.Context, userID string, tokenType TokenType) error {
	query, args, err := r.psql.Delete("tokens").
		Where(squirrel.Eq{"user_id": userID, "type": tokenType}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// DeleteExpiredTokens removes all tokens that have expired.
// This can be called periodically as a cleanup operation.
func (r *repository) DeleteExpiredTokens(ctx context.Context) error {
	query, args, err := r.psql.Delete("tokens").
		Where(squirrel.Lt{"expires_at": time.Now()}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}
