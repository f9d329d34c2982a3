package user

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/adsight/adsight-api/internal/database"
	"github.com/adsight/adsight-api/internal/policy"
)

// Repository defines the interface for database operations for the user module.
// This abstraction allows the service layer to be independent of the database implementation.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePlan(ctx context.Context, userID string, plan policy.Plan) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePassword(ctx context.Context, userID string, newPasswordHash string) error

	// First-party tokens
	CreateToken(ctx context.Context, token *Token) error
	FindTokenByHash(ctx context.Context, tokenHash string, tokenType TokenType) (*Token, error)
	DeleteToken(ctx context.Context, id string) error
	DeleteTokensByUserAndType(ctx context.Context, userID string, tokenType TokenType) error
	DeleteExpiredTokens(ctx context.Context) error
}

// repository implements the Repository interface using pgx and squirrel.
type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
}

// NewRepository creates a new user repository with the given database connection.
func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}
