package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/victorivanov/huddle/internal/models"
)

type directoryRepo struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository reads users, conversations and memberships from
// the tables owned by the account and membership services.
func NewDirectoryRepository(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepo{pool: pool}
}

func (r *directoryRepo) GetConversation(ctx context.Context, ref models.ConversationRef) (*models.Conversation, error) {
	c := &models.Conversation{Ref: ref}
	err := r.pool.QueryRow(ctx,
		`SELECT name FROM conversations WHERE kind = $1 AND id = $2`,
		string(ref.Kind), ref.ID,
	).Scan(&c.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *directoryRepo) IsMember(ctx context.Context, ref models.ConversationRef, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM conversation_members
		   WHERE kind = $1 AND conversation_id = $2 AND user_id = $3)`,
		string(ref.Kind), ref.ID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *directoryRepo) IsOwner(ctx context.Context, ref models.ConversationRef, userID int64) (bool, error) {
	var owner bool
	err := r.pool.QueryRow(ctx,
		`SELECT is_owner FROM conversation_members
		 WHERE kind = $1 AND conversation_id = $2 AND user_id = $3`,
		string(ref.Kind), ref.ID, userID,
	).Scan(&owner)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return owner, err
}

func (r *directoryRepo) HasElevatedRole(ctx context.Context, userID int64) (bool, error) {
	var elevated bool
	err := r.pool.QueryRow(ctx,
		`SELECT elevated FROM users WHERE id = $1`, userID,
	).Scan(&elevated)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return elevated, err
}

func (r *directoryRepo) MemberIDs(ctx context.Context, ref models.ConversationRef) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_members
		 WHERE kind = $1 AND conversation_id = $2
		 ORDER BY joined_at, user_id`,
		string(ref.Kind), ref.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *directoryRepo) ResolveHandle(ctx context.Context, handle string) (int64, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM users WHERE handle = $1`, strings.ToLower(handle),
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *directoryRepo) HandleOf(ctx context.Context, userID int64) (string, error) {
	var handle string
	err := r.pool.QueryRow(ctx,
		`SELECT handle FROM users WHERE id = $1`, userID,
	).Scan(&handle)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return handle, err
}

// Seeding helpers used by huddle-cli and the integration tests.

func CreateUser(ctx context.Context, pool *pgxpool.Pool, u models.User) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, handle, elevated) VALUES ($1, $2, $3)`,
		u.ID, strings.ToLower(u.Handle), u.Elevated,
	)
	return err
}

func CreateConversation(ctx context.Context, pool *pgxpool.Pool, c models.Conversation) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO conversations (kind, id, name) VALUES ($1, $2, $3)`,
		string(c.Ref.Kind), c.Ref.ID, c.Name,
	)
	return err
}

func AddConversationMember(ctx context.Context, pool *pgxpool.Pool, ref models.ConversationRef, userID int64, owner bool) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO conversation_members (kind, conversation_id, user_id, is_owner)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (kind, conversation_id, user_id) DO UPDATE SET is_owner = EXCLUDED.is_owner`,
		string(ref.Kind), ref.ID, userID, owner,
	)
	return err
}
