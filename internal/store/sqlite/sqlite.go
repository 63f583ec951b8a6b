package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parleychat/parley-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after the
// schema is applied. Useful for tests to seed fixtures.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a room; the owner (when set) becomes an admin member.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, ownerID *int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, owner_id) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if ownerID != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id, is_admin) VALUES (?, ?, 1)`,
			id, *ownerID); err != nil {
			return nil, fmt.Errorf("insert owner membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetRoomByID(ctx, id)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM rooms WHERE id = ?`, id)

	var r store.Room
	if err := row.Scan(&r.ID, &r.Name, &r.OwnerID, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room not found: %w", err)
		}
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

// ListRooms returns every room, used for boot rehydration.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]store.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	return scanRooms(rows)
}

// ListRoomsForUser returns rooms the user is a member of.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID int64) ([]store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.owner_id, r.created_at
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user rooms: %w", err)
	}
	defer rows.Close()

	return scanRooms(rows)
}

func scanRooms(rows *sql.Rows) ([]store.Room, error) {
	var out []store.Room
	for rows.Next() {
		var r store.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return out, nil
}

// AddRoomMember adds a user to a room. Already-existing membership is not an error.
func (s *SQLiteStore) AddRoomMember(ctx context.Context, roomID, userID int64, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, is_admin) VALUES (?, ?, ?)
		ON CONFLICT(room_id, user_id) DO NOTHING`,
		roomID, userID, isAdmin)
	if err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// ListRoomMembers returns membership with display names resolved from users.
func (s *SQLiteStore) ListRoomMembers(ctx context.Context, roomID int64) ([]store.RoomMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.room_id, m.user_id, u.username, m.is_admin, m.joined_at
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room members: %w", err)
	}
	defer rows.Close()

	var out []store.RoomMember
	for rows.Next() {
		var m store.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.DisplayName, &m.IsAdmin, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan room member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room members: %w", err)
	}
	return out, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and returns it with ID and timestamp set.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (room_id, sender_id, sender_name, type, body, media_ids, poll_id, table_id, reply_to_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.RoomID, msg.SenderID, msg.SenderName, string(msg.Type), msg.Body,
		encodeMediaIDs(msg.MediaIDs), msg.PollID, msg.TableID, msg.ReplyToID)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, sender_id, sender_name, type, body, media_ids, poll_id, table_id, reply_to_id, created_at
		FROM messages WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message not found: %w", sql.ErrNoRows)
	}
	return msg, nil
}

// LatestRoomMessage returns the most recent message in a room, or (nil, nil)
// when the room has no messages.
func (s *SQLiteStore) LatestRoomMessage(ctx context.Context, roomID int64) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, sender_id, sender_name, type, body, media_ids, poll_id, table_id, reply_to_id, created_at
		FROM messages WHERE room_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, roomID)

	return scanMessage(row)
}

func scanMessage(row *sql.Row) (*store.Message, error) {
	var (
		m     store.Message
		typ   string
		media string
	)
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &typ, &m.Body,
		&media, &m.PollID, &m.TableID, &m.ReplyToID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	m.Type = store.MessageType(typ)
	m.MediaIDs = decodeMediaIDs(media)
	return &m, nil
}

func encodeMediaIDs(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func decodeMediaIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ==== TokenStore implementation ====

// RegisterToken inserts or reactivates a token for a user. A token re-registered
// by a different user is reassigned to that user.
func (s *SQLiteStore) RegisterToken(ctx context.Context, userID int64, token string, platform store.TokenPlatform) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_tokens (user_id, token, platform, active) VALUES (?, ?, ?, 1)
		ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform, active = 1`,
		userID, token, string(platform))
	if err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	return nil
}

// DeactivateToken flips the active flag; unknown tokens are a no-op.
func (s *SQLiteStore) DeactivateToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_tokens SET active = 0 WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("deactivate token: %w", err)
	}
	return nil
}

// ListActiveTokens returns the user's currently active tokens.
func (s *SQLiteStore) ListActiveTokens(ctx context.Context, userID int64) ([]store.NotificationToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token, platform, active, created_at
		FROM notification_tokens
		WHERE user_id = ? AND active = 1
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query active tokens: %w", err)
	}
	defer rows.Close()

	var out []store.NotificationToken
	for rows.Next() {
		var (
			t        store.NotificationToken
			platform string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &platform, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		t.Platform = store.TokenPlatform(platform)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return out, nil
}
