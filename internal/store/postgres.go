package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// likeInsertError maps an idea deleted after the existence check to
// ErrNotFound.
func likeInsertError(err error) error {
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return fmt.Errorf("insert like: %w", err)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func requireAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", what, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Users

const userColumns = `id, display_name, email, password_hash, role, post_count, theme_post_count, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role,
		&user.PostCount, &user.ThemePostCount, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email))
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserDisplayName(ctx context.Context, id, displayName string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET display_name=$2, updated_at=NOW() WHERE id=$1`, id, displayName)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return requireAffected(result, "update display name")
}

func (s *PostgresStore) UpdateUserRole(ctx context.Context, id, role string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role=$2, updated_at=NOW() WHERE id=$1`, id, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireAffected(result, "update role")
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(result, "update password")
}

// DeleteUserAccount removes the user and their private data in one transaction.
// Ideas and comments stay and lose their author reference.
func (s *PostgresStore) DeleteUserAccount(ctx context.Context, userID string, entry DeletionLog) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if err := requireAffected(result, "delete user"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO deletion_logs (id, user_id, email, reason, deleted_at)
			VALUES ($1, $2, $3, $4, $5)
		`, entry.ID, entry.UserID, entry.Email, entry.Reason, entry.DeletedAt); err != nil {
			return fmt.Errorf("insert deletion log: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListDeletionLogs(ctx context.Context) ([]DeletionLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, email, reason, deleted_at FROM deletion_logs ORDER BY deleted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list deletion logs: %w", err)
	}
	defer rows.Close()

	logs := make([]DeletionLog, 0)
	for rows.Next() {
		var entry DeletionLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Email, &entry.Reason, &entry.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan deletion log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) GetUserSettings(ctx context.Context, userID string) (UserSettings, error) {
	settings := UserSettings{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT email_notifications, language, updated_at FROM user_settings WHERE user_id=$1
	`, userID).Scan(&settings.EmailNotifications, &settings.Language, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultUserSettings(userID), nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("get user settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresStore) SaveUserSettings(ctx context.Context, settings UserSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, email_notifications, language, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email_notifications=EXCLUDED.email_notifications, language=EXCLUDED.language, updated_at=EXCLUDED.updated_at
	`, settings.UserID, settings.EmailNotifications, settings.Language, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save user settings: %w", err)
	}
	return nil
}

// Refresh sessions

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ConsumeRefreshSession revokes a live token and returns its owner in one
// statement; concurrent callers with the same token see at most one row.
func (s *PostgresStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		WITH consumed AS (
			UPDATE refresh_sessions SET revoked_at = NOW()
			WHERE token_hash = $1
				AND revoked_at IS NULL
				AND expires_at > NOW()
			RETURNING user_id
		)
		SELECT u.id, u.display_name, u.email, u.password_hash, u.role, u.post_count, u.theme_post_count, u.created_at, u.updated_at
		FROM consumed c
		JOIN users u ON u.id = c.user_id
	`, tokenHash))
	if err != nil {
		return User{}, notFound(err)
	}
	return user, nil
}

// Ideas

const ideaColumns = `id, title, description, mode, status, likes, theme_id, user_id, author_name, admin_memo, checklist, history, created_at, updated_at`

func scanIdea(row interface{ Scan(...any) error }) (Idea, error) {
	var (
		idea      Idea
		themeID   sql.NullString
		userID    sql.NullString
		checklist []byte
		history   []byte
	)
	if err := row.Scan(&idea.ID, &idea.Title, &idea.Description, &idea.Mode, &idea.Status, &idea.Likes,
		&themeID, &userID, &idea.AuthorName, &idea.AdminMemo, &checklist, &history,
		&idea.CreatedAt, &idea.UpdatedAt); err != nil {
		return Idea{}, err
	}
	idea.ThemeID = nullableString(themeID)
	idea.UserID = nullableString(userID)
	if err := json.Unmarshal(checklist, &idea.Checklist); err != nil {
		return Idea{}, fmt.Errorf("decode checklist: %w", err)
	}
	if err := json.Unmarshal(history, &idea.History); err != nil {
		return Idea{}, fmt.Errorf("decode history: %w", err)
	}
	return idea, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func jsonArray[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// InsertIdea stores the idea and bumps the author's counters in the same transaction.
func (s *PostgresStore) InsertIdea(ctx context.Context, idea Idea) error {
	checklist, err := jsonArray(idea.Checklist)
	if err != nil {
		return fmt.Errorf("encode checklist: %w", err)
	}
	history, err := jsonArray(idea.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ideas (id, title, description, mode, status, likes, theme_id, user_id, author_name, admin_memo, checklist, history, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $12)
		`, idea.ID, idea.Title, idea.Description, idea.Mode, idea.Status, idea.ThemeID, idea.UserID,
			idea.AuthorName, idea.AdminMemo, checklist, history, idea.CreatedAt); err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("insert idea: %w", err)
		}
		if idea.UserID == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET post_count = post_count + 1,
				theme_post_count = theme_post_count + CASE WHEN $2::text IS NULL THEN 0 ELSE 1 END,
				updated_at = NOW()
			WHERE id=$1
		`, *idea.UserID, idea.ThemeID); err != nil {
			return fmt.Errorf("increment user counters: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetIdea(ctx context.Context, id string) (Idea, error) {
	idea, err := scanIdea(s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=$1`, id))
	if err != nil {
		return Idea{}, notFound(err)
	}
	return idea, nil
}

func (s *PostgresStore) ListIdeas(ctx context.Context) ([]Idea, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ideaColumns+` FROM ideas ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	ideas := make([]Idea, 0)
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// UpdateIdeaStatus sets the status and appends to history in a single statement.
func (s *PostgresStore) UpdateIdeaStatus(ctx context.Context, id string, status IdeaStatus, action IdeaAction) (Idea, error) {
	entry, err := jsonArray([]IdeaAction{action})
	if err != nil {
		return Idea{}, fmt.Errorf("encode action: %w", err)
	}
	idea, err := scanIdea(s.db.QueryRowContext(ctx, `
		UPDATE ideas
		SET status=$2, history = history || $3::jsonb, updated_at=$4
		WHERE id=$1
		RETURNING `+ideaColumns, id, status, entry, action.Timestamp))
	if err != nil {
		return Idea{}, notFound(err)
	}
	return idea, nil
}

func (s *PostgresStore) UpdateIdeaAdmin(ctx context.Context, id, memo string, checklist []ChecklistItem) error {
	encoded, err := jsonArray(checklist)
	if err != nil {
		return fmt.Errorf("encode checklist: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE ideas SET admin_memo=$2, checklist=$3::jsonb, updated_at=NOW() WHERE id=$1
	`, id, memo, encoded)
	if err != nil {
		return fmt.Errorf("update idea admin fields: %w", err)
	}
	return requireAffected(result, "update idea admin fields")
}

// DeleteIdea removes the idea; comments, likes and admin comments cascade by foreign key.
func (s *PostgresStore) DeleteIdea(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ideas WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	return requireAffected(result, "delete idea")
}

// Likes

// InsertLike records the like and increments the counter atomically. It
// reports false when the visitor had already liked the idea.
func (s *PostgresStore) InsertLike(ctx context.Context, like Like) (bool, error) {
	inserted := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ideas WHERE id=$1)`, like.IdeaID).Scan(&exists); err != nil {
			return fmt.Errorf("check idea: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO likes (idea_id, visitor_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (idea_id, visitor_id) DO NOTHING
		`, like.IdeaID, like.VisitorID, like.CreatedAt)
		if err != nil {
			return likeInsertError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert like rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE ideas SET likes = likes + 1 WHERE id=$1`, like.IdeaID); err != nil {
			return fmt.Errorf("increment likes: %w", err)
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func (s *PostgresStore) DeleteLike(ctx context.Context, ideaID, visitorID string) (bool, error) {
	removed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE idea_id=$1 AND visitor_id=$2`, ideaID, visitorID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete like rows: %w", err)
		}
		if affected == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE ideas SET likes = GREATEST(likes - 1, 0) WHERE id=$1`, ideaID); err != nil {
			return fmt.Errorf("decrement likes: %w", err)
		}
		removed = true
		return nil
	})
	return removed, err
}

func (s *PostgresStore) HasLike(ctx context.Context, ideaID, visitorID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM likes WHERE idea_id=$1 AND visitor_id=$2)`, ideaID, visitorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountLikes(ctx context.Context, ideaID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE idea_id=$1`, ideaID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

// Comments

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, idea_id, text, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, comment.ID, comment.IdeaID, comment.Text, comment.UserID, comment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, ideaID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idea_id, text, user_id, created_at FROM comments WHERE idea_id=$1 ORDER BY created_at ASC, id ASC
	`, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var (
			comment Comment
			userID  sql.NullString
		)
		if err := rows.Scan(&comment.ID, &comment.IdeaID, &comment.Text, &userID, &comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comment.UserID = nullableString(userID)
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) InsertAdminComment(ctx context.Context, comment AdminComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_comments (id, idea_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, comment.ID, comment.IdeaID, comment.Author, comment.Body, comment.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert admin comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAdminComments(ctx context.Context, ideaID string) ([]AdminComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idea_id, author, body, created_at FROM admin_comments WHERE idea_id=$1 ORDER BY created_at ASC
	`, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list admin comments: %w", err)
	}
	defer rows.Close()

	comments := make([]AdminComment, 0)
	for rows.Next() {
		var comment AdminComment
		if err := rows.Scan(&comment.ID, &comment.IdeaID, &comment.Author, &comment.Body, &comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin comment: %w", err)
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// Themes

const themeColumns = `id, title, description, start_date, end_date, event_date, is_active, created_at, updated_at`

func scanTheme(row interface{ Scan(...any) error }) (Theme, error) {
	var (
		theme     Theme
		eventDate sql.NullTime
	)
	if err := row.Scan(&theme.ID, &theme.Title, &theme.Description, &theme.StartDate, &theme.EndDate,
		&eventDate, &theme.IsActive, &theme.CreatedAt, &theme.UpdatedAt); err != nil {
		return Theme{}, err
	}
	if eventDate.Valid {
		value := eventDate.Time
		theme.EventDate = &value
	}
	return theme, nil
}

// InsertTheme stores the theme. When it is created active, every other theme is
// deactivated in the same transaction.
func (s *PostgresStore) InsertTheme(ctx context.Context, theme Theme) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if theme.IsActive {
			if _, err := tx.ExecContext(ctx, `UPDATE themes SET is_active=FALSE, updated_at=NOW() WHERE is_active`); err != nil {
				return fmt.Errorf("deactivate themes: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO themes (id, title, description, start_date, end_date, event_date, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, theme.ID, theme.Title, theme.Description, theme.StartDate, theme.EndDate, theme.EventDate,
			theme.IsActive, theme.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert theme: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetTheme(ctx context.Context, id string) (Theme, error) {
	theme, err := scanTheme(s.db.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id=$1`, id))
	if err != nil {
		return Theme{}, notFound(err)
	}
	return theme, nil
}

func (s *PostgresStore) ListThemes(ctx context.Context) ([]Theme, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+themeColumns+` FROM themes ORDER BY start_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	themes := make([]Theme, 0)
	for rows.Next() {
		theme, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, theme)
	}
	return themes, rows.Err()
}

func (s *PostgresStore) GetActiveTheme(ctx context.Context) (*Theme, error) {
	theme, err := scanTheme(s.db.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE is_active LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active theme: %w", err)
	}
	return &theme, nil
}

// UpdateTheme writes the patched fields. IsActive=true activates through the
// same single statement as ActivateTheme; IsActive=false only clears this theme.
func (s *PostgresStore) UpdateTheme(ctx context.Context, id string, patch ThemePatch) (Theme, error) {
	var updated Theme
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanTheme(tx.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err)
		}
		next := patch.Apply(current)
		if _, err := tx.ExecContext(ctx, `
			UPDATE themes SET title=$2, description=$3, start_date=$4, end_date=$5, event_date=$6, updated_at=NOW()
			WHERE id=$1
		`, id, next.Title, next.Description, next.StartDate, next.EndDate, next.EventDate); err != nil {
			return fmt.Errorf("update theme: %w", err)
		}
		if patch.IsActive != nil {
			if *patch.IsActive {
				if err := activateTheme(ctx, tx, id); err != nil {
					return err
				}
			} else if _, err := tx.ExecContext(ctx, `UPDATE themes SET is_active=FALSE WHERE id=$1`, id); err != nil {
				return fmt.Errorf("deactivate theme: %w", err)
			}
		}
		updated, err = scanTheme(tx.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id=$1`, id))
		if err != nil {
			return fmt.Errorf("reload theme: %w", err)
		}
		return nil
	})
	return updated, err
}

// ActivateTheme marks id active and every other theme inactive inside one
// transaction. themes_single_active rejects a concurrent activation.
func (s *PostgresStore) ActivateTheme(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return activateTheme(ctx, tx, id)
	})
}

func activateTheme(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM themes WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check theme: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	// A concurrent activation blocks on themes_single_active and fails with a
	// unique violation instead of leaving two active rows.
	if _, err := tx.ExecContext(ctx, `UPDATE themes SET is_active=FALSE, updated_at=NOW() WHERE is_active AND id<>$1`, id); err != nil {
		return fmt.Errorf("deactivate themes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE themes SET is_active=TRUE, updated_at=NOW() WHERE id=$1`, id); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("activate theme: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTheme(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM themes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete theme: %w", err)
	}
	return requireAffected(result, "delete theme")
}

// Events

const eventColumns = `id, theme_id, idea_id, title, description, date, participant_count, content, next_actions, report_key, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var (
		event   Event
		themeID sql.NullString
		ideaID  sql.NullString
	)
	if err := row.Scan(&event.ID, &themeID, &ideaID, &event.Title, &event.Description, &event.Date,
		&event.ParticipantCount, &event.Content, &event.NextActions, &event.ReportKey,
		&event.CreatedAt, &event.UpdatedAt); err != nil {
		return Event{}, err
	}
	event.ThemeID = nullableString(themeID)
	event.IdeaID = nullableString(ideaID)
	return event, nil
}

func (s *PostgresStore) InsertEvent(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, theme_id, idea_id, title, description, date, participant_count, content, next_actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, event.ID, event.ThemeID, event.IdeaID, event.Title, event.Description, event.Date,
		event.ParticipantCount, event.Content, event.NextActions, event.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (Event, error) {
	event, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
	if err != nil {
		return Event{}, notFound(err)
	}
	return event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, themeID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE ($1 = '' OR theme_id = $1)
		ORDER BY date DESC, created_at DESC
	`, themeID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, event Event) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET theme_id=$2, idea_id=$3, title=$4, description=$5, date=$6, participant_count=$7,
			content=$8, next_actions=$9, updated_at=$10
		WHERE id=$1
	`, event.ID, event.ThemeID, event.IdeaID, event.Title, event.Description, event.Date,
		event.ParticipantCount, event.Content, event.NextActions, event.UpdatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return requireAffected(result, "update event")
}

func (s *PostgresStore) SetEventReport(ctx context.Context, id, reportKey string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE events SET report_key=$2, updated_at=NOW() WHERE id=$1`, id, reportKey)
	if err != nil {
		return fmt.Errorf("set event report: %w", err)
	}
	return requireAffected(result, "set event report")
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireAffected(result, "delete event")
}

// Notifications

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, is_read, link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Title, n.Message, n.Type, n.IsRead, n.Link, n.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, type, is_read, link, created_at
		FROM notifications WHERE user_id=$1 ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.Link, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// MarkNotificationRead only touches notifications owned by userID.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(result, "mark notification read")
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Contacts

func (s *PostgresStore) InsertContact(ctx context.Context, c Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, subject, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, c.Email, c.Subject, c.Message, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, subject, message, created_at FROM contacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *PostgresStore) InsertBusinessContact(ctx context.Context, c BusinessContact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_contacts (id, company, name, email, phone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Company, c.Name, c.Email, c.Phone, c.Message, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert business contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBusinessContacts(ctx context.Context) ([]BusinessContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, name, email, phone, message, created_at FROM business_contacts ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list business contacts: %w", err)
	}
	defer rows.Close()

	items := make([]BusinessContact, 0)
	for rows.Next() {
		var c BusinessContact
		if err := rows.Scan(&c.ID, &c.Company, &c.Name, &c.Email, &c.Phone, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan business contact: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Stats

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{IdeasByStatus: map[IdeaStatus]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("count ideas by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status IdeaStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan status count: %w", err)
		}
		stats.IdeasByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM contacts), (SELECT COUNT(*) FROM business_contacts)
	`).Scan(&stats.Users, &stats.Contacts, &stats.BusinessContacts); err != nil {
		return Stats{}, fmt.Errorf("count totals: %w", err)
	}
	return stats, nil
}
