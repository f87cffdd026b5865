package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"tasktalk/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const (
	taskColumns         = `id,user_id,title,description,completed,priority,due_date,category_id,recurrence_pattern,recurrence_interval,COALESCE(notes,''),created_at,updated_at,completed_at`
	taskColumnsPrefixed = `t.id,t.user_id,t.title,t.description,t.completed,t.priority,t.due_date,t.category_id,t.recurrence_pattern,t.recurrence_interval,COALESCE(t.notes,''),t.created_at,t.updated_at,t.completed_at`
)

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var description, dueDate, recurrence, completedAt sql.NullString
	var categoryID sql.NullInt64
	var completed int
	err := scan(&t.ID, &t.UserID, &t.Title, &description, &completed, &t.Priority, &dueDate,
		&categoryID, &recurrence, &t.RecurrenceInterval, &t.Notes, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Completed = completed != 0
	if description.Valid {
		t.Description = description.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if recurrence.Valid {
		t.RecurrencePattern = &recurrence.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(user_id,title,description,completed,priority,due_date,category_id,recurrence_pattern,recurrence_interval,notes,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.UserID, t.Title, nullable(t.Description), boolInt(t.Completed), t.Priority, nullableStringPtr(t.DueDate),
		nullableInt64Ptr(t.CategoryID), nullableStringPtr(t.RecurrencePattern), t.RecurrenceInterval,
		nullable(t.Notes), t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTask fetches a task scoped by (taskID, userID); a task owned by another
// user is indistinguishable from a missing one.
func (r Repo) GetTask(ctx context.Context, userID string, taskID int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND user_id=?`, taskID, userID)
	t, err := scanTask(row.Scan)
	if err != nil {
		return t, err
	}
	t.Tags, err = r.ListTaskTags(ctx, t.ID)
	return t, err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, completed=?, priority=?, due_date=?, category_id=?, recurrence_pattern=?, recurrence_interval=?, notes=?, updated_at=?, completed_at=? WHERE id=? AND user_id=?`,
		t.Title, nullable(t.Description), boolInt(t.Completed), t.Priority, nullableStringPtr(t.DueDate),
		nullableInt64Ptr(t.CategoryID), nullableStringPtr(t.RecurrencePattern), t.RecurrenceInterval,
		nullable(t.Notes), t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID, t.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, userID string, taskID int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND user_id=?`, taskID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks turns a QuerySpec into a parameterized query. Filters combine
// with AND only; the spec is the sole source of clauses, never raw text.
func (r Repo) ListTasks(ctx context.Context, userID string, q domain.QuerySpec) ([]domain.Task, error) {
	q.Normalize()
	clauses := []string{"t.user_id=?"}
	args := []any{userID}
	switch q.Status {
	case "pending":
		clauses = append(clauses, "t.completed=0")
	case "completed":
		clauses = append(clauses, "t.completed=1")
	}
	switch q.Priority {
	case "":
	case domain.PriorityHigh:
		// High is a tier: critical tasks count as high when filtering.
		clauses = append(clauses, "t.priority IN ('high','critical')")
	default:
		clauses = append(clauses, "t.priority=?")
		args = append(args, q.Priority)
	}
	if q.Category != "" {
		clauses = append(clauses, "t.category_id IN (SELECT id FROM categories WHERE user_id=? AND LOWER(name)=LOWER(?))")
		args = append(args, userID, q.Category)
	}
	for _, tag := range q.Tags {
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM task_tags tt JOIN tags tg ON tg.id=tt.tag_id
			WHERE tt.task_id=t.id AND tg.user_id=? AND tg.name=?
		)`)
		args = append(args, userID, strings.ToLower(tag))
	}
	if q.Keyword != "" {
		like := "%" + q.Keyword + "%"
		clauses = append(clauses, "(t.title LIKE ? OR t.description LIKE ? OR t.notes LIKE ?)")
		args = append(args, like, like, like)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + taskColumnsPrefixed + ` FROM tasks t ` + where + ` ORDER BY ` + orderClause(q.Sort) + ` LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		tags, err := r.ListTaskTags(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Tags = tags
	}
	return res, nil
}

func orderClause(sort string) string {
	switch sort {
	case domain.SortPriorityDesc:
		return `CASE t.priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END ASC, t.created_at DESC, t.id DESC`
	case domain.SortDueAsc:
		return `CASE WHEN t.due_date IS NULL THEN 1 ELSE 0 END, t.due_date ASC, t.id ASC`
	case domain.SortDueDesc:
		return `CASE WHEN t.due_date IS NULL THEN 1 ELSE 0 END, t.due_date DESC, t.id DESC`
	case domain.SortTitleAsc:
		return `LOWER(t.title) ASC, t.id ASC`
	default:
		return `t.created_at DESC, t.id DESC`
	}
}

func (r Repo) CountTasksByStatus(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT completed, count(*) FROM tasks WHERE user_id=? GROUP BY completed`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var completed, count int
		if err := rows.Scan(&completed, &count); err != nil {
			return nil, err
		}
		if completed != 0 {
			res["completed"] = count
		} else {
			res["pending"] = count
		}
	}
	return res, nil
}

// CreateOrGetCategory matches case-insensitively and creates the category on
// the fly when missing.
func (r Repo) CreateOrGetCategory(ctx context.Context, tx *sql.Tx, userID, name, now string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, errors.New("category name required")
	}
	query := func(q string, args ...any) *sql.Row {
		if tx != nil {
			return tx.QueryRowContext(ctx, q, args...)
		}
		return r.DB.QueryRowContext(ctx, q, args...)
	}
	var c domain.Category
	err := query(`SELECT id,user_id,name,created_at FROM categories WHERE user_id=? AND LOWER(name)=LOWER(?)`, userID, name).
		Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return c, err
	}
	exec := func(q string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, q, args...)
		}
		return r.DB.ExecContext(ctx, q, args...)
	}
	res, err := exec(`INSERT INTO categories(user_id,name,created_at) VALUES (?,?,?)`, userID, name, now)
	if err != nil {
		return c, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return c, err
	}
	return domain.Category{ID: id, UserID: userID, Name: name, CreatedAt: now}, nil
}

func (r Repo) GetCategory(ctx context.Context, userID string, id int64) (domain.Category, error) {
	var c domain.Category
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,name,created_at FROM categories WHERE id=? AND user_id=?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,name,created_at FROM categories WHERE user_id=? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ensureTag returns the tag id for a name, creating it when missing. Tag
// names are stored lowercase.
func (r Repo) ensureTag(ctx context.Context, tx *sql.Tx, userID, name, now string) (int64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE user_id=? AND name=?`, userID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO tags(user_id,name,created_at) VALUES (?,?,?)`, userID, name, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) AttachTag(ctx context.Context, tx *sql.Tx, userID string, taskID int64, name, now string) error {
	id, err := r.ensureTag(ctx, tx, userID, name, now)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_tags(task_id, tag_id) VALUES (?,?)`, taskID, id)
	return err
}

func (r Repo) DetachTag(ctx context.Context, tx *sql.Tx, userID string, taskID int64, name string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id=? AND tag_id IN (SELECT id FROM tags WHERE user_id=? AND name=?)`,
		taskID, userID, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTaskTags(ctx context.Context, taskID int64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT tg.name FROM task_tags tt JOIN tags tg ON tg.id=tt.tag_id WHERE tt.task_id=? ORDER BY tg.name ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
