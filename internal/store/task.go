package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/taskhive/apiserver/types"
)

const taskColumns = `id, title, user_id, create_role, create_department, status, status_change_role, admin_id, created_at, updated_at`

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row interface{ Scan(...any) error }) (types.Task, error) {
	var task types.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.UserID,
		&task.CreateRole,
		&task.CreateDepartment,
		&task.Status,
		&task.StatusChangeRole,
		&task.AdminID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int) (types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1`
	return scanTask(r.db.QueryRowContext(ctx, query, id))
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (title, user_id, create_role, create_department, status, status_change_role, admin_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.UserID,
		task.CreateRole,
		task.CreateDepartment,
		task.Status,
		task.StatusChangeRole,
		task.AdminID,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now()

	const query = `
		UPDATE tasks
		SET title = $1,
			user_id = $2,
			create_role = $3,
			create_department = $4,
			status = $5,
			status_change_role = $6,
			admin_id = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.UserID,
		task.CreateRole,
		task.CreateDepartment,
		task.Status,
		task.StatusChangeRole,
		task.AdminID,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return types.Task{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, err
	}
	if affected == 0 {
		return types.Task{}, ErrNotFound
	}
	return task, nil
}

// UpdateStatus touches only the status fields, returning the updated task.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int, status, statusChangeRole string, adminID *int) (types.Task, error) {
	const query = `
		UPDATE tasks
		SET status = $1, status_change_role = $2, admin_id = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + taskColumns
	return scanTask(r.db.QueryRowContext(ctx, query, status, statusChangeRole, adminID, time.Now(), id))
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns every task owned by the user, newest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int) ([]types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// DepartmentCount is one row of the department aggregation.
type DepartmentCount struct {
	Department     string
	TotalUsers     int
	TotalTasks     int
	TotalCompleted int
}

// DepartmentCounts aggregates non-admin users and their tasks per department.
// Departments with no users are absent from the result; callers zero-fill
// against the fixed department list.
func (r *TaskRepository) DepartmentCounts(ctx context.Context, departments []string) ([]DepartmentCount, error) {
	const query = `
		SELECT u.department,
			COUNT(DISTINCT u.id) AS total_users,
			COUNT(t.id) AS total_tasks,
			COUNT(t.id) FILTER (WHERE t.status = 'completed') AS total_completed
		FROM users u
		LEFT JOIN tasks t ON t.user_id = u.id
		WHERE u.department = ANY($1) AND u.role <> 'admin'
		GROUP BY u.department`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(departments))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []DepartmentCount{}
	for rows.Next() {
		var c DepartmentCount
		if err := rows.Scan(&c.Department, &c.TotalUsers, &c.TotalTasks, &c.TotalCompleted); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
