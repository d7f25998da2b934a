package services

import (
	"context"
	"fmt"
	"math"

	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	GetByID(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	UpdateStatus(ctx context.Context, id int, status, statusChangeRole string, adminID *int) (types.Task, error)
	Delete(ctx context.Context, id int) error
	ListByUser(ctx context.Context, userID int) ([]types.Task, error)
	DepartmentCounts(ctx context.Context, departments []string) ([]store.DepartmentCount, error)
}

// TaskService encapsulates task use-cases and aggregations.
type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) Get(ctx context.Context, id int) (types.Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TaskService) Create(ctx context.Context, task types.Task) (types.Task, error) {
	return s.repo.Create(ctx, task)
}

func (s *TaskService) Update(ctx context.Context, task types.Task) (types.Task, error) {
	return s.repo.Update(ctx, task)
}

func (s *TaskService) ChangeStatus(ctx context.Context, id int, status, statusChangeRole string, adminID *int) (types.Task, error) {
	return s.repo.UpdateStatus(ctx, id, status, statusChangeRole, adminID)
}

func (s *TaskService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) ListByUser(ctx context.Context, userID int) ([]types.Task, error) {
	return s.repo.ListByUser(ctx, userID)
}

// DepartmentSummary aggregates users and tasks for the fixed department list.
// Every department appears in the result; departments the query did not
// return are zero-filled.
func (s *TaskService) DepartmentSummary(ctx context.Context) ([]types.DepartmentSummary, error) {
	counts, err := s.repo.DepartmentCounts(ctx, types.Departments)
	if err != nil {
		return nil, err
	}

	byDept := make(map[string]store.DepartmentCount, len(counts))
	for _, c := range counts {
		byDept[c.Department] = c
	}

	summaries := make([]types.DepartmentSummary, 0, len(types.Departments))
	for _, dept := range types.Departments {
		c := byDept[dept]
		summaries = append(summaries, types.DepartmentSummary{
			DepartmentName:   dept,
			TotalUsers:       c.TotalUsers,
			TotalTasks:       c.TotalTasks,
			TotalCompleted:   c.TotalCompleted,
			CompletedPercent: roundedPercent(c.TotalCompleted, c.TotalTasks),
		})
	}
	return summaries, nil
}

// WithTaskStats joins a user with their task list and completion figures.
func (s *TaskService) WithTaskStats(ctx context.Context, user types.User) (types.UserTaskStats, error) {
	tasks, err := s.repo.ListByUser(ctx, user.ID)
	if err != nil {
		return types.UserTaskStats{}, err
	}

	completed := 0
	for _, task := range tasks {
		if task.Status == types.StatusCompleted {
			completed++
		}
	}

	return types.UserTaskStats{
		User:                 user,
		Tasks:                tasks,
		CompletedTasks:       completed,
		TotalTasks:           len(tasks),
		CompletionPercentage: formattedPercent(completed, len(tasks)),
	}, nil
}

// roundedPercent is round(completed/total*100), 0 when total is zero.
func roundedPercent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// formattedPercent renders completed/total*100 with two decimals, "0.00"
// when total is zero.
func formattedPercent(completed, total int) string {
	if total == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(completed)/float64(total)*100)
}
