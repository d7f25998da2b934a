package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/types"
)

// fakeUserRepo is an in-memory stand-in for the postgres user repository.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == strings.ToLower(strings.TrimSpace(email)) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.ID = f.nextID
	f.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for id, existing := range f.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateState(_ context.Context, id int, state string, lastActive time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.State = state
	user.LastActive = &lastActive
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) ListNonAdmin(_ context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := []types.User{}
	for _, user := range f.users {
		if user.Role != types.RoleAdmin {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUserRepo) ListByDepartment(_ context.Context, department string) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := []types.User{}
	for _, user := range f.users {
		if user.Department == department && user.Role != types.RoleAdmin {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// fakeTaskRepo is an in-memory stand-in for the postgres task repository.
// It references the user repo to answer the department aggregation.
type fakeTaskRepo struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]types.Task
	users  *fakeUserRepo
}

func newFakeTaskRepo(users *fakeUserRepo) *fakeTaskRepo {
	return &fakeTaskRepo{nextID: 1, tasks: make(map[int]types.Task), users: users}
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id int) (types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (f *fakeTaskRepo) Create(_ context.Context, task types.Task) (types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = f.nextID
	f.nextID++
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, task types.Task) (types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return types.Task{}, store.ErrNotFound
	}
	task.UpdatedAt = time.Now()
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) UpdateStatus(_ context.Context, id int, status, statusChangeRole string, adminID *int) (types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return types.Task{}, store.ErrNotFound
	}
	task.Status = status
	task.StatusChangeRole = statusChangeRole
	task.AdminID = adminID
	task.UpdatedAt = time.Now()
	f.tasks[id] = task
	return task, nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) ListByUser(_ context.Context, userID int) ([]types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := []types.Task{}
	for _, task := range f.tasks {
		if task.UserID == userID {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (f *fakeTaskRepo) DepartmentCounts(ctx context.Context, departments []string) ([]store.DepartmentCount, error) {
	byDept := map[string]*store.DepartmentCount{}

	f.users.mu.Lock()
	users := make(map[int]types.User, len(f.users.users))
	for id, user := range f.users.users {
		users[id] = user
	}
	f.users.mu.Unlock()

	wanted := map[string]bool{}
	for _, d := range departments {
		wanted[d] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range users {
		if user.Role == types.RoleAdmin || !wanted[user.Department] {
			continue
		}
		c, ok := byDept[user.Department]
		if !ok {
			c = &store.DepartmentCount{Department: user.Department}
			byDept[user.Department] = c
		}
		c.TotalUsers++
		for _, task := range f.tasks {
			if task.UserID != user.ID {
				continue
			}
			c.TotalTasks++
			if task.Status == types.StatusCompleted {
				c.TotalCompleted++
			}
		}
	}

	counts := []store.DepartmentCount{}
	for _, c := range byDept {
		counts = append(counts, *c)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Department < counts[j].Department })
	return counts, nil
}
