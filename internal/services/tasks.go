package services

import (
	"strings"
	"sync"
	"time"

	"taskhub/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TaskQuery carries the optional list filters. Nil pointers and zero values
// mean the filter is not applied; the owner scope is always applied.
type TaskQuery struct {
	Search    string
	Priority  *string
	Completed *bool
	DueBefore *time.Time
	DueAfter  *time.Time
	Page      int
	Limit     int
	Sort      string
	Order     string
}

// TaskPage is one page of matching tasks plus the total match count. The
// page and count reads are not isolated from each other; total may race
// concurrent writes.
type TaskPage struct {
	Items []models.Task `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int64         `json:"total"`
}

// TaskPatch holds the fields of a partial update. Only non-nil fields are
// written.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	Completed   *bool
}

type TaskService interface {
	CreateTask(db *gorm.DB, task *models.Task) error
	GetTaskByID(db *gorm.DB, ownerID, id uuid.UUID) (models.Task, error)
	ListTasks(db *gorm.DB, ownerID uuid.UUID, query TaskQuery) (*TaskPage, error)
	UpdateTask(db *gorm.DB, ownerID, id uuid.UUID, patch TaskPatch) (models.Task, error)
	DeleteTask(db *gorm.DB, ownerID, id uuid.UUID) error
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

// Normalize clamps paging values and whitelists sort field and direction.
func (q *TaskQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > MaxPageSize {
		q.Limit = DefaultPageSize
	}

	allowedSort := map[string]string{
		"created_at": "created_at",
		"createdAt":  "created_at",
		"due_date":   "due_date",
		"dueDate":    "due_date",
		"priority":   "priority",
	}
	if mapped, ok := allowedSort[q.Sort]; ok {
		q.Sort = mapped
	} else {
		q.Sort = "created_at"
	}

	if q.Order != "asc" && q.Order != "desc" {
		q.Order = "desc"
	}
}

// apply builds the conjunctive filter on top of the mandatory owner scope.
func (q *TaskQuery) apply(db *gorm.DB, ownerID uuid.UUID) *gorm.DB {
	scoped := db.Model(&models.Task{}).Where("user_id = ?", ownerID)

	if q.Priority != nil {
		scoped = scoped.Where("priority = ?", *q.Priority)
	}
	if q.Completed != nil {
		scoped = scoped.Where("completed = ?", *q.Completed)
	}
	if q.DueBefore != nil {
		scoped = scoped.Where("due_date <= ?", *q.DueBefore)
	}
	if q.DueAfter != nil {
		scoped = scoped.Where("due_date >= ?", *q.DueAfter)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		scoped = scoped.Where(
			`(LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(description) LIKE LOWER(?) ESCAPE '\')`,
			pattern, pattern)
	}

	return scoped
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE metacharacters so a search term matches
// literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, task *models.Task) error {
	task.Title = strings.TrimSpace(task.Title)
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.Must(uuid.NewV4())
	}
	return db.Create(task).Error
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, ownerID, id uuid.UUID) (models.Task, error) {
	var task models.Task
	result := db.Where("id = ? AND user_id = ?", id, ownerID).First(&task)
	return task, result.Error
}

// ListTasks runs the page query and the total count concurrently. There is
// no snapshot isolation between the two reads.
func (s *TaskServiceImpl) ListTasks(db *gorm.DB, ownerID uuid.UUID, query TaskQuery) (*TaskPage, error) {
	query.Normalize()

	var (
		tasks    []models.Task
		total    int64
		findErr  error
		countErr error
		wg       sync.WaitGroup
	)

	offset := (query.Page - 1) * query.Limit

	wg.Add(2)
	go func() {
		defer wg.Done()
		findErr = query.apply(db, ownerID).
			Order(query.Sort + " " + query.Order).
			Offset(offset).
			Limit(query.Limit).
			Find(&tasks).Error
	}()
	go func() {
		defer wg.Done()
		countErr = query.apply(db, ownerID).Count(&total).Error
	}()
	wg.Wait()

	if findErr != nil {
		return nil, findErr
	}
	if countErr != nil {
		return nil, countErr
	}

	if tasks == nil {
		tasks = []models.Task{}
	}

	return &TaskPage{
		Items: tasks,
		Page:  query.Page,
		Limit: query.Limit,
		Total: total,
	}, nil
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, ownerID, id uuid.UUID, patch TaskPatch) (models.Task, error) {
	var task models.Task
	if err := db.Where("id = ? AND user_id = ?", id, ownerID).First(&task).Error; err != nil {
		return task, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.DueDate != nil {
		updates["due_date"] = *patch.DueDate
	}
	if patch.Completed != nil {
		updates["completed"] = *patch.Completed
	}

	if len(updates) == 0 {
		return task, nil
	}

	if err := db.Model(&task).Updates(updates).Error; err != nil {
		return task, err
	}

	result := db.Where("id = ? AND user_id = ?", id, ownerID).First(&task)
	return task, result.Error
}

// DeleteTask removes an owned task. A non-owned or absent id matches zero
// rows and reports ErrRecordNotFound; nothing belonging to another user is
// ever touched.
func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, ownerID, id uuid.UUID) error {
	result := db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
