package services

import (
	"errors"
	"testing"
	"time"

	"taskhub/internal/models"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory store with the same error translation the
// server pool uses, so unique violations surface as gorm.ErrDuplicatedKey.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}

	// Every pooled connection to :memory: would see its own empty database,
	// so pin the pool to one connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Task{}); err != nil {
		t.Fatalf("Failed to migrate test db: %v", err)
	}

	return db
}

func registerTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	auth := NewAuthService(bcrypt.MinCost)
	user, err := auth.Register(db, email, "password123", nil)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return user
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	auth := NewAuthService(bcrypt.MinCost)

	if _, err := auth.Register(db, "ada@example.com", "password123", nil); err != nil {
		t.Fatalf("First Register failed: %v", err)
	}

	if _, err := auth.Register(db, "ADA@Example.com", "password456", nil); err != ErrEmailExists {
		t.Errorf("Expected ErrEmailExists for duplicate email, got %v", err)
	}
}

func TestRegister_UniqueIndexViolation(t *testing.T) {
	db := setupTestDB(t)
	auth := NewAuthService(bcrypt.MinCost)

	registerTestUser(t, db, "ada@example.com")

	// Bypass the service's existence check to hit the unique index the way
	// the loser of a concurrent double-register does.
	name := "Second"
	clone := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Email:    "ada@example.com",
		Password: "x",
		Name:     &name,
	}
	err := db.Create(&clone).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("Expected ErrDuplicatedKey from direct insert, got %v", err)
	}

	if _, err := auth.Register(db, "ada@example.com", "password456", nil); err != ErrEmailExists {
		t.Errorf("Expected ErrEmailExists, got %v", err)
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	auth := NewAuthService(bcrypt.MinCost)

	created := registerTestUser(t, db, "ada@example.com")

	user, err := auth.Login(db, "Ada@Example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("Expected user %s, got %s", created.ID, user.ID)
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	db := setupTestDB(t)
	auth := NewAuthService(bcrypt.MinCost)

	registerTestUser(t, db, "ada@example.com")

	_, unknownErr := auth.Login(db, "nobody@example.com", "password123")
	_, wrongErr := auth.Login(db, "ada@example.com", "wrong-password")

	if unknownErr != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials for unknown email, got %v", unknownErr)
	}
	if wrongErr != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", wrongErr)
	}
	if unknownErr != wrongErr {
		t.Errorf("Unknown-email and wrong-password failures must be indistinguishable")
	}
}

func TestCompleteReset_SingleUse(t *testing.T) {
	db := setupTestDB(t)
	auth := NewAuthService(bcrypt.MinCost)
	reset := NewResetService(bcrypt.MinCost)

	registerTestUser(t, db, "ada@example.com")

	token, err := reset.RequestReset(db, "ada@example.com")
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a token for a known email")
	}

	if _, err := reset.CompleteReset(db, token, "newpassword1", nil); err != nil {
		t.Fatalf("CompleteReset failed: %v", err)
	}

	if _, err := auth.Login(db, "ada@example.com", "newpassword1"); err != nil {
		t.Errorf("Login with new password failed: %v", err)
	}
	if _, err := auth.Login(db, "ada@example.com", "password123"); err != ErrInvalidCredentials {
		t.Errorf("Expected old password to be rejected, got %v", err)
	}

	if _, err := reset.CompleteReset(db, token, "newpassword2", nil); err != ErrInvalidResetToken {
		t.Errorf("Expected ErrInvalidResetToken on second use, got %v", err)
	}
}

func TestCompleteReset_ExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	reset := NewResetService(bcrypt.MinCost)

	registerTestUser(t, db, "ada@example.com")

	token, err := reset.RequestReset(db, "ada@example.com")
	if err != nil {
		t.Fatalf("RequestReset failed: %v", err)
	}

	err = db.Model(&models.User{}).
		Where("email = ?", "ada@example.com").
		Update("reset_expires_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("Failed to backdate expiry: %v", err)
	}

	if _, err := reset.CompleteReset(db, token, "newpassword1", nil); err != ErrInvalidResetToken {
		t.Errorf("Expected ErrInvalidResetToken for expired token, got %v", err)
	}
}

func TestRequestReset_OverwritesPendingToken(t *testing.T) {
	db := setupTestDB(t)
	reset := NewResetService(bcrypt.MinCost)

	registerTestUser(t, db, "ada@example.com")

	first, err := reset.RequestReset(db, "ada@example.com")
	if err != nil {
		t.Fatalf("First RequestReset failed: %v", err)
	}
	second, err := reset.RequestReset(db, "ada@example.com")
	if err != nil {
		t.Fatalf("Second RequestReset failed: %v", err)
	}

	if _, err := reset.CompleteReset(db, first, "newpassword1", nil); err != ErrInvalidResetToken {
		t.Errorf("Expected the overwritten token to be rejected, got %v", err)
	}
	if _, err := reset.CompleteReset(db, second, "newpassword1", nil); err != nil {
		t.Errorf("Expected the newest token to succeed, got %v", err)
	}
}

func TestRequestReset_UnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	reset := NewResetService(bcrypt.MinCost)

	token, err := reset.RequestReset(db, "nobody@example.com")
	if err != nil {
		t.Fatalf("Expected no error for unknown email, got %v", err)
	}
	if token != "" {
		t.Errorf("Expected empty token for unknown email, got %q", token)
	}
}

// seedTask inserts a task with a preset creation time so ordering is
// deterministic.
func seedTask(t *testing.T, db *gorm.DB, ownerID uuid.UUID, title string, createdAt time.Time) models.Task {
	t.Helper()

	task := models.Task{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    ownerID,
		Title:     title,
		Priority:  models.PriorityMedium,
		CreatedAt: createdAt,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("Failed to seed task %q: %v", title, err)
	}
	return task
}

func TestListTasks_Pagination(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskService()
	owner := uuid.Must(uuid.NewV4())

	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	seedTask(t, db, owner, "A", base)
	b := seedTask(t, db, owner, "B", base.Add(time.Minute))
	seedTask(t, db, owner, "C", base.Add(2*time.Minute))

	page, err := tasks.ListTasks(db, owner, TaskQuery{Page: 2, Limit: 1, Sort: "createdAt", Order: "asc"})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	if page.Total != 3 {
		t.Errorf("Expected total 3, got %d", page.Total)
	}
	if len(page.Items) != 1 {
		t.Fatalf("Expected exactly 1 item, got %d", len(page.Items))
	}
	if page.Items[0].ID != b.ID {
		t.Errorf("Expected second-oldest task %q, got %q", b.Title, page.Items[0].Title)
	}
	if page.Page != 2 || page.Limit != 1 {
		t.Errorf("Expected page=2 limit=1 echoed back, got page=%d limit=%d", page.Page, page.Limit)
	}
}

func TestListTasks_OwnerScope(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskService()
	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())

	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	mine := seedTask(t, db, alice, "alice task", base)
	theirs := seedTask(t, db, bob, "bob task", base.Add(time.Minute))

	page, err := tasks.ListTasks(db, alice, TaskQuery{})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != mine.ID {
		t.Errorf("Expected only the owner's task, got total=%d items=%d", page.Total, len(page.Items))
	}

	if _, err := tasks.GetTaskByID(db, alice, theirs.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("Expected ErrRecordNotFound for another user's task, got %v", err)
	}
}

func TestListTasks_SearchLiteralMetacharacters(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskService()
	owner := uuid.Must(uuid.NewV4())

	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	discount := seedTask(t, db, owner, "50% off sale", base)
	snake := seedTask(t, db, owner, "rename a_b field", base.Add(time.Minute))
	seedTask(t, db, owner, "plain title", base.Add(2*time.Minute))

	cases := []struct {
		search string
		want   uuid.UUID
	}{
		{"50%", discount.ID},
		{"a_b", snake.ID},
		{"A_B", snake.ID},
	}
	for _, tc := range cases {
		page, err := tasks.ListTasks(db, owner, TaskQuery{Search: tc.search})
		if err != nil {
			t.Fatalf("ListTasks(search=%q) failed: %v", tc.search, err)
		}
		if len(page.Items) != 1 || page.Items[0].ID != tc.want {
			t.Errorf("Search %q: expected exactly the literal match, got %d items", tc.search, len(page.Items))
		}
	}
}

func TestUpdateTask_PartialPatchPreservesFields(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskService()
	owner := uuid.Must(uuid.NewV4())

	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	original := models.Task{
		UserID:      owner,
		Title:       "write report",
		Description: "quarterly numbers",
		Priority:    models.PriorityHigh,
		DueDate:     &due,
	}
	if err := tasks.CreateTask(db, &original); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	completed := true
	updated, err := tasks.UpdateTask(db, owner, original.ID, TaskPatch{Completed: &completed})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	if !updated.Completed {
		t.Error("Expected completed to be true")
	}
	if updated.Title != "write report" {
		t.Errorf("Expected title preserved, got %q", updated.Title)
	}
	if updated.Description != "quarterly numbers" {
		t.Errorf("Expected description preserved, got %q", updated.Description)
	}
	if updated.Priority != models.PriorityHigh {
		t.Errorf("Expected priority preserved, got %q", updated.Priority)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(due) {
		t.Errorf("Expected due date preserved, got %v", updated.DueDate)
	}
}

func TestDeleteTask_CrossUser(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskService()
	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())

	task := seedTask(t, db, alice, "alice task", time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))

	if err := tasks.DeleteTask(db, bob, task.ID); err != gorm.ErrRecordNotFound {
		t.Fatalf("Expected ErrRecordNotFound for cross-user delete, got %v", err)
	}
	if _, err := tasks.GetTaskByID(db, alice, task.ID); err != nil {
		t.Errorf("Expected task to survive cross-user delete, got %v", err)
	}

	if err := tasks.DeleteTask(db, alice, task.ID); err != nil {
		t.Fatalf("Owner delete failed: %v", err)
	}
	if _, err := tasks.GetTaskByID(db, alice, task.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("Expected task gone after owner delete, got %v", err)
	}
}
