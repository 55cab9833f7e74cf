// Package services holds the authoritative task lifecycle. Every claim
// mutation runs in one transaction that locks the task row, mutates the
// claim and re-aggregates the task before committing.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rescuehub/errs"
	"rescuehub/logger"
	"rescuehub/models"
)

type TaskService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{DB: db, now: time.Now}
}

// CreateTaskParams is the input accepted by CreateTask.
type CreateTaskParams struct {
	Title        string          `json:"title" validate:"required,max=150"`
	TaskType     models.TaskType `json:"task_type" validate:"required"`
	Description  string          `json:"description"`
	Location     *string         `json:"location,omitempty" validate:"omitempty,max=255"`
	Latitude     *float64        `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude    *float64        `json:"longitude,omitempty" validate:"omitempty,longitude"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	MaxAssignees int             `json:"max_assignees" validate:"required,gt=0"`
}

func (p CreateTaskParams) validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errs.New(errs.Validation, "title is required")
	}
	if !p.TaskType.Valid() {
		return errs.Newf(errs.Validation, "unknown task type %q", p.TaskType)
	}
	if p.MaxAssignees <= 0 {
		return errs.New(errs.Validation, "max_assignees must be positive")
	}
	if p.StartTime != nil && p.EndTime != nil && !p.EndTime.After(*p.StartTime) {
		return errs.New(errs.Validation, "end_time must be after start_time")
	}
	return nil
}

// Aggregate derives claimed count and display status from a task's claims.
// An approved claim outranks a completed one: a task with both reports
// claimed.
func Aggregate(claims []models.TaskClaim) (int, models.TaskStatus) {
	approvedOrCompleted, inProgress := 0, 0
	hasCompleted := false
	for _, c := range claims {
		switch c.Status {
		case models.ClaimApproved:
			approvedOrCompleted++
			inProgress++
		case models.ClaimCompleted:
			approvedOrCompleted++
			hasCompleted = true
		}
	}
	switch {
	case inProgress > 0:
		return approvedOrCompleted, models.TaskClaimed
	case hasCompleted:
		return approvedOrCompleted, models.TaskCompleted
	default:
		return approvedOrCompleted, models.TaskOpen
	}
}

// EnsureUser records the display name of an authenticated caller.
func (s *TaskService) EnsureUser(ctx context.Context, id uint, name string) error {
	if id == 0 {
		return errs.New(errs.Validation, "user id is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "user"
	}
	u := models.User{ID: id, Name: name}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to save user", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, creatorID uint, p CreateTaskParams) (*models.RescueTask, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	task := models.RescueTask{
		CreatorID:    creatorID,
		Title:        strings.TrimSpace(p.Title),
		TaskType:     p.TaskType,
		Description:  p.Description,
		Location:     p.Location,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Status:       models.TaskOpen,
		MaxAssignees: p.MaxAssignees,
		ClaimedCount: 0,
	}
	if err := s.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create task", err)
	}
	logger.Info("[tasks] task %d created by user %d", task.ID, creatorID)
	return s.GetTask(ctx, task.ID)
}

// ListTasks returns hydrated tasks, newest first. An empty status lists all.
func (s *TaskService) ListTasks(ctx context.Context, status models.TaskStatus) ([]models.RescueTask, error) {
	if status != "" && !status.Valid() {
		return nil, errs.Newf(errs.Validation, "unknown status %q", status)
	}
	q := s.hydrate(s.DB.WithContext(ctx))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []models.RescueTask
	if err := q.Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to list tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uint) (*models.RescueTask, error) {
	var task models.RescueTask
	if err := s.hydrate(s.DB.WithContext(ctx)).First(&task, id).Error; err != nil {
		return nil, notFoundOr(err, "task not found")
	}
	return &task, nil
}

// ListClaims returns the claims held by userID, each with its task.
func (s *TaskService) ListClaims(ctx context.Context, userID uint) ([]models.TaskClaim, error) {
	var claims []models.TaskClaim
	err := s.DB.WithContext(ctx).
		Preload("Task").
		Preload("Task.Creator").
		Preload("User").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&claims).Error
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to list claims", err)
	}
	return claims, nil
}

func (s *TaskService) ApplyClaim(ctx context.Context, taskID, userID uint) (*models.RescueTask, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.TaskClaim{}).Where("task_id = ? AND user_id = ?", taskID, userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errs.New(errs.Duplicate, "you have already applied for this task")
		}
		if task.Status.Finished() {
			return errs.New(errs.State, "task is already finished")
		}
		taken, err := countTaken(tx, taskID)
		if err != nil {
			return err
		}
		if taken >= int64(task.MaxAssignees) {
			return errs.New(errs.Capacity, "task has no free slots")
		}
		claim := models.TaskClaim{TaskID: taskID, UserID: userID, Status: models.ClaimPending}
		if err := tx.Create(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errs.New(errs.Duplicate, "you have already applied for this task")
			}
			return err
		}
		return reaggregate(tx, task, s.now())
	})
	if err != nil {
		return nil, s.fail("apply", taskID, err)
	}
	logger.Info("[tasks] user %d applied for task %d", userID, taskID)
	return s.GetTask(ctx, taskID)
}

func (s *TaskService) ApproveClaim(ctx context.Context, taskID, applicantID, reviewerID uint) (*models.RescueTask, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.CreatorID != reviewerID {
			return errs.New(errs.Permission, "only the task creator can approve claims")
		}
		if task.Status.Finished() {
			return errs.New(errs.State, "task is already finished")
		}
		// Counted under the task lock so concurrent approvals cannot oversell.
		taken, err := countTaken(tx, taskID)
		if err != nil {
			return err
		}
		if taken >= int64(task.MaxAssignees) {
			return errs.New(errs.Capacity, "task has no free slots")
		}
		var claim models.TaskClaim
		if err := tx.Where("task_id = ? AND user_id = ?", taskID, applicantID).First(&claim).Error; err != nil {
			return notFoundOr(err, "claim not found")
		}
		if claim.Status != models.ClaimPending {
			return errs.Newf(errs.State, "claim is %s, not pending", claim.Status)
		}
		now := s.now()
		if err := tx.Model(&claim).Updates(map[string]interface{}{
			"status":      models.ClaimApproved,
			"approved_at": now,
		}).Error; err != nil {
			return err
		}
		return reaggregate(tx, task, now)
	})
	if err != nil {
		return nil, s.fail("approve", taskID, err)
	}
	logger.Info("[tasks] user %d approved claim of user %d on task %d", reviewerID, applicantID, taskID)
	return s.GetTask(ctx, taskID)
}

func (s *TaskService) CompleteClaim(ctx context.Context, taskID, userID uint, note string) (*models.RescueTask, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		var claim models.TaskClaim
		if err := tx.Where("task_id = ? AND user_id = ?", taskID, userID).First(&claim).Error; err != nil {
			return notFoundOr(err, "claim not found")
		}
		if task.Status == models.TaskCancelled {
			return errs.New(errs.State, "task was cancelled")
		}
		if claim.Status != models.ClaimApproved {
			return errs.Newf(errs.State, "claim is %s, not approved", claim.Status)
		}
		now := s.now()
		var notePtr *string
		if n := strings.TrimSpace(note); n != "" {
			notePtr = &n
		}
		if err := tx.Model(&claim).Updates(map[string]interface{}{
			"status":          models.ClaimCompleted,
			"completion_note": notePtr,
			"completed_at":    now,
		}).Error; err != nil {
			return err
		}
		if notePtr != nil {
			if err := tx.Model(task).Update("completion_note", notePtr).Error; err != nil {
				return err
			}
		}
		return reaggregate(tx, task, now)
	})
	if err != nil {
		return nil, s.fail("complete", taskID, err)
	}
	logger.Info("[tasks] user %d completed claim on task %d", userID, taskID)
	return s.GetTask(ctx, taskID)
}

func (s *TaskService) CancelTask(ctx context.Context, taskID, userID uint) (*models.RescueTask, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.CreatorID != userID {
			return errs.New(errs.Permission, "only the task creator can cancel it")
		}
		if task.Status != models.TaskOpen && task.Status != models.TaskClaimed {
			return errs.Newf(errs.State, "cannot cancel a %s task", task.Status)
		}
		return tx.Model(task).Update("status", models.TaskCancelled).Error
	})
	if err != nil {
		return nil, s.fail("cancel", taskID, err)
	}
	logger.Info("[tasks] task %d cancelled by user %d", taskID, userID)
	return s.GetTask(ctx, taskID)
}

// CreatorForceComplete closes a claimed task regardless of claim states.
func (s *TaskService) CreatorForceComplete(ctx context.Context, taskID, userID uint) (*models.RescueTask, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.CreatorID != userID {
			return errs.New(errs.Permission, "only the task creator can complete it")
		}
		if task.Status != models.TaskClaimed {
			return errs.Newf(errs.State, "cannot force-complete a %s task", task.Status)
		}
		return tx.Model(task).Updates(map[string]interface{}{
			"status":       models.TaskCompleted,
			"completed_at": s.now(),
		}).Error
	})
	if err != nil {
		return nil, s.fail("force-complete", taskID, err)
	}
	logger.Info("[tasks] task %d force-completed by user %d", taskID, userID)
	return s.GetTask(ctx, taskID)
}

func (s *TaskService) hydrate(q *gorm.DB) *gorm.DB {
	return q.Preload("Creator").
		Preload("Claims", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Claims.User")
}

// fail logs unexpected errors and converts them to internal errors. Domain
// errors pass through unchanged.
func (s *TaskService) fail(op string, taskID uint, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	logger.Error("[tasks] %s on task %d failed: %v", op, taskID, err)
	return errs.Wrap(errs.Internal, "failed to update task", err)
}

func lockTask(tx *gorm.DB, id uint) (*models.RescueTask, error) {
	var task models.RescueTask
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, id).Error; err != nil {
		return nil, notFoundOr(err, "task not found")
	}
	return &task, nil
}

func countTaken(tx *gorm.DB, taskID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.TaskClaim{}).
		Where("task_id = ? AND status IN ?", taskID, []models.ClaimStatus{models.ClaimApproved, models.ClaimCompleted}).
		Count(&n).Error
	return n, err
}

// reaggregate recomputes the task's derived fields from its claims. Terminal
// overrides (cancelled, force-completed) keep their status.
func reaggregate(tx *gorm.DB, task *models.RescueTask, now time.Time) error {
	var claims []models.TaskClaim
	if err := tx.Where("task_id = ?", task.ID).Find(&claims).Error; err != nil {
		return err
	}
	count, status := Aggregate(claims)
	if task.Status.Finished() {
		status = task.Status
	}
	updates := map[string]interface{}{
		"claimed_count": count,
		"status":        status,
	}
	if status == models.TaskCompleted && task.CompletedAt == nil {
		updates["completed_at"] = now
	}
	return tx.Model(task).Updates(updates).Error
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.New(errs.NotFound, msg)
	}
	return err
}
