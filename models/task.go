package models

import "time"

type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskClaimed   TaskStatus = "claimed"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
)

// Finished reports whether the task accepts no further claim activity.
func (s TaskStatus) Finished() bool {
	return s == TaskCompleted || s == TaskCancelled
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskOpen, TaskClaimed, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

type TaskType string

const (
	TypeRescue    TaskType = "rescue"
	TypeTransport TaskType = "transport"
	TypeFeeding   TaskType = "feeding"
	TypeMedical   TaskType = "medical"
	TypeFoster    TaskType = "foster"
	TypeOther     TaskType = "other"
)

func (t TaskType) Valid() bool {
	switch t {
	case TypeRescue, TypeTransport, TypeFeeding, TypeMedical, TypeFoster, TypeOther:
		return true
	}
	return false
}

// RescueTask is a unit of volunteer work posted by its creator. Status and
// ClaimedCount are a projection of the task's claims; see services.Aggregate.
type RescueTask struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatorID      uint       `gorm:"not null;index" json:"creator_id"`
	Title          string     `gorm:"size:150;not null" json:"title"`
	TaskType       TaskType   `gorm:"column:task_type;type:varchar(20);not null" json:"task_type"`
	Description    string     `gorm:"type:text" json:"description"`
	Location       *string    `gorm:"size:255" json:"location,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         TaskStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	MaxAssignees   int        `gorm:"not null" json:"max_assignees"`
	ClaimedCount   int        `gorm:"not null;default:0" json:"claimed_count"`
	CompletionNote *string    `gorm:"type:text" json:"completion_note,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Associations
	Creator *User       `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Claims  []TaskClaim `gorm:"foreignKey:TaskID" json:"claims,omitempty"`
}

func (RescueTask) TableName() string {
	return "rescue_tasks"
}

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimApproved  ClaimStatus = "approved"
	ClaimCompleted ClaimStatus = "completed"
)

// TaskClaim is one volunteer's application against a task. Rows are never
// deleted; only Status moves forward.
type TaskClaim struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	TaskID         uint        `gorm:"not null;uniqueIndex:idx_task_claims_task_user" json:"task_id"`
	UserID         uint        `gorm:"not null;uniqueIndex:idx_task_claims_task_user;index" json:"user_id"`
	Status         ClaimStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CompletionNote *string     `gorm:"type:text" json:"completion_note,omitempty"`
	ApprovedAt     *time.Time  `json:"approved_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// Associations
	User *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Task *RescueTask `gorm:"foreignKey:TaskID" json:"task,omitempty"`
}

func (TaskClaim) TableName() string {
	return "task_claims"
}
