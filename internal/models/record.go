package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Experiment is a single row of the table of contents.
// The position inside a record's experiment list is the experiment number.
type Experiment struct {
	ID         string `bson:"id" json:"id"`
	Title      string `bson:"title" json:"title"`
	GithubLink string `bson:"githubLink" json:"githubLink"`
	Date       string `bson:"date,omitempty" json:"date,omitempty"` // free-form, formatted only for display
}

// DocumentRecord is one saved (course, student, experiments) submission scoped to a user.
// At most one record exists per (userId, courseTitle) pair; expiresAt is a sliding
// TTL reset to now+15 days on every write.
type DocumentRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	CourseTitle    string             `bson:"courseTitle" json:"course_title"`
	StudentName    string             `bson:"studentName" json:"student_name"`
	RegisterNumber string             `bson:"registerNumber" json:"register_number"`
	Experiments    []Experiment       `bson:"experiments" json:"experiments"`
	CreatedAt      time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updatedAt,omitempty" json:"updated_at"`
	ExpiresAt      time.Time          `bson:"expiresAt" json:"expires_at"`
	DownloadCount  int                `bson:"downloadCount" json:"download_count"`
}

// SaveRecordRequest is the body of POST /api/records.
type SaveRecordRequest struct {
	CourseTitle    string       `json:"courseTitle"`
	StudentName    string       `json:"studentName"`
	RegisterNumber string       `json:"registerNumber"`
	Experiments    []Experiment `json:"experiments"`
	AutoSave       bool         `json:"autoSave"` // debounced background save; soft-fail on transient errors
}

// SaveRecordResponse reports the id of the affected record.
type SaveRecordResponse struct {
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

// RecordListResponse wraps the user's saved records, most recently updated first.
type RecordListResponse struct {
	Records    []DocumentRecord `json:"records"`
	TotalCount int              `json:"total_count"`
}

// GenerateRequest is the body of the two render endpoints.
type GenerateRequest struct {
	CourseTitle    string       `json:"courseTitle"`
	StudentName    string       `json:"studentName"`
	RegisterNumber string       `json:"registerNumber"`
	Experiments    []Experiment `json:"experiments"`
}
