package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"labrecord/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRecordStore is an in-memory RecordStore. It backs local development
// without MongoDB and the record store tests. Unlike the Mongo store it has
// no unique index, so the upsert scans the user's records for a matching
// course title, which is the original find-then-write behavior.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]models.DocumentRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryRecordStore creates an empty in-memory store with the given
// sliding TTL.
func NewMemoryRecordStore(ttlDays int) *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]models.DocumentRecord),
		ttl:     time.Duration(ttlDays) * 24 * time.Hour,
		now:     time.Now,
	}
}

// SetClock overrides the store's time source. Only used by tests.
func (s *MemoryRecordStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Upsert implements RecordStore.
func (s *MemoryRecordStore) Upsert(ctx context.Context, userID, courseTitle, studentName, registerNumber string, experiments []models.Experiment, isDownload bool) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user ID is required", ErrValidationFailure)
	}
	if courseTitle == "" {
		return "", fmt.Errorf("%w: course title is required", ErrValidationFailure)
	}

	experiments = normalizeExperiments(experiments)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	for id, record := range s.records {
		if record.UserID != userID || record.CourseTitle != courseTitle {
			continue
		}
		record.StudentName = studentName
		record.RegisterNumber = registerNumber
		record.Experiments = experiments
		record.UpdatedAt = now
		record.ExpiresAt = now.Add(s.ttl)
		if isDownload {
			record.DownloadCount++
		}
		s.records[id] = record
		return id, nil
	}

	downloadCount := 0
	if isDownload {
		downloadCount = 1
	}

	objectID := primitive.NewObjectID()
	s.records[objectID.Hex()] = models.DocumentRecord{
		ID:             objectID,
		UserID:         userID,
		CourseTitle:    courseTitle,
		StudentName:    studentName,
		RegisterNumber: registerNumber,
		Experiments:    experiments,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		DownloadCount:  downloadCount,
	}
	return objectID.Hex(), nil
}

// ListByUser implements RecordStore.
func (s *MemoryRecordStore) ListByUser(ctx context.Context, userID string) ([]models.DocumentRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidationFailure)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.DocumentRecord, 0)
	for _, record := range s.records {
		if record.UserID == userID {
			records = append(records, record)
		}
	}

	SortRecords(records)
	return records, nil
}

// Remove implements RecordStore.
func (s *MemoryRecordStore) Remove(ctx context.Context, userID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil
	}
	if userID != "" && record.UserID != userID {
		return nil
	}
	delete(s.records, recordID)
	return nil
}

// SweepExpired implements RecordStore.
func (s *MemoryRecordStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, record := range s.records {
		if !record.ExpiresAt.After(now) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// ProbeAccess implements RecordStore. The in-memory store is always
// reachable and has no authorization layer.
func (s *MemoryRecordStore) ProbeAccess(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

// Len reports the total number of stored records across all users.
func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
