package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"labrecord/internal/database"
	"labrecord/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecordStore is the persistence contract for document records.
// Implemented by RecordService (MongoDB) and MemoryRecordStore (in-memory).
type RecordStore interface {
	// Upsert creates or updates the single record keyed by (userID, courseTitle)
	// and returns the id of the affected record. When isDownload is set the
	// record's download counter is incremented. Every call slides expiresAt
	// forward to now+TTL.
	Upsert(ctx context.Context, userID, courseTitle, studentName, registerNumber string, experiments []models.Experiment, isDownload bool) (string, error)

	// ListByUser returns the user's records, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]models.DocumentRecord, error)

	// Remove deletes one record by id, scoped to its owner. Removing a
	// nonexistent id is not an error.
	Remove(ctx context.Context, userID, recordID string) error

	// SweepExpired deletes every record with expiresAt <= now, across all
	// users. Partial failure is tolerated: it returns how many deletions
	// succeeded together with the first error encountered.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// ProbeAccess performs a minimal read to distinguish "backend reachable
	// and authorized" from "not". Authorization-denied is the boolean false,
	// never an error.
	ProbeAccess(ctx context.Context, userID string) (bool, error)
}

// RecordService is the MongoDB-backed record store.
type RecordService struct {
	db         *database.MongoDB
	collection *mongo.Collection
	ttl        time.Duration
	now        func() time.Time
}

// NewRecordService creates a new record service with the given sliding TTL.
func NewRecordService(db *database.MongoDB, ttlDays int) *RecordService {
	return &RecordService{
		db:         db,
		collection: db.Collection(database.CollectionDocumentRecords),
		ttl:        time.Duration(ttlDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// normalizeExperiments assigns ids to experiments the client left blank.
func normalizeExperiments(experiments []models.Experiment) []models.Experiment {
	if experiments == nil {
		experiments = []models.Experiment{}
	}
	for i := range experiments {
		if experiments[i].ID == "" {
			experiments[i].ID = uuid.NewString()
		}
	}
	return experiments
}

// Upsert atomically creates or updates the record for (userID, courseTitle).
// The unique compound index makes the find-and-write a single step; the
// documented last-write-wins race only remains between concurrent first
// writes, where the loser retries into the update path.
func (s *RecordService) Upsert(ctx context.Context, userID, courseTitle, studentName, registerNumber string, experiments []models.Experiment, isDownload bool) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user ID is required", ErrValidationFailure)
	}
	if courseTitle == "" {
		return "", fmt.Errorf("%w: course title is required", ErrValidationFailure)
	}

	experiments = normalizeExperiments(experiments)

	id, err := s.upsertOnce(ctx, userID, courseTitle, studentName, registerNumber, experiments, isDownload)
	if err != nil && classifyUpsertError(err) == upsertRetry {
		// Lost a concurrent first-write race; the record exists now, so the
		// retry takes the update path.
		id, err = s.upsertOnce(ctx, userID, courseTitle, studentName, registerNumber, experiments, isDownload)
	}
	if err == nil {
		return id, nil
	}

	switch classifyUpsertError(err) {
	case upsertPermission:
		return "", fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case upsertInsertFallback:
		// The backend cannot serve the keyed upsert. Never fail the caller on
		// this: create a fresh record instead, accepting a possible duplicate
		// course title for this user.
		log.Printf("⚠️ Index error during record upsert, creating new record instead: %v", err)
		return s.insertFallback(ctx, userID, courseTitle, studentName, registerNumber, experiments, isDownload)
	default:
		return "", fmt.Errorf("%w: failed to upsert record: %v", ErrStoreUnavailable, err)
	}
}

func (s *RecordService) upsertOnce(ctx context.Context, userID, courseTitle, studentName, registerNumber string, experiments []models.Experiment, isDownload bool) (string, error) {
	now := s.now().UTC()

	filter := bson.M{
		"userId":      userID,
		"courseTitle": courseTitle,
	}

	// $setOnInsert only applies when creating the document.
	// downloadCount: $inc creates the field as 1 on insert and increments on
	// update, so the non-download path seeds it with $setOnInsert instead —
	// the two cannot target the same field in one command.
	update := bson.M{
		"$set": bson.M{
			"studentName":    studentName,
			"registerNumber": registerNumber,
			"experiments":    experiments,
			"updatedAt":      now,
			"expiresAt":      now.Add(s.ttl),
		},
		"$setOnInsert": bson.M{
			"userId":      userID,
			"courseTitle": courseTitle,
			"createdAt":   now,
		},
	}
	if isDownload {
		update["$inc"] = bson.M{"downloadCount": 1}
	} else {
		update["$setOnInsert"].(bson.M)["downloadCount"] = 0
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var record models.DocumentRecord
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&record); err != nil {
		return "", err
	}

	return record.ID.Hex(), nil
}

// insertFallback writes a brand-new record without consulting existing ones.
func (s *RecordService) insertFallback(ctx context.Context, userID, courseTitle, studentName, registerNumber string, experiments []models.Experiment, isDownload bool) (string, error) {
	now := s.now().UTC()

	downloadCount := 0
	if isDownload {
		downloadCount = 1
	}

	result, err := s.collection.InsertOne(ctx, models.DocumentRecord{
		UserID:         userID,
		CourseTitle:    courseTitle,
		StudentName:    studentName,
		RegisterNumber: registerNumber,
		Experiments:    experiments,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		DownloadCount:  downloadCount,
	})
	if err != nil {
		if isPermissionDenied(err) {
			return "", fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return "", fmt.Errorf("%w: failed to save record: %v", ErrStoreUnavailable, err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("%w: unexpected inserted id type %T", ErrStoreUnavailable, result.InsertedID)
	}
	return id.Hex(), nil
}

// ListByUser returns all records owned by userID, sorted descending by
// updatedAt. Records written before updatedAt existed sort by createdAt.
func (s *RecordService) ListByUser(ctx context.Context, userID string) ([]models.DocumentRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidationFailure)
	}

	cursor, err := s.collection.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		if isPermissionDenied(err) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: failed to list records: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	records := make([]models.DocumentRecord, 0)
	for cursor.Next(ctx) {
		var record models.DocumentRecord
		if err := cursor.Decode(&record); err != nil {
			log.Printf("⚠️ Failed to decode record: %v", err)
			continue
		}
		if record.Experiments == nil {
			record.Experiments = []models.Experiment{}
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read records: %v", ErrStoreUnavailable, err)
	}

	SortRecords(records)
	return records, nil
}

// SortRecords orders records most recently updated first, falling back to
// createdAt for records missing updatedAt, with a deterministic id
// tie-break. Shared by both store implementations.
func SortRecords(records []models.DocumentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti := recordSortTime(records[i])
		tj := recordSortTime(records[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return records[i].ID.Hex() > records[j].ID.Hex()
	})
}

func recordSortTime(r models.DocumentRecord) time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// Remove deletes one record by id. Deleting a record that is already gone
// satisfies the contract, so a zero delete count is not an error.
func (s *RecordService) Remove(ctx context.Context, userID, recordID string) error {
	objectID, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		// Malformed ids cannot name an existing record; absent afterward holds.
		return nil
	}

	filter := bson.M{"_id": objectID}
	if userID != "" {
		filter["userId"] = userID
	}

	if _, err := s.collection.DeleteOne(ctx, filter); err != nil {
		if isPermissionDenied(err) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: failed to delete record: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SweepExpired deletes every record with expiresAt <= now. Deletions are
// per-record and best-effort: a record refreshed after the snapshot may
// still be deleted, and one failed delete does not roll back the rest.
func (s *RecordService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		if isPermissionDenied(err) {
			return 0, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return 0, fmt.Errorf("%w: failed to query expired records: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var record models.DocumentRecord
		if err := cursor.Decode(&record); err != nil {
			log.Printf("⚠️ Failed to decode expired record: %v", err)
			continue
		}
		ids = append(ids, record.ID)
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("%w: failed to read expired records: %v", ErrStoreUnavailable, err)
	}

	deleted := 0
	var firstErr error
	for _, id := range ids {
		result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: failed to delete record %s: %v", ErrStoreUnavailable, id.Hex(), err)
			}
			continue
		}
		deleted += int(result.DeletedCount)
	}

	return deleted, firstErr
}

// ProbeAccess fetches at most one record for the user to check that the
// backend is reachable and the caller is authorized.
func (s *RecordService) ProbeAccess(ctx context.Context, userID string) (bool, error) {
	opts := options.Find().SetLimit(1)
	cursor, err := s.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		if isPermissionDenied(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: access probe failed: %v", ErrStoreUnavailable, err)
	}
	cursor.Close(ctx)
	return true, nil
}
