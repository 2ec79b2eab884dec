package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/brettboylen/social-listener/models"
)

// StatusCollection is the mongo collection holding one document per run
const StatusCollection = "collection_status"

// StatusStore keeps collection status documents in MongoDB
type StatusStore struct {
	coll *mongo.Collection
	log  *logrus.Logger
}

// NewStatusStore creates a status store on database
func NewStatusStore(database *mongo.Database, log *logrus.Logger) *StatusStore {
	return &StatusStore{coll: database.Collection(StatusCollection), log: log}
}

// Create inserts the initial status document of a run
func (s *StatusStore) Create(ctx context.Context, status *models.CollectionStatus) error {
	stamp(status)
	if _, err := s.coll.InsertOne(ctx, status); err != nil {
		return fmt.Errorf("failed to create status %s: %w", status.CollectionID, err)
	}
	return nil
}

// Update sets the non-nil fields of upd and bumps updated_at
func (s *StatusStore) Update(ctx context.Context, collectionID string, upd models.StatusUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range upd.Fields() {
		set[k] = v
	}

	res, err := s.coll.UpdateByID(ctx, collectionID, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update status %s: %w", collectionID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("status %s: %w", collectionID, ErrNotFound)
	}

	s.log.WithFields(logrus.Fields{"collection_id": collectionID, "fields": upd.Fields()}).Debug("Status updated")
	return nil
}

// Get reads the status document of a run
func (s *StatusStore) Get(ctx context.Context, collectionID string) (*models.CollectionStatus, error) {
	var status models.CollectionStatus
	err := s.coll.FindOne(ctx, bson.M{"_id": collectionID}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("status %s: %w", collectionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status %s: %w", collectionID, err)
	}
	return &status, nil
}

// MemoryStatusStore is a process-local status store for development runs
// without MongoDB
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]models.CollectionStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]models.CollectionStatus)}
}

func (m *MemoryStatusStore) Create(_ context.Context, status *models.CollectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.statuses[status.CollectionID]; exists {
		return fmt.Errorf("failed to create status %s: already exists", status.CollectionID)
	}
	stamp(status)
	m.statuses[status.CollectionID] = *status
	return nil
}

func (m *MemoryStatusStore) Update(_ context.Context, collectionID string, upd models.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[collectionID]
	if !ok {
		return fmt.Errorf("status %s: %w", collectionID, ErrNotFound)
	}
	upd.Apply(&status)
	status.UpdatedAt = time.Now().UTC()
	m.statuses[collectionID] = status
	return nil
}

func (m *MemoryStatusStore) Get(_ context.Context, collectionID string) (*models.CollectionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[collectionID]
	if !ok {
		return nil, fmt.Errorf("status %s: %w", collectionID, ErrNotFound)
	}
	return &status, nil
}

func stamp(status *models.CollectionStatus) {
	now := time.Now().UTC()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = now
	}
	status.UpdatedAt = now
	if status.Status == "" {
		status.Status = models.StatePending
	}
}
