package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
	"github.com/pageza/recipe-assistant/backend/internal/types"
)

// DraftTTL is how long a generated recipe stays available for saving
const DraftTTL = 24 * time.Hour

// RecipeDraft is a generated recipe waiting to be saved by its owner
type RecipeDraft struct {
	ID        string                `json:"id"`
	UserID    uuid.UUID             `json:"user_id"`
	Recipe    types.GeneratedRecipe `json:"recipe"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func draftKey(id string) string {
	return fmt.Sprintf("recipe:draft:%s", id)
}

func stampDraft(draft *RecipeDraft) {
	now := time.Now().UTC()
	if draft.ID == "" {
		draft.ID = uuid.New().String()
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
}

// RedisDraftStore keeps drafts in Redis with a 24h expiry
type RedisDraftStore struct {
	redis *redis.Client
}

func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{redis: client}
}

// SaveDraft assigns an ID to new drafts and (re)writes them with a fresh TTL
func (s *RedisDraftStore) SaveDraft(ctx context.Context, draft *RecipeDraft) error {
	stampDraft(draft)

	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := s.redis.Set(ctx, draftKey(draft.ID), data, DraftTTL).Err(); err != nil {
		return fmt.Errorf("failed to save draft to Redis: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) GetDraft(ctx context.Context, id string) (*RecipeDraft, error) {
	data, err := s.redis.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft from Redis: %w", err)
	}

	var draft RecipeDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

func (s *RedisDraftStore) DeleteDraft(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from Redis: %w", err)
	}
	return nil
}

type memoryDraft struct {
	draft     RecipeDraft
	expiresAt time.Time
}

// MemoryDraftStore is the per-process draft store used when Redis is not configured
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]memoryDraft
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{
		drafts: make(map[string]memoryDraft),
		ttl:    DraftTTL,
		now:    time.Now,
	}
}

func (s *MemoryDraftStore) SaveDraft(_ context.Context, draft *RecipeDraft) error {
	stampDraft(draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.drafts[draft.ID] = memoryDraft{draft: *draft, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryDraftStore) GetDraft(_ context.Context, id string) (*RecipeDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.drafts[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		delete(s.drafts, id)
		return nil, apperrors.ErrDraftNotFound
	}
	draft := entry.draft
	return &draft, nil
}

func (s *MemoryDraftStore) DeleteDraft(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

// evictExpired must be called with mu held
func (s *MemoryDraftStore) evictExpired() {
	now := s.now()
	for id, entry := range s.drafts {
		if !now.Before(entry.expiresAt) {
			delete(s.drafts, id)
		}
	}
}
