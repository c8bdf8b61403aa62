package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cnic-capture/models"

	"github.com/redis/go-redis/v9"
)

// Should be safe to use in concurrency
type SessionStorage interface {
	// Store the session under the given session id. Storing an existing id
	// overwrites the previous value; transitions go through this path.
	StoreSession(sessionId string, session *models.FormSession) error

	// Should retrieve the session for the given id and return an error in
	// any case where it fails to do so.
	RetrieveSession(sessionId string) (*models.FormSession, error)

	// Should remove the session and return an error if it fails to do so.
	// The value not being there should also be considered an error.
	RemoveSession(sessionId string) error
}

// Sessions outlive neither the form they back nor a day of inactivity.
const SessionTimeout time.Duration = 24 * time.Hour

// ------------------------------------------------------------------------------

// InMemorySessionStorage keeps sessions as serialized values so callers see
// the same copy-on-retrieve semantics as the Redis storage: mutations only
// take effect through StoreSession.
type InMemorySessionStorage struct {
	sessions map[string][]byte
	mutex    sync.Mutex
}

func NewInMemorySessionStorage() *InMemorySessionStorage {
	return &InMemorySessionStorage{
		sessions: make(map[string][]byte),
	}
}

func (s *InMemorySessionStorage) StoreSession(sessionId string, session *models.FormSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[sessionId] = payload
	return nil
}

func (s *InMemorySessionStorage) RetrieveSession(sessionId string) (*models.FormSession, error) {
	s.mutex.Lock()
	payload, ok := s.sessions[sessionId]
	s.mutex.Unlock()

	if !ok {
		return nil, fmt.Errorf("failed to find session for %s", sessionId)
	}
	var session models.FormSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *InMemorySessionStorage) RemoveSession(sessionId string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[sessionId]; ok {
		delete(s.sessions, sessionId)
		return nil
	}
	return fmt.Errorf("failed to remove session for %s, because it wasn't there", sessionId)
}

// ------------------------------------------------------------------------------

type RedisSessionStorage struct {
	client    *redis.Client
	namespace string
}

func NewRedisSessionStorage(client *redis.Client, namespace string) *RedisSessionStorage {
	return &RedisSessionStorage{client: client, namespace: namespace}
}

func createKey(namespace, sessionId string) string {
	return fmt.Sprintf("%s:session:%s", namespace, sessionId)
}

func (s *RedisSessionStorage) StoreSession(sessionId string, session *models.FormSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ctx := context.Background()
	return s.client.Set(ctx, createKey(s.namespace, sessionId), payload, SessionTimeout).Err()
}

func (s *RedisSessionStorage) RetrieveSession(sessionId string) (*models.FormSession, error) {
	ctx := context.Background()
	payload, err := s.client.Get(ctx, createKey(s.namespace, sessionId)).Bytes()
	if err != nil {
		return nil, err
	}
	var session models.FormSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStorage) RemoveSession(sessionId string) error {
	ctx := context.Background()
	removed, err := s.client.Del(ctx, createKey(s.namespace, sessionId)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("failed to remove session for %s, because it wasn't there", sessionId)
	}
	return nil
}
