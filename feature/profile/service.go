package profile

import (
	"context"
	"sync"

	"datakit/core/cluster"
	"datakit/core/database"
	"datakit/core/repository"
	"datakit/feature/profile/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the profile feature's consumer surface: a read-through
// cache over the repository, invalidated by peer processes' change
// events. It only touches the repository's public CRUD surface.
type Service struct {
	repo *repository.Repository[models.PlayerProfile]
	log  *zap.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]*models.PlayerProfile
}

// NewService wires the profile repository and, when a cluster manager
// is given, subscribes cache invalidation to this table's events.
func NewService(conn database.Connector, bus *cluster.Manager, prefix string, log *zap.Logger) *Service {
	opts := []repository.Option[models.PlayerProfile]{
		repository.WithTablePrefix[models.PlayerProfile](prefix),
	}
	if bus != nil {
		opts = append(opts, repository.WithCluster[models.PlayerProfile](bus))
	}

	s := &Service{
		repo:  repository.New(conn, Descriptor, log, opts...),
		log:   log,
		cache: make(map[uuid.UUID]*models.PlayerProfile),
	}

	if bus != nil {
		bus.Subscribe(s.onPeerMutation, cluster.WithTable(Descriptor.Table()))
	}
	return s
}

// Repository exposes the underlying repository for schema bootstrap.
func (s *Service) Repository() *repository.Repository[models.PlayerProfile] {
	return s.repo
}

// Get returns the profile for id, serving repeated reads from the
// local cache until a peer mutation invalidates it. A missing profile
// is nil with no error.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.PlayerProfile, error) {
	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p != nil {
		s.mu.Lock()
		s.cache[id] = p
		s.mu.Unlock()
	}
	return p, nil
}

// Save persists the profile and refreshes the local cache. Peers learn
// about the change through the published event.
func (s *Service) Save(ctx context.Context, p *models.PlayerProfile) error {
	if err := s.repo.Save(ctx, p); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[p.ID] = p
	s.mu.Unlock()
	return nil
}

// Delete removes the profile and its cache entry.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	return deleted, nil
}

// onPeerMutation drops the cache entry a peer process changed. The
// next Get re-reads the authoritative row.
func (s *Service) onPeerMutation(ev cluster.Event) error {
	var payload struct {
		ID string `json:"id"`
	}
	if err := unmarshalPayload(ev, &payload); err != nil {
		// Unknown payload shape: drop the whole cache rather than
		// serve stale data.
		s.mu.Lock()
		s.cache = make(map[uuid.UUID]*models.PlayerProfile)
		s.mu.Unlock()
		return nil
	}

	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	s.log.Debug("Invalidated cached profile", zap.String("id", payload.ID))
	return nil
}

// cachedCount reports the cache size. Test hook.
func (s *Service) cachedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
