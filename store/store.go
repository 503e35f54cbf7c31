package store

import (
	"context"
	"time"

	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Caches. Entries carry short TTLs to bound staleness; correctness
	// never depends on the cache.
	tenantCache *cache.Cache[string, *Tenant]
	userCache   *cache.Cache[string, *User]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:      driver,
		profile:     profile,
		tenantCache: cache.New[string, *Tenant](512, 5*time.Minute),
		userCache:   cache.New[string, *User](2048, 5*time.Minute),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Tenant methods.

func (s *Store) CreateTenant(ctx context.Context, create *Tenant) (*Tenant, error) {
	return s.driver.CreateTenant(ctx, create)
}

func (s *Store) GetTenant(ctx context.Context, find *FindTenant) (*Tenant, error) {
	if find.ID != nil {
		if tenant, ok := s.tenantCache.Get(*find.ID); ok {
			return tenant, nil
		}
	}
	list, err := s.driver.ListTenants(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	tenant := list[0]
	s.tenantCache.Set(tenant.ID, tenant)
	return tenant, nil
}

func (s *Store) ListTenants(ctx context.Context, find *FindTenant) ([]*Tenant, error) {
	return s.driver.ListTenants(ctx, find)
}

func (s *Store) UpdateTenant(ctx context.Context, update *UpdateTenant) (*Tenant, error) {
	tenant, err := s.driver.UpdateTenant(ctx, update)
	if err != nil {
		return nil, err
	}
	s.tenantCache.Remove(update.ID)
	return tenant, nil
}

func (s *Store) DeleteTenant(ctx context.Context, id string) error {
	if err := s.driver.DeleteTenant(ctx, id); err != nil {
		return err
	}
	s.tenantCache.Remove(id)
	// The user cascade invalidates an unknown set of users.
	s.userCache.Clear()
	return nil
}

// User methods.

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.ID != nil {
		if user, ok := s.userCache.Get(*find.ID); ok {
			return user, nil
		}
	}
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	user := list[0]
	s.userCache.Set(user.ID, user)
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	user, err := s.driver.UpdateUser(ctx, update)
	if err != nil {
		return nil, err
	}
	s.userCache.Remove(update.ID)
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.driver.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.userCache.Remove(id)
	return nil
}

// ContextRecord methods. The memory service layers its own per-user
// cache on top of these; the store passes straight through.

func (s *Store) CreateContextRecord(ctx context.Context, create *ContextRecord) (*ContextRecord, error) {
	return s.driver.CreateContextRecord(ctx, create)
}

func (s *Store) ListContextRecords(ctx context.Context, find *FindContextRecord) ([]*ContextRecord, error) {
	return s.driver.ListContextRecords(ctx, find)
}

func (s *Store) UpdateContextRecord(ctx context.Context, update *UpdateContextRecord) (*ContextRecord, error) {
	return s.driver.UpdateContextRecord(ctx, update)
}

func (s *Store) DeleteContextRecord(ctx context.Context, delete *DeleteContextRecord) error {
	return s.driver.DeleteContextRecord(ctx, delete)
}

func (s *Store) DeleteExpiredContextRecords(ctx context.Context, nowTs int64) (int, error) {
	return s.driver.DeleteExpiredContextRecords(ctx, nowTs)
}

func (s *Store) DecayContextRecords(ctx context.Context, cutoffTs int64, factor, floor float64) (int, error) {
	return s.driver.DecayContextRecords(ctx, cutoffTs, factor, floor)
}

func (s *Store) SetContextDriftStatus(ctx context.Context, id string, status DriftStatus, updatedTs int64) error {
	return s.driver.SetContextDriftStatus(ctx, id, status, updatedTs)
}

func (s *Store) ListContextVersions(ctx context.Context, find *FindContextVersion) ([]*ContextVersion, error) {
	return s.driver.ListContextVersions(ctx, find)
}

// ContextSession methods.

func (s *Store) CreateContextSession(ctx context.Context, create *ContextSession) (*ContextSession, error) {
	return s.driver.CreateContextSession(ctx, create)
}

func (s *Store) ListContextSessions(ctx context.Context, find *FindContextSession) ([]*ContextSession, error) {
	return s.driver.ListContextSessions(ctx, find)
}

func (s *Store) UpdateContextSession(ctx context.Context, update *UpdateContextSession) (*ContextSession, error) {
	return s.driver.UpdateContextSession(ctx, update)
}

// ContextSnapshot methods.

func (s *Store) CreateContextSnapshot(ctx context.Context, create *ContextSnapshot) (*ContextSnapshot, error) {
	return s.driver.CreateContextSnapshot(ctx, create)
}

func (s *Store) ListContextSnapshots(ctx context.Context, find *FindContextSnapshot) ([]*ContextSnapshot, error) {
	return s.driver.ListContextSnapshots(ctx, find)
}

func (s *Store) PruneContextSnapshots(ctx context.Context, userID string, keep int) (int, error) {
	return s.driver.PruneContextSnapshots(ctx, userID, keep)
}
