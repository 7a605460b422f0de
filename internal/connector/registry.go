package connector

import (
	"fmt"
	"sync"

	"github.com/prismbi/prism/internal/model"
)

// Factory is a function that creates a new Connector instance.
type Factory func() Connector

// Registry manages connector factories and the live connections of
// registered datasources, keyed by datasource UID so two datasources with
// the same numeric id but different types never collide.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Connector // keyed by datasource UID
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		active:    make(map[string]Connector),
	}
}

// RegisterDriver registers a connector factory for a driver type.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Drivers returns the registered driver names.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableDrivers()
}

// Connect creates a connector for the datasource's type, connects it to the
// backing store, and tracks it under the datasource's UID. Any existing
// connection for the same UID is closed first.
func (r *Registry) Connect(ds *model.Datasource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	factory, ok := r.factories[ds.Type]
	if !ok {
		return fmt.Errorf("unsupported datasource type: %s (available: %v)", ds.Type, r.availableDrivers())
	}

	conn := factory()
	cfg := ConnectionConfig{
		Driver:          ds.Type,
		DSN:             SanitizeDSN(ds.Type, ds.DSN),
		SchemaName:      ds.Schema,
		MaxOpenConns:    ds.Pool.MaxOpenConns,
		MaxIdleConns:    ds.Pool.MaxIdleConns,
		ConnMaxLifetime: ds.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: ds.Pool.ConnMaxIdleTime,
		PrivateKeyPath:  ds.PrivateKeyPath,
	}
	if err := conn.Connect(cfg); err != nil {
		return fmt.Errorf("failed to connect datasource %q: %w", ds.UID(), err)
	}

	if existing, ok := r.active[ds.UID()]; ok {
		existing.Disconnect()
	}

	r.active[ds.UID()] = conn
	return nil
}

// Get returns the live connector for a datasource UID.
func (r *Registry) Get(uid string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.active[uid]
	if !ok {
		return nil, fmt.Errorf("datasource %q not connected (connected: %v)", uid, r.activeUIDs())
	}
	return conn, nil
}

// Disconnect removes and disconnects a datasource.
func (r *Registry) Disconnect(uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.active[uid]
	if !ok {
		return fmt.Errorf("datasource %q not connected", uid)
	}

	err := conn.Disconnect()
	delete(r.active, uid)
	return err
}

// CloseAll disconnects all datasources.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for uid, conn := range r.active {
		conn.Disconnect()
		delete(r.active, uid)
	}
}

// List returns the UIDs of all connected datasources.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeUIDs()
}

func (r *Registry) availableDrivers() []string {
	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	return drivers
}

func (r *Registry) activeUIDs() []string {
	uids := make([]string, 0, len(r.active))
	for uid := range r.active {
		uids = append(uids, uid)
	}
	return uids
}
