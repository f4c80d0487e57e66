// Package memory provides an in-process implementation of the commerce
// platform collaborator. It backs tests and local dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tigerroll/yotposync/internal/platform"
)

type objectKey struct {
	objectType string
	id         string
}

// Store keeps orders, customers, configuration objects and preferences in maps.
//
// InTransaction stages ConfigStore writes and applies them only when fn
// succeeds.
type Store struct {
	mu          sync.RWMutex
	orders      []platform.Order
	customers   []platform.Customer
	objects     map[objectKey]map[string]interface{}
	preferences map[string]interface{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		objects:     make(map[objectKey]map[string]interface{}),
		preferences: make(map[string]interface{}),
	}
}

// AddOrders appends orders and keeps them in ID order.
func (s *Store) AddOrders(orders ...platform.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, orders...)
	sort.SliceStable(s.orders, func(i, j int) bool {
		return platform.CompareIDs(s.orders[i].ID, s.orders[j].ID) < 0
	})
}

// AddCustomers appends customers and keeps them in ID order.
func (s *Store) AddCustomers(customers ...platform.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = append(s.customers, customers...)
	sort.SliceStable(s.customers, func(i, j int) bool {
		return platform.CompareIDs(s.customers[i].ID, s.customers[j].ID) < 0
	})
}

// SetPreference sets a site preference.
func (s *Store) SetPreference(name string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[name] = value
}

// Orders returns a copy of every stored order.
func (s *Store) Orders() []platform.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]platform.Order(nil), s.orders...)
}

func (s *Store) QueryOrders(ctx context.Context, q platform.OrderQuery) ([]platform.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []platform.Order
	for _, o := range s.orders {
		if !platform.IDAfter(o.ID, q.AfterID) {
			continue
		}
		if q.CreatedFrom != nil && o.CreatedAt.Before(*q.CreatedFrom) {
			continue
		}
		if q.CreatedTo != nil && !o.CreatedAt.Before(*q.CreatedTo) {
			continue
		}
		out = append(out, o)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkLoyaltyExported(ctx context.Context, orderIDs []string) error {
	ids := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		ids[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if _, ok := ids[s.orders[i].ID]; ok {
			s.orders[i].Extension.LoyaltyExported = true
		}
	}
	return nil
}

func (s *Store) QueryCustomers(ctx context.Context, q platform.CustomerQuery) ([]platform.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []platform.Customer
	for _, c := range s.customers {
		if !platform.IDAfter(c.ID, q.AfterID) {
			continue
		}
		out = append(out, c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, objectType, id string) (map[string]interface{}, bool, error) {
	if staged, ok := stagedFrom(ctx); ok {
		if attrs, found := staged.get(objectType, id); found {
			base, _, _ := s.get(objectType, id)
			return mergeAttrs(base, attrs), true, nil
		}
	}
	return s.get(objectType, id)
}

func (s *Store) get(objectType, id string) (map[string]interface{}, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs, ok := s.objects[objectKey{objectType, id}]
	if !ok {
		return nil, false, nil
	}
	return copyAttrs(attrs), true, nil
}

func (s *Store) Put(ctx context.Context, objectType, id string, attrs map[string]interface{}) error {
	if staged, ok := stagedFrom(ctx); ok {
		staged.put(objectType, id, attrs)
		return nil
	}
	s.put(objectType, id, attrs)
	return nil
}

func (s *Store) put(objectType, id string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := objectKey{objectType, id}
	s.objects[key] = mergeAttrs(s.objects[key], attrs)
}

func (s *Store) List(ctx context.Context, objectType string) ([]platform.ConfigObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []platform.ConfigObject
	for key, attrs := range s.objects {
		if key.objectType != objectType {
			continue
		}
		out = append(out, platform.ConfigObject{Type: key.objectType, ID: key.id, Attributes: copyAttrs(attrs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := stagedFrom(ctx); ok {
		return fn(ctx)
	}
	staged := &stagedWrites{}
	if err := fn(context.WithValue(ctx, stagedKey{}, staged)); err != nil {
		return err
	}
	for _, w := range staged.writes {
		s.put(w.key.objectType, w.key.id, w.attrs)
	}
	return nil
}

func (s *Store) Preference(ctx context.Context, name string) (interface{}, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.preferences[name]
	return v, ok, nil
}

var _ platform.Platform = (*Store)(nil)

type stagedKey struct{}

type stagedWrite struct {
	key   objectKey
	attrs map[string]interface{}
}

type stagedWrites struct {
	writes []stagedWrite
}

func stagedFrom(ctx context.Context) (*stagedWrites, bool) {
	s, ok := ctx.Value(stagedKey{}).(*stagedWrites)
	return s, ok
}

func (w *stagedWrites) put(objectType, id string, attrs map[string]interface{}) {
	w.writes = append(w.writes, stagedWrite{key: objectKey{objectType, id}, attrs: copyAttrs(attrs)})
}

func (w *stagedWrites) get(objectType, id string) (map[string]interface{}, bool) {
	var merged map[string]interface{}
	for _, sw := range w.writes {
		if sw.key.objectType == objectType && sw.key.id == id {
			merged = mergeAttrs(merged, sw.attrs)
		}
	}
	return merged, merged != nil
}

func mergeAttrs(base, update map[string]interface{}) map[string]interface{} {
	out := copyAttrs(base)
	if out == nil {
		out = make(map[string]interface{}, len(update))
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func copyAttrs(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
