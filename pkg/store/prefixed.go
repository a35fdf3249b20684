package store

import "context"

var _ Store = &PrefixedStore{}

// PrefixedStore namespaces every key of an underlying store. Closing it does
// not close the underlying store.
type PrefixedStore struct {
	store  Store
	prefix string
}

// NewPrefixedStore returns a store that writes "<prefix>:<key>" into s.
func NewPrefixedStore(s Store, prefix string) *PrefixedStore {
	return &PrefixedStore{
		store:  s,
		prefix: prefix + ":",
	}
}

func (s *PrefixedStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.store.Get(ctx, s.prefix+key)
	if IsNotFound(err) {
		return "", &ErrNotFound{Key: key}
	}
	return value, err
}

func (s *PrefixedStore) Set(ctx context.Context, key string, value string) error {
	return s.store.Set(ctx, s.prefix+key, value)
}

func (s *PrefixedStore) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.prefix+key)
}

func (s *PrefixedStore) Close(_ context.Context) error {
	return nil
}
