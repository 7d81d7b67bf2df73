package newscache

import (
	"context"
	"time"
)

// nullStore disables caching: every read misses and every lease is granted.
type nullStore struct{}

func newNullStore() Store { return &nullStore{} }

func (s *nullStore) Driver() Driver { return DriverNull }

func (s *nullStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *nullStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (s *nullStore) Add(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (s *nullStore) Delete(context.Context, string) (bool, error) { return false, nil }

func (s *nullStore) DeleteMany(context.Context, ...string) (int64, error) { return 0, nil }

func (s *nullStore) DeleteIfEquals(context.Context, string, []byte) (bool, error) {
	return false, nil
}

func (s *nullStore) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

func (s *nullStore) TTL(context.Context, string) (time.Duration, bool, error) {
	return 0, false, nil
}

func (s *nullStore) Flush(context.Context) error { return nil }
