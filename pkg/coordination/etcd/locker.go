package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"harvester/pkg/coordination"
)

// Locker is a coordination.Locker backed by an etcd mutex. The lock lives
// on a leased session, so a crashed holder frees it after ttl seconds.
type Locker struct {
	client  *clientv3.Client
	session *concurrency.Session
	key     string
}

var _ coordination.Locker = (*Locker)(nil)

func NewLocker(endpoints []string, key string, ttl int) (*Locker, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no etcd endpoints configured")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	// The session keeps the lease alive via heartbeats
	sess, err := concurrency.NewSession(cli, concurrency.WithTTL(ttl))
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to create concurrency session: %w", err)
	}

	return &Locker{client: cli, session: sess, key: key}, nil
}

func (l *Locker) TryLock(ctx context.Context) (func(context.Context) error, error) {
	mu := concurrency.NewMutex(l.session, l.key)
	if err := mu.TryLock(ctx); err != nil {
		if errors.Is(err, concurrency.ErrLocked) {
			return nil, coordination.ErrLocked
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return mu.Unlock, nil
}

func (l *Locker) Close() error {
	if l.session != nil {
		l.session.Close()
	}
	return l.client.Close()
}
