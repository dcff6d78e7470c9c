// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperProvider loads config from a ZooKeeper znode and watches it
// through ZooKeeper's native one-shot watch events (re-armed after every
// fire, since GetW's watch only fires once).
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

// NewZookeeperProvider connects to opts.Endpoints and binds to opts.Path
// as the config znode.
func NewZookeeperProvider(opts ProviderConfig) (*ZookeeperProvider, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("zookeeper path is required")
	}

	conn, _, err := zk.Connect(opts.Endpoints, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperProvider{conn: conn, path: opts.Path}, nil
}

// Type returns TypeZookeeper.
func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

// Load reads the current value of the znode.
func (p *ZookeeperProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper path %s: %w", p.path, err)
	}
	return data, nil
}

// Watch arms a GetW watch on the znode and signals on every data-changed
// event, re-arming after each fire until ctx is cancelled or the node is
// deleted.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)
	return ch, nil
}

func (p *ZookeeperProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	for {
		_, _, eventCh, err := p.conn.GetW(p.path)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("zookeeper watch error", "path", p.path, "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			switch event.Type {
			case zk.EventNodeDataChanged:
				select {
				case ch <- struct{}{}:
				default:
				}
			case zk.EventNodeDeleted:
				slog.Warn("zookeeper node deleted", "path", p.path)
				return
			case zk.EventNotWatching:
				slog.Warn("zookeeper watch lost", "path", p.path)
				return
			}
		}
	}
}

// Close releases the ZooKeeper session.
func (p *ZookeeperProvider) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

var _ Provider = (*ZookeeperProvider)(nil)
