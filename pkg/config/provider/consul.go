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

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulProvider loads config from a Consul KV key and long-polls it for
// changes using Consul's blocking query (Index/WaitIndex) protocol.
type ConsulProvider struct {
	client *consulapi.Client
	key    string
}

// NewConsulProvider dials the Consul agent at the first of opts.Endpoints
// (empty uses the client library's default, typically 127.0.0.1:8500) and
// reads/watches opts.Path as a KV key.
func NewConsulProvider(opts ProviderConfig) (*ConsulProvider, error) {
	cfg := consulapi.DefaultConfig()
	if len(opts.Endpoints) > 0 {
		cfg.Address = opts.Endpoints[0]
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{client: client, key: opts.Path}, nil
}

// Type returns TypeConsul.
func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

// Load reads the current value of the KV key.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.client.KV().Get(p.key, &consulapi.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch polls the KV key with Consul's blocking-query Index parameter,
// pushing a signal whenever the returned ModifyIndex advances.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)
	return ch, nil
}

func (p *ConsulProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	var lastIndex uint64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pair, meta, err := p.client.KV().Get(p.key, &consulapi.QueryOptions{
			WaitIndex: lastIndex,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("consul watch error", "key", p.key, "error", err)
			continue
		}
		if pair == nil {
			continue
		}

		if lastIndex != 0 && meta.LastIndex != lastIndex {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		lastIndex = meta.LastIndex
	}
}

// Close is a no-op: the consul/api client holds no long-lived connection.
func (p *ConsulProvider) Close() error {
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
