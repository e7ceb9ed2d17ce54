// Package aerokit is a minimal package-level façade over the command
// executor: spec §1 explicitly keeps the public client ergonomics out of
// scope, so this stub reduces Put/Get/Delete to the one Execute() call
// internal/command already implements, rather than growing a convenience
// API the spec never asked for.
package aerokit

import (
	"context"

	"github.com/aerokit-io/aerokit/cluster"
	"github.com/aerokit-io/aerokit/internal/command"
	"github.com/aerokit-io/aerokit/internal/wire"
	"github.com/aerokit-io/aerokit/value"
)

// Client pairs a live cluster with the command policy every call uses.
type Client struct {
	Cluster *cluster.Cluster
	Policy  command.Policy
}

// New wraps an already-constructed cluster with a default command policy.
func New(c *cluster.Cluster) *Client {
	return &Client{Cluster: c, Policy: command.DefaultPolicy()}
}

// Put writes bins to key, creating the record if it does not exist.
func (c *Client) Put(ctx context.Context, key value.Key, bins map[string]value.Value) error {
	ops := make([]wire.Op, 0, len(bins))
	for name, v := range bins {
		pt, body, err := wire.EncodeParticle(v)
		if err != nil {
			return err
		}
		ops = append(ops, wire.Op{Type: wire.OpWrite, ParticleType: pt, BinName: name, Value: body})
	}

	_, err := command.Execute(ctx, c.Cluster.Resolve, command.Request{
		Key:       key,
		WriteAttr: wire.WriteAttrWrite,
		Ops:       ops,
	}, c.Policy)
	return err
}

// Get reads every bin of key. A missing record is reported as (nil, nil),
// not an error (spec §7).
func (c *Client) Get(ctx context.Context, key value.Key) (map[string]value.Value, error) {
	resp, err := command.Execute(ctx, c.Cluster.Resolve, command.Request{
		Key:      key,
		ReadAttr: wire.ReadAttrRead | wire.ReadAttrGetAll,
	}, c.Policy)
	if resp.KeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Record.Bins, nil
}

// Delete removes key. A missing record is reported as (false, nil).
func (c *Client) Delete(ctx context.Context, key value.Key) (bool, error) {
	resp, err := command.Execute(ctx, c.Cluster.Resolve, command.Request{
		Key:       key,
		WriteAttr: wire.WriteAttrWrite | wire.WriteAttrDelete,
	}, c.Policy)
	if resp.KeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
