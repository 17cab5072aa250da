// Package idgen provides the process-wide snowflake node that session ids
// are drawn from. Other derived entities (segments, rsx ids, match ids)
// use deterministic string ids built from their inputs instead.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Module provides a single process-wide *snowflake.Node, mirroring the
// teacher's per-app RegisterSnowflake wiring but centralized so every
// domain package shares one node instead of redeclaring it.
var Module = fx.Module("idgen",
	fx.Provide(NewNode),
)

// NewNode constructs the node with the fixed worker id the teacher's apps
// use; a single-process deployment never needs more than one.
func NewNode() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("idgen: %w", err)
	}
	return node, nil
}
