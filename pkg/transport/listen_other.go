//go:build !unix

package transport

import (
	"context"
	"net"
)

// listen uses the portable listener. Backlog and ReuseAddr are left to the
// platform defaults.
func listen(ctx context.Context, cfg ListenConfig) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", cfg.Address)
}
