//go:build unix

package client_test

import (
	"bytes"
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mubashir1osmani/netlab/pkg/client"
)

// blockingPipe returns the read end of a pipe whose fd stays in blocking
// mode, like a shell pipe on stdin. Closing it does not wake a pending Read.
func blockingPipe(t *testing.T) *os.File {
	t.Helper()
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	r := os.NewFile(uintptr(fds[0]), "stdin-pipe")
	w := os.NewFile(uintptr(fds[1]), "stdin-pipe-w")
	t.Cleanup(func() { w.Close() })
	return r
}

func TestDriverCancelWithBlockingInput(t *testing.T) {
	conn := dial(t, echoServer(t))
	var out bytes.Buffer
	d := &client.Driver{
		Conn:   conn,
		Input:  client.NewScannerInput(blockingPipe(t)),
		Output: &out,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked on input after cancel")
	}
	assert.Empty(t, out.String())
}
