package bridge

import (
	"context"

	pool "github.com/jolestar/go-commons-pool/v2"
)

// maxPooledFrameCap bounds how large a returned frameBuffer is allowed
// to stay: one oversized command (a big MSET, a long Lua script)
// shouldn't pin a multi-megabyte backing array for every future
// borrower across every bridge in the process.
const maxPooledFrameCap = 256 * 1024

// frameBuffer is the reusable scratch slice writeLoop encodes each
// outgoing command into before handing it to the socket.
type frameBuffer struct {
	b []byte
}

type frameBufferFactory struct{}

func (frameBufferFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	return pool.NewPooledObject(&frameBuffer{b: make([]byte, 0, 4096)}), nil
}

func (frameBufferFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (frameBufferFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return true
}

func (frameBufferFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// PassivateObject resets the buffer before it re-enters the pool,
// shrinking it back down first if the last borrower grew it past
// maxPooledFrameCap.
func (frameBufferFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	fb := object.Object.(*frameBuffer)
	if cap(fb.b) > maxPooledFrameCap {
		fb.b = make([]byte, 0, 4096)
	} else {
		fb.b = fb.b[:0]
	}
	return nil
}

// framePool is shared by every Bridge's write loop in the process --
// the same connection-pooling library the retrieval pack's cluster
// clients use for whole connections, repurposed here to pool the
// write-frame byte slices those clients would otherwise allocate fresh
// per command.
var framePool = pool.NewObjectPoolWithDefaultConfig(context.Background(), frameBufferFactory{})

func borrowFrameBuffer() *frameBuffer {
	obj, err := framePool.BorrowObject(context.Background())
	if err != nil {
		// The default config never fails to grow (no max-total cap),
		// so BorrowObject only errors if MakeObject itself did -- which
		// never happens here. Fall back to a fresh buffer rather than
		// letting a write loop crash on an unreachable error path.
		return &frameBuffer{b: make([]byte, 0, 4096)}
	}
	return obj.(*frameBuffer)
}

func returnFrameBuffer(fb *frameBuffer) {
	framePool.ReturnObject(context.Background(), fb)
}
