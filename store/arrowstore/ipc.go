package arrowstore

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FileScan returns a scan function reading an Arrow IPC stream file. The
// file is read on every scan; the ticket is ignored.
func FileScan(path string) ScanFunc {
	return func(ctx context.Context, _ *ScanOptions) (array.RecordReader, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("arrowstore: read %s: %w", path, err)
		}
		r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(memory.DefaultAllocator))
		if err != nil {
			return nil, fmt.Errorf("arrowstore: open %s: %w", path, err)
		}
		return r, nil
	}
}
