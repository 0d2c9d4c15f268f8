//go:build !linux

package procmem

import (
	"fmt"

	"github.com/wnxd/schedscope/oracle"
)

func (p *Process) ReadBytes(addr, size uint64) ([]byte, error) {
	return nil, &oracle.ReadError{Addr: addr, Size: size, Err: fmt.Errorf("procmem: %w", oracle.ErrNotSupported)}
}
