//go:build linux

package procmem

import (
	"errors"
	"io"

	"github.com/wnxd/schedscope/oracle"
	"golang.org/x/sys/unix"
)

const (
	pageSize = 0x1000
	iovMax   = 1024
)

func (p *Process) ReadBytes(addr, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	for done := uint64(0); done < size; {
		n, err := p.readv(addr+done, buf[done:])
		if err != nil {
			return nil, &oracle.ReadError{Addr: addr + done, Size: size - done, Err: err}
		}
		done += n
	}
	return buf, nil
}

// readv reads up to iovMax pages in one call, one remote iovec per page so
// a short count stops exactly at the first unmapped page.
func (p *Process) readv(addr uint64, buf []byte) (uint64, error) {
	end := addr + uint64(len(buf))
	var remote []unix.RemoteIovec
	for cur := addr; cur < end && len(remote) < iovMax; {
		next := min(oracle.Align(cur+1, pageSize), end)
		remote = append(remote, unix.RemoteIovec{Base: uintptr(cur), Len: int(next - cur)})
		cur = next
	}
	var want int
	for _, r := range remote {
		want += r.Len
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(want)
	for {
		n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		} else if err != nil {
			return 0, err
		} else if n == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		return uint64(n), nil
	}
}
