package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC
)

type Region struct {
	Addr, Size uint64
	Offset     uint64
	Prot       MemProt
	Path       string
}

func (r Region) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.Addr+r.Size
}

// ParseMaps reads the /proc/<pid>/maps format.
func ParseMaps(r io.Reader) ([]Region, error) {
	var regions []Region
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		begin, end, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("malformed maps line %q", line)
		}
		lo, err := strconv.ParseUint(begin, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed maps line %q: %w", line, err)
		}
		hi, err := strconv.ParseUint(end, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed maps line %q: %w", line, err)
		}
		off, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed maps line %q: %w", line, err)
		}
		region := Region{Addr: lo, Size: hi - lo, Offset: off}
		perm := fields[1]
		if strings.Contains(perm, "r") {
			region.Prot |= MEM_PROT_READ
		}
		if strings.Contains(perm, "w") {
			region.Prot |= MEM_PROT_WRITE
		}
		if strings.Contains(perm, "x") {
			region.Prot |= MEM_PROT_EXEC
		}
		if len(fields) >= 6 {
			region.Path = strings.Join(fields[5:], " ")
		}
		regions = append(regions, region)
	}
	return regions, scanner.Err()
}

// LoadBias returns where the file at path was mapped, taken from its mapping
// at file offset zero.
func LoadBias(regions []Region, path string) (uint64, bool) {
	for _, r := range regions {
		if r.Path == path && r.Offset == 0 {
			return r.Addr, true
		}
	}
	return 0, false
}
