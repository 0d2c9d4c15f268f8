package layout

import (
	"errors"
	"fmt"
	"iter"
)

// MaxQueues bounds worker.queues.count.
const MaxQueues = 16

var ErrLayoutInvalid = errors.New("layout invalid")

type Layout struct {
	Runtime   *Runtime  `hcl:"runtime,block"`
	Scheduler Scheduler `hcl:"scheduler,block"`
	Worker    Worker    `hcl:"worker,block"`
	Deque     Deque     `hcl:"deque,block"`
	Parcel    Parcel    `hcl:"parcel,block"`
	Actions   Actions   `hcl:"actions,block"`
	Frames    *Frames   `hcl:"frames,block"`
	GAS       *GAS      `hcl:"gas,block"`
	Types     []*Type   `hcl:"type,block"`
}

type Runtime struct {
	Constraint string `hcl:"constraint"`
	// Version is an expression for the address of the runtime's version string.
	Version string `hcl:"version,optional"`
}

type Scheduler struct {
	Root         string `hcl:"root"`
	NWorkers     int64  `hcl:"n_workers"`
	NWorkersSize int64  `hcl:"n_workers_size,optional"`
	Workers      int64  `hcl:"workers"`
	Indirect     bool   `hcl:"indirect,optional"`
	MaxWorkers   int64  `hcl:"max_workers,optional"`
	Finish       string `hcl:"finish,optional"`
}

type Worker struct {
	Stride  int64  `hcl:"stride"`
	Current int64  `hcl:"current"`
	ID      *int64 `hcl:"id,optional"`
	State   *int64 `hcl:"state,optional"`
	WorkID  *int64 `hcl:"work_id,optional"`
	Queues  Queues `hcl:"queues,block"`
}

type Queues struct {
	Offset int64    `hcl:"offset"`
	Stride int64    `hcl:"stride"`
	Count  int64    `hcl:"count"`
	Names  []string `hcl:"names,optional"`
}

type Deque struct {
	Bottom     int64  `hcl:"bottom"`
	Top        int64  `hcl:"top"`
	Buffer     int64  `hcl:"buffer"`
	CursorSize int64  `hcl:"cursor_size,optional"`
	Inline     bool   `hcl:"inline,optional"`
	Ring       Buffer `hcl:"ring,block"`
}

type Buffer struct {
	Mask           int64 `hcl:"mask"`
	MaskSize       int64 `hcl:"mask_size,optional"`
	Slots          int64 `hcl:"slots"`
	StoresCapacity bool  `hcl:"stores_capacity,optional"`
}

type Parcel struct {
	Action       int64  `hcl:"action"`
	ActionSize   int64  `hcl:"action_size,optional"`
	Size         int64  `hcl:"size"`
	SizeSize     int64  `hcl:"size_size,optional"`
	Buffer       int64  `hcl:"buffer"`
	BufferInline bool   `hcl:"buffer_inline,optional"`
	ContAction   *int64 `hcl:"c_action,optional"`
	Target       *int64 `hcl:"target,optional"`
	ContTarget   *int64 `hcl:"c_target,optional"`
	PID          *int64 `hcl:"pid,optional"`
	ID           *int64 `hcl:"id,optional"`
	Credit       *int64 `hcl:"credit,optional"`
}

func (p *Parcel) offsets() iter.Seq2[string, int64] {
	return func(yield func(string, int64) bool) {
		fixed := []struct {
			name string
			off  int64
		}{{"action", p.Action}, {"size", p.Size}, {"buffer", p.Buffer}}
		for _, f := range fixed {
			if !yield(f.name, f.off) {
				return
			}
		}
		optional := []struct {
			name string
			off  *int64
		}{{"c_action", p.ContAction}, {"target", p.Target}, {"c_target", p.ContTarget}, {"pid", p.PID}, {"id", p.ID}, {"credit", p.Credit}}
		for _, f := range optional {
			if f.off != nil && !yield(f.name, *f.off) {
				return
			}
		}
	}
}

type Actions struct {
	// Symbol names a top-level table; RootOffset instead locates a pointer to
	// the table inside the scheduler root.
	Symbol     string `hcl:"symbol,optional"`
	RootOffset *int64 `hcl:"root_offset,optional"`
	Count      int64  `hcl:"count"`
	CountSize  int64  `hcl:"count_size,optional"`
	Entries    int64  `hcl:"entries"`
	Stride     int64  `hcl:"stride"`
	Key        int64  `hcl:"key"`
	Capacity   int64  `hcl:"capacity"`
}

type Frames struct {
	Exclude []string `hcl:"exclude"`
}

type GAS struct {
	Rank          string            `hcl:"rank,optional"`
	RankSize      int64             `hcl:"rank_size,optional"`
	LocalityShift int64             `hcl:"locality_shift,optional"`
	Descriptor    string            `hcl:"descriptor,optional"`
	Directory     *Directory        `hcl:"directory,block"`
	Translate     *Translate        `hcl:"translate,block"`
	Agents        map[string]string `hcl:"agents,optional"`
}

// Directory is a table in target memory mapping global addresses to
// descriptor strings.
type Directory struct {
	Symbol    string `hcl:"symbol"`
	Count     int64  `hcl:"count"`
	CountSize int64  `hcl:"count_size,optional"`
	Entries   int64  `hcl:"entries"`
	Stride    int64  `hcl:"stride"`
	Addr      int64  `hcl:"gva"`
	Text      int64  `hcl:"text"`
}

// Translate maps a global address to a local one: base + (gva & (1<<bits - 1)).
type Translate struct {
	Base string `hcl:"base"`
	Bits int64  `hcl:"bits"`
}

func (t *Translate) Mask() uint64 {
	if t.Bits <= 0 || t.Bits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(t.Bits) - 1
}

type Type struct {
	Name   string   `hcl:"name,label"`
	Size   int64    `hcl:"size"`
	Fields []*Field `hcl:"field,block"`
}

type Field struct {
	Name   string `hcl:"name,label"`
	Offset int64  `hcl:"offset"`
	Kind   string `hcl:"kind"`
}

var kindSizes = map[string]int64{
	"u8": 1, "u16": 2, "u32": 4, "u64": 8,
	"i8": 1, "i16": 2, "i32": 4, "i64": 8,
	"bool": 1, "ptr": 8, "f32": 4, "f64": 8,
}

// KindSize is the byte width of a field kind. "ptr" reports the widest
// target word; decoders read it at the target's word size.
func KindSize(kind string) (int64, bool) {
	size, ok := kindSizes[kind]
	return size, ok
}

func (l *Layout) QueueName(i int) string {
	if i >= 0 && i < len(l.Worker.Queues.Names) {
		return l.Worker.Queues.Names[i]
	}
	return fmt.Sprintf("queue%d", i)
}

func (l *Layout) FrameExcludes() []string {
	if l.Frames == nil {
		return nil
	}
	return l.Frames.Exclude
}

func (l *Layout) applyDefaults() {
	def := func(v *int64, d int64) {
		if *v == 0 {
			*v = d
		}
	}
	def(&l.Scheduler.NWorkersSize, 4)
	def(&l.Scheduler.MaxWorkers, 4096)
	def(&l.Deque.CursorSize, 8)
	def(&l.Deque.Ring.MaskSize, 8)
	def(&l.Parcel.ActionSize, 2)
	def(&l.Parcel.SizeSize, 4)
	def(&l.Actions.CountSize, 4)
	if l.GAS != nil {
		def(&l.GAS.RankSize, 4)
		if l.GAS.Directory != nil {
			def(&l.GAS.Directory.CountSize, 4)
		}
	}
}

func (l *Layout) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	isWidth := func(v int64) bool { return v == 1 || v == 2 || v == 4 || v == 8 }
	check(l.Scheduler.Root != "", "scheduler.root is empty")
	check(isWidth(l.Scheduler.NWorkersSize), "scheduler.n_workers_size %d is not 1, 2, 4 or 8", l.Scheduler.NWorkersSize)
	check(l.Scheduler.MaxWorkers > 0, "scheduler.max_workers must be positive")
	check(l.Scheduler.Indirect || l.Worker.Stride > 0, "worker.stride must be positive for inline worker arrays")
	check(l.Worker.Queues.Count >= 0 && l.Worker.Queues.Count <= MaxQueues, "worker.queues.count must be in [0, %d]", MaxQueues)
	check(l.Worker.Queues.Count <= 1 || l.Worker.Queues.Stride > 0, "worker.queues.stride must be positive")
	check(isWidth(l.Deque.CursorSize), "deque.cursor_size %d is not 1, 2, 4 or 8", l.Deque.CursorSize)
	check(isWidth(l.Deque.Ring.MaskSize), "deque.buffer.mask_size %d is not 1, 2, 4 or 8", l.Deque.Ring.MaskSize)
	check(isWidth(l.Parcel.ActionSize), "parcel.action_size %d is not 1, 2, 4 or 8", l.Parcel.ActionSize)
	check(isWidth(l.Parcel.SizeSize), "parcel.size_size %d is not 1, 2, 4 or 8", l.Parcel.SizeSize)
	// the header is sliced at these offsets
	for name, off := range l.Parcel.offsets() {
		check(off >= 0, "parcel.%s %d is negative", name, off)
	}
	check(l.Actions.Symbol != "" || l.Actions.RootOffset != nil, "actions needs symbol or root_offset")
	check(l.Actions.Symbol == "" || l.Actions.RootOffset == nil, "actions.symbol and actions.root_offset are exclusive")
	check(isWidth(l.Actions.CountSize), "actions.count_size %d is not 1, 2, 4 or 8", l.Actions.CountSize)
	check(l.Actions.Stride > 0, "actions.stride must be positive")
	check(l.Actions.Capacity > 0, "actions.capacity must be positive")
	if l.GAS != nil {
		check(l.GAS.LocalityShift >= 0 && l.GAS.LocalityShift < 64, "gas.locality_shift must be in [0, 64)")
		check(isWidth(l.GAS.RankSize), "gas.rank_size %d is not 1, 2, 4 or 8", l.GAS.RankSize)
		check(l.GAS.Descriptor != "" || l.GAS.Directory != nil, "gas needs descriptor or directory")
		if d := l.GAS.Directory; d != nil {
			check(isWidth(d.CountSize), "gas.directory.count_size %d is not 1, 2, 4 or 8", d.CountSize)
			check(d.Stride > 0, "gas.directory.stride must be positive")
		}
	}
	seen := make(map[string]bool, len(l.Types))
	for _, typ := range l.Types {
		check(!seen[typ.Name], "type %q declared twice", typ.Name)
		seen[typ.Name] = true
		check(typ.Size > 0, "type %q: size must be positive", typ.Name)
		for _, f := range typ.Fields {
			size, ok := KindSize(f.Kind)
			check(ok, "type %q: field %q has unknown kind %q", typ.Name, f.Name, f.Kind)
			check(f.Offset >= 0 && f.Offset+size <= typ.Size, "type %q: field %q lies outside the object", typ.Name, f.Name)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLayoutInvalid, errors.Join(errs...))
}
