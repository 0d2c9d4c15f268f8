package sched

import (
	"fmt"
	"log/slog"

	"github.com/wnxd/schedscope/layout"
	"github.com/wnxd/schedscope/oracle"
)

const workerFieldSize = 4

type Reader struct {
	o      oracle.Oracle
	layout *layout.Layout
	logger *slog.Logger
}

func NewReader(o oracle.Oracle, l *layout.Layout, logger *slog.Logger) *Reader {
	return &Reader{o: o, layout: l, logger: logger}
}

// Root evaluates the layout's scheduler root expression.
func (r *Reader) Root() (oracle.Pointer, error) {
	v, err := r.o.Evaluate(r.layout.Scheduler.Root)
	if err != nil {
		return oracle.Pointer{}, fmt.Errorf("scheduler root: %w", err)
	} else if v.Addr == 0 {
		return oracle.Pointer{}, fmt.Errorf("scheduler root: %w", &oracle.ReadError{Addr: 0, Size: 0, Err: fmt.Errorf("%s is null", r.layout.Scheduler.Root)})
	}
	return oracle.ToPointer(r.o, v.Addr), nil
}

// ListWorkers reads every worker of the scheduler at root. Only a failure to
// read the root itself is returned; per-worker failures are kept in the
// records.
func (r *Reader) ListWorkers(root oracle.Pointer) ([]WorkerRecord, error) {
	cfg := r.layout.Scheduler
	n, err := root.Offset(cfg.NWorkers).MemReadInt(uint64(cfg.NWorkersSize))
	if err != nil {
		return nil, fmt.Errorf("scheduler n_workers: %w", err)
	} else if n < 0 || n > cfg.MaxWorkers {
		return nil, fmt.Errorf("scheduler n_workers: %w", &oracle.ReadError{
			Addr: root.Offset(cfg.NWorkers).Address(),
			Size: uint64(cfg.NWorkersSize),
			Err:  fmt.Errorf("implausible worker count %d, max_workers is %d", n, cfg.MaxWorkers),
		})
	}
	base, err := root.Offset(cfg.Workers).MemReadPointer()
	if err != nil {
		return nil, fmt.Errorf("scheduler workers: %w", err)
	}
	ptrSize, err := r.o.Arch().PointerSize()
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Reading workers.", "root", fmt.Sprintf("%#x", root.Address()), "n_workers", n)
	records := make([]WorkerRecord, n)
	for i := range records {
		rec := &records[i]
		rec.Index = i
		var w oracle.Pointer
		if cfg.Indirect {
			w, err = base.Add(uint64(i) * ptrSize).MemReadPointer()
		} else {
			w = base.Add(uint64(i) * uint64(r.layout.Worker.Stride))
		}
		if err == nil {
			err = r.readWorker(w, rec)
		}
		if err != nil {
			rec.Err = &WorkerError{Index: i, Err: err}
			r.logger.Warn("Worker unreadable.", "worker", i, "error", err)
			err = nil
		}
	}
	return records, nil
}

func (r *Reader) readWorker(w oracle.Pointer, rec *WorkerRecord) error {
	cfg := r.layout.Worker
	rec.Addr = w.Address()
	current, err := w.Offset(cfg.Current).MemReadPointer()
	if err != nil {
		return err
	}
	rec.Current = TaskRef(current.Address())
	for _, f := range []struct {
		off *int64
		dst **int64
	}{{cfg.ID, &rec.ID}, {cfg.WorkID, &rec.WorkID}, {cfg.State, &rec.State}} {
		if f.off == nil {
			continue
		}
		v, err := w.Offset(*f.off).MemReadInt(workerFieldSize)
		if err != nil {
			return err
		}
		*f.dst = &v
	}
	if !rec.Current.IsNil() {
		rec.Task, rec.TaskErr = r.ReadTask(rec.Current)
	}
	q := cfg.Queues
	rec.Queues = make([]QueueDescriptor, q.Count)
	for i := range rec.Queues {
		rec.Queues[i] = r.ReadQueue(w.Offset(q.Offset+int64(i)*q.Stride), r.layout.QueueName(i))
	}
	return nil
}

// ReadQueue reads the cursors and buffer of the deque at p. Failures are
// recorded in the descriptor's Err.
func (r *Reader) ReadQueue(p oracle.Pointer, name string) (q QueueDescriptor) {
	cfg := r.layout.Deque
	q = QueueDescriptor{Name: name, Addr: p.Address()}
	var err error
	defer func() { q.Err = err }()
	if q.Bottom, err = p.Offset(cfg.Bottom).MemReadInt(uint64(cfg.CursorSize)); err != nil {
		return q
	}
	if q.Top, err = p.Offset(cfg.Top).MemReadInt(uint64(cfg.CursorSize)); err != nil {
		return q
	}
	buf := p.Offset(cfg.Buffer)
	if !cfg.Inline {
		if buf, err = buf.MemReadPointer(); err != nil {
			return q
		}
	}
	mask, err := buf.Offset(cfg.Ring.Mask).MemReadUint(uint64(cfg.Ring.MaskSize))
	if err != nil {
		return q
	}
	if cfg.Ring.StoresCapacity {
		mask--
	}
	q.Buffer = CircularBuffer{
		Addr:  buf.Address(),
		Mask:  mask,
		Slots: buf.Offset(cfg.Ring.Slots).Address(),
	}
	return q
}

// DecodeQueue returns the queued tasks of q, oldest first. The cursors and
// the slots are read at different times, so a deque that moved in between
// is reported as indeterminate and a slot that no longer dereferences only
// fails its own entry.
func (r *Reader) DecodeQueue(q QueueDescriptor) ([]QueueEntry, error) {
	if q.Err != nil {
		return nil, q.Err
	}
	entries := []QueueEntry{}
	if q.Top == q.Bottom {
		return entries, nil
	}
	capacity := q.Buffer.Capacity()
	if q.Bottom < q.Top || !oracle.IsPowerOfTwo(capacity) || uint64(q.Bottom-q.Top) > capacity {
		err := &QueueError{Addr: q.Addr, Top: q.Top, Bottom: q.Bottom, Capacity: capacity}
		r.logger.Warn("Queue indeterminate.", "queue", q.Name, "error", err)
		return entries, err
	}
	ptrSize, err := r.o.Arch().PointerSize()
	if err != nil {
		return nil, err
	}
	slots := oracle.ToPointer(r.o, q.Buffer.Slots)
	for j := q.Top; j < q.Bottom; j++ {
		e := QueueEntry{Index: j, Slot: q.Buffer.Slot(j)}
		ref, err := slots.Add(e.Slot * ptrSize).MemReadPointer()
		if err == nil {
			e.Ref = TaskRef(ref.Address())
			e.Task, err = r.ReadTask(e.Ref)
		}
		e.Err = err
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadTask reads the parcel header at ref in a single oracle request.
func (r *Reader) ReadTask(ref TaskRef) (*TaskDescriptor, error) {
	cfg := r.layout.Parcel
	ptrSize, err := r.o.Arch().PointerSize()
	if err != nil {
		return nil, err
	}
	word := int64(ptrSize)
	span := max(cfg.Action+cfg.ActionSize, cfg.Size+cfg.SizeSize)
	if !cfg.BufferInline {
		span = max(span, cfg.Buffer+word)
	}
	if cfg.ContAction != nil {
		span = max(span, *cfg.ContAction+cfg.ActionSize)
	}
	for _, off := range []*int64{cfg.Target, cfg.ContTarget, cfg.PID, cfg.ID, cfg.Credit} {
		if off != nil {
			span = max(span, *off+8)
		}
	}
	header, err := oracle.ToPointer(r.o, uint64(ref)).MemRead(uint64(span))
	if err != nil {
		return nil, err
	}
	bo := r.o.ByteOrder()
	field := func(off, size int64) uint64 {
		return bo.Uint(header[off : off+size])
	}
	t := &TaskDescriptor{
		Addr:        uint64(ref),
		ActionID:    int64(field(cfg.Action, cfg.ActionSize)),
		PayloadSize: field(cfg.Size, cfg.SizeSize),
	}
	if cfg.BufferInline {
		t.PayloadAddr = uint64(ref) + uint64(cfg.Buffer)
	} else {
		t.PayloadAddr = field(cfg.Buffer, word)
	}
	if cfg.ContAction != nil {
		v := int64(field(*cfg.ContAction, cfg.ActionSize))
		t.ContAction = &v
	}
	for _, f := range []struct {
		off *int64
		dst **uint64
	}{{cfg.Target, &t.Target}, {cfg.ContTarget, &t.ContTarget}, {cfg.PID, &t.PID}, {cfg.ID, &t.ID}, {cfg.Credit, &t.Credit}} {
		if f.off != nil {
			v := field(*f.off, 8)
			*f.dst = &v
		}
	}
	return t, nil
}
