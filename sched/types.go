package sched

// TaskRef is the target address of a parcel.
type TaskRef uint64

func (r TaskRef) IsNil() bool {
	return r == 0
}

type TaskDescriptor struct {
	Addr        uint64
	ActionID    int64
	PayloadSize uint64
	PayloadAddr uint64

	// present when the layout declares them
	ContAction *int64
	Target     *uint64
	ContTarget *uint64
	PID        *uint64
	ID         *uint64
	Credit     *uint64
}

type CircularBuffer struct {
	Addr  uint64
	Mask  uint64
	Slots uint64
}

func (b CircularBuffer) Capacity() uint64 {
	return b.Mask + 1
}

func (b CircularBuffer) Slot(j int64) uint64 {
	return uint64(j) & b.Mask
}

type QueueDescriptor struct {
	Name   string
	Addr   uint64
	Top    int64
	Bottom int64
	Buffer CircularBuffer
	Err    error
}

type QueueEntry struct {
	Index int64
	Slot  uint64
	Ref   TaskRef
	Task  *TaskDescriptor
	Err   error
}

type WorkerRecord struct {
	Index   int
	Addr    uint64
	ID      *int64
	WorkID  *int64
	State   *int64
	Current TaskRef
	Task    *TaskDescriptor
	TaskErr error
	Queues  []QueueDescriptor
	Err     error
}

func (w *WorkerRecord) Idle() bool {
	return w.Err == nil && w.Current.IsNil()
}
