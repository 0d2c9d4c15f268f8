package sched_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/schedscope/oracle"
	"github.com/wnxd/schedscope/sched"
)

func TestListWorkers_IdleAndBusy(t *testing.T) {
	tg := newTarget(t)
	task := tg.parcel(3, 64)
	tg.scheduler(tg.worker(0, 0), tg.worker(1, task))
	tg.actions(map[int]string{3: `"matmul"`}, 4)

	r := tg.reader()
	root, err := r.Root()
	require.NoError(t, err)
	workers, err := r.ListWorkers(root)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	table, err := r.Actions(root)
	require.NoError(t, err)

	assert.True(t, workers[0].Idle())
	assert.Nil(t, workers[0].Task)

	w1 := workers[1]
	require.NoError(t, w1.Err)
	require.NoError(t, w1.TaskErr)
	require.NotNil(t, w1.ID)
	assert.EqualValues(t, 1, *w1.ID)
	assert.Equal(t, sched.TaskRef(task), w1.Current)
	require.NotNil(t, w1.Task)
	assert.EqualValues(t, 3, w1.Task.ActionID)
	assert.EqualValues(t, 64, w1.Task.PayloadSize)
	assert.Equal(t, task+16, w1.Task.PayloadAddr)

	line := sched.FormatTask(*w1.Task, table.ActionName(w1.Task.ActionID))
	assert.Contains(t, line, "matmul, size 64")

	require.Len(t, w1.Queues, 2)
	assert.Equal(t, "work", w1.Queues[0].Name)
	assert.Equal(t, "yield", w1.Queues[1].Name)
	for _, q := range w1.Queues {
		entries, err := r.DecodeQueue(q)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestListWorkers_BadWorkerDoesNotAbort(t *testing.T) {
	tg := newTarget(t)
	task := tg.parcel(1, 8)
	tg.scheduler(tg.worker(0, task), 0x7000000, tg.worker(2, 0))

	r := tg.reader()
	root, err := r.Root()
	require.NoError(t, err)
	workers, err := r.ListWorkers(root)
	require.NoError(t, err)
	require.Len(t, workers, 3)

	assert.NoError(t, workers[0].Err)
	assert.NotNil(t, workers[0].Task)
	require.ErrorIs(t, workers[1].Err, oracle.ErrUnreadable)
	assert.Contains(t, workers[1].Err.Error(), "[Worker] index: 1")
	assert.False(t, workers[1].Idle())
	assert.NoError(t, workers[2].Err)
	assert.True(t, workers[2].Idle())
}

func TestListWorkers_DanglingCurrent(t *testing.T) {
	tg := newTarget(t)
	tg.scheduler(tg.worker(0, 0xbad000))

	r := tg.reader()
	root, err := r.Root()
	require.NoError(t, err)
	workers, err := r.ListWorkers(root)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.NoError(t, workers[0].Err)
	assert.ErrorIs(t, workers[0].TaskErr, oracle.ErrUnreadable)
	assert.Len(t, workers[0].Queues, 2)
}

func TestListWorkers_RootFailures(t *testing.T) {
	t.Run("no symbol", func(t *testing.T) {
		_, err := newTarget(t).reader().Root()
		require.ErrorIs(t, err, oracle.ErrSymbolNotFound)
	})

	t.Run("null root", func(t *testing.T) {
		tg := newTarget(t)
		sym := tg.alloc(8)
		tg.AddSymbol("sched_root", sym, 8)
		_, err := tg.reader().Root()
		require.ErrorIs(t, err, oracle.ErrUnreadable)
	})

	t.Run("implausible count", func(t *testing.T) {
		tg := newTarget(t)
		root := tg.scheduler()
		tg.PutUint(root, 4, 1<<20)
		r := tg.reader()
		p, err := r.Root()
		require.NoError(t, err)
		_, err = r.ListWorkers(p)
		require.ErrorIs(t, err, oracle.ErrUnreadable)
		assert.Contains(t, err.Error(), "implausible worker count")
	})

	t.Run("unmapped root", func(t *testing.T) {
		tg := newTarget(t)
		_, err := tg.reader().ListWorkers(oracle.ToPointer(tg, 0x5000000))
		require.ErrorIs(t, err, oracle.ErrUnreadable)
	})
}

func TestListWorkers_InlineArray(t *testing.T) {
	tg := newTarget(t)
	tg.layout.Scheduler.Indirect = false
	arr := tg.alloc(2 * 64)
	task := tg.parcel(2, 16)
	tg.PutPointer(arr+64, task)
	for i := uint64(0); i < 2; i++ {
		tg.PutPointer(tg.queue(arr+i*64, 0)+16, tg.ring(4))
		tg.PutPointer(tg.queue(arr+i*64, 1)+16, tg.ring(4))
	}
	root := tg.alloc(16)
	tg.PutUint(root, 4, 2)
	tg.PutPointer(root+8, arr)

	workers, err := tg.reader().ListWorkers(oracle.ToPointer(tg, root))
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, arr+64, workers[1].Addr)
	assert.True(t, workers[0].Idle())
	require.NotNil(t, workers[1].Task)
	assert.EqualValues(t, 16, workers[1].Task.PayloadSize)
}

func TestFormatTask(t *testing.T) {
	target := uint64(0x1000000000002)
	line := sched.FormatTask(sched.TaskDescriptor{
		Addr:        0x7f0000001000,
		ActionID:    3,
		PayloadSize: 64,
		PayloadAddr: 0x7f0000001048,
		Target:      &target,
	}, "matmul")
	assert.Equal(t, "0x00007f0000001000 matmul, size 64, buffer 0x00007f0000001048, target 0x1000000000002", line)
	assert.False(t, strings.Contains(sched.FormatTask(sched.TaskDescriptor{}, "x"), "target"))
}
