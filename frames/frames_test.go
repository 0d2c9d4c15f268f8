package frames

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	frames []Frame
	pulled int
}

func (s *countingSource) Next() (Frame, bool) {
	if s.pulled >= len(s.frames) {
		return Frame{}, false
	}
	s.pulled++
	return s.frames[s.pulled-1], true
}

func TestFilter_SkipsSchedulerFrames(t *testing.T) {
	src := &countingSource{frames: []Frame{
		{Level: 0, Function: "user_main", File: "apps/fib/fib.c"},
		{Level: 1, Function: "worker_run", File: "libhpx/scheduler/worker.c"},
		{Level: 2, Function: "fib_action", File: "apps/fib/fib.c"},
		{Level: 3, Function: "_transfer", File: "libhpx/scheduler/c_worker.cpp"},
		{Level: 4, Function: "thread_entry", File: "apps/fib/main.c"},
	}}
	filtered := Filter(src, "libhpx/scheduler/")

	var got []int
	for {
		frame, ok := filtered.Next()
		if !ok {
			break
		}
		got = append(got, frame.Level)
		// never more than one frame ahead of what has been handed out
		assert.LessOrEqual(t, src.pulled, frame.Level+1)
	}

	if diff := cmp.Diff([]int{0, 2, 4}, got); diff != "" {
		t.Fatalf("filtered levels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, src.pulled)
}

func TestFilter_UnboundedSource(t *testing.T) {
	var n int
	infinite := SourceFunc(func() (Frame, bool) {
		n++
		file := "apps/rec.c"
		if n%2 == 0 {
			file = "libhpx/scheduler/thread.c"
		}
		return Frame{Level: n, File: file}, true
	})

	var seen []int
	for frame := range Seq(Filter(infinite, "libhpx/scheduler/")) {
		seen = append(seen, frame.Level)
		if len(seen) == 3 {
			break
		}
	}

	require.Equal(t, []int{1, 3, 5}, seen)
	assert.Equal(t, 5, n, "filter must pull lazily")
}

func TestFilter_SinglePass(t *testing.T) {
	filtered := Filter(FromSlice([]Frame{{Level: 0, File: "a.c"}}))

	_, ok := filtered.Next()
	require.True(t, ok)
	_, ok = filtered.Next()
	require.False(t, ok)
	_, ok = filtered.Next()
	assert.False(t, ok, "exhausted filter stays exhausted")
}

func TestFrame_String(t *testing.T) {
	f := Frame{Level: 2, PC: 0x401000, Function: "fib", File: "fib.c", Line: 12}
	assert.Equal(t, "#2   0x00000000401000 in fib at fib.c:12", f.String())
}

func TestFilter_AbsolutePaths(t *testing.T) {
	filtered := Filter(FromSlice([]Frame{
		{Level: 0, File: "/src/hpx/libhpx/scheduler/worker.c"},
		{Level: 1, File: "/src/hpx/mylibhpx/scheduler/fake.c"},
		{Level: 2, File: "/src/app/main.c"},
	}), "libhpx/scheduler/")

	var got []int
	for frame := range Seq(filtered) {
		got = append(got, frame.Level)
	}
	assert.Equal(t, []int{1, 2}, got)
}
