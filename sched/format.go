package sched

import (
	"fmt"
	"strings"
)

const UnknownAction = "unknown"

// FormatTask renders a task as: address, action name, payload size, payload
// address, followed by any optional parcel fields.
func FormatTask(t TaskDescriptor, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "0x%016x %s, size %d, buffer 0x%016x", t.Addr, name, t.PayloadSize, t.PayloadAddr)
	for _, f := range []struct {
		label string
		v     *uint64
	}{{"target", t.Target}, {"c_target", t.ContTarget}, {"pid", t.PID}, {"credit", t.Credit}} {
		if f.v != nil {
			fmt.Fprintf(&b, ", %s 0x%x", f.label, *f.v)
		}
	}
	return b.String()
}

// ActionName resolves id for display, falling back to UnknownAction.
func (t *ActionTable) ActionName(id int64) string {
	name, err := t.Resolve(id)
	if err != nil {
		return UnknownAction
	}
	return name
}
