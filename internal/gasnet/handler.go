// Package gasnet moves global-address-space objects between localities.
// Each node runs an agent that serves raw memory of its local process over
// HTTP/3; the debugger reaches remote localities through a Client.
package gasnet

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/wnxd/schedscope/gas"
	"github.com/wnxd/schedscope/oracle"
)

const (
	MemoryPath  = "/v1/memory"
	MaxTransfer = 1 << 20
)

// Handler serves GET /v1/memory?addr=<hex>&size=<dec> from t.
func Handler(t gas.Transport, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+MemoryPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		addr, err := strconv.ParseUint(strings.TrimPrefix(q.Get("addr"), "0x"), 16, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid addr %q", q.Get("addr")), http.StatusBadRequest)
			return
		}
		size, err := strconv.ParseUint(q.Get("size"), 10, 32)
		if err != nil || size == 0 || size > MaxTransfer {
			http.Error(w, fmt.Sprintf("invalid size %q", q.Get("size")), http.StatusBadRequest)
			return
		}
		buf := make([]byte, size)
		if err = t.Transfer(r.Context(), buf, addr); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, oracle.ErrUnreadable) {
				status = http.StatusNotFound
			}
			logger.Warn("Transfer failed.", "addr", fmt.Sprintf("%#x", addr), "size", size, "error", err)
			http.Error(w, err.Error(), status)
			return
		}
		logger.Debug("Transfer served.", "addr", fmt.Sprintf("%#x", addr), "size", size, "remote", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatUint(size, 10))
		w.Write(buf)
	})
	return mux
}
