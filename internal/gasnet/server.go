package gasnet

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go/http3"
)

type Server struct {
	srv  *http3.Server
	pc   net.PacketConn
	done chan struct{}
}

func NewServer(tlsCfg *tls.Config, h http.Handler) *Server {
	return &Server{srv: &http3.Server{TLSConfig: tlsCfg, Handler: h}}
}

// Listen binds addr and serves in the background. It returns the bound
// address, which differs from addr when the port is zero.
func (s *Server) Listen(addr string) (string, error) {
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return "", err
	}
	s.pc = pc
	s.srv.Addr = pc.LocalAddr().String()
	s.done = make(chan struct{})
	go func() {
		s.srv.Serve(pc)
		close(s.done)
	}()
	return s.srv.Addr, nil
}

// Done is closed once the server stops serving.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) Close() error {
	if s.pc == nil {
		return nil
	}
	s.srv.Close()
	err := s.pc.Close()
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
	return err
}
