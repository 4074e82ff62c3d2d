package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	executor "QuillDB/query_executor"
)

// Server accepts TCP connections and runs one SQL statement per request
// line. Concurrency ends at the transaction queue: any number of
// connections may be reading, but statements execute one at a time on the
// database worker.
type Server struct {
	Addr string
	Exec *executor.Executor

	ln    net.Listener
	wg    sync.WaitGroup
	quit  chan struct{}
	conns sync.Map
}

func New(addr string, exec *executor.Executor) *Server {
	return &Server{
		Addr: addr,
		Exec: exec,
		quit: make(chan struct{}),
	}
}

// Start binds the listener and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}
	s.ln = ln
	slog.Info("server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// ListenAddr returns the bound address (useful with port 0).
func (s *Server) ListenAddr() string {
	if s.ln == nil {
		return s.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			slog.Warn("accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := uuid.NewString()
	s.conns.Store(connID, conn)
	defer s.conns.Delete(connID)
	slog.Info("client connected", "conn", connID, "remote", conn.RemoteAddr().String())

	currentDB := ""
	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			slog.Info("client disconnected", "conn", connID)
			return
		}
		sql := strings.TrimSpace(line)
		if sql == "" {
			continue
		}

		out, newDB, execErr := s.Exec.ExecuteSession(sql, currentDB)
		currentDB = newDB

		dbName := currentDB
		if dbName == "" {
			dbName = "none"
		}

		var resp strings.Builder
		if execErr != nil {
			slog.Warn("statement failed", "conn", connID, "err", execErr)
			resp.WriteString(StatusErr + "\n")
			resp.WriteString(CurrentDBPrefix + dbName + "\n")
			resp.WriteString(execErr.Error() + "\n")
		} else {
			resp.WriteString(StatusOK + "\n")
			resp.WriteString(CurrentDBPrefix + dbName + "\n")
			resp.WriteString(out + "\n")
		}
		resp.WriteString(EndMarker + "\n")

		if _, err := conn.Write([]byte(resp.String())); err != nil {
			slog.Warn("write failed", "conn", connID, "err", err)
			return
		}
	}
}

// Stop closes the listener and every open connection, then waits for the
// handlers to drain.
func (s *Server) Stop() {
	close(s.quit)
	if s.ln != nil {
		s.ln.Close()
	}
	s.conns.Range(func(_, v any) bool {
		v.(net.Conn).Close()
		return true
	})
	s.wg.Wait()
}
