package network

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
)

// MAX_DATAGRAM is the receive buffer size; anything larger than a UDP
// payload is truncated by the kernel anyway.
const MAX_DATAGRAM = 65507

// ErrSocketClosed is returned when operating on a socket that is not open
var ErrSocketClosed = errors.New("socket not open")

// PacketHandler receives a datagram. The buffer is owned by the handler.
type PacketHandler func(data []byte, from *net.UDPAddr)

// UDPSocket wraps a UDP connection with bind/read/send/close semantics
type UDPSocket struct {
	mu        sync.Mutex
	conn      *net.UDPConn
	address   string
	port      int
	localAddr *net.UDPAddr
	logger    *log.Logger
}

// NewUDPSocket creates a UDP socket that will bind to address:port.
// An empty address binds to every interface; port 0 picks an ephemeral port.
func NewUDPSocket(address string, port int, logger *log.Logger) *UDPSocket {
	return &UDPSocket{
		address: address,
		port:    port,
		logger:  logger,
	}
}

// Open binds the socket
func (s *UDPSocket) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("socket already open on %s", s.conn.LocalAddr())
	}

	localAddr := &net.UDPAddr{
		IP:   net.IPv4zero,
		Port: s.port,
	}
	if s.address != "" {
		localAddr.IP = net.ParseIP(s.address)
		if localAddr.IP == nil {
			return fmt.Errorf("invalid address: %s", s.address)
		}
	}

	conn, err := net.ListenUDP("udp4", localAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", localAddr, err)
	}

	s.conn = conn
	s.localAddr = conn.LocalAddr().(*net.UDPAddr)
	s.logf("UDP socket bound to %s", s.localAddr)
	return nil
}

// LocalAddr returns the bound address, or nil before Open
func (s *UDPSocket) LocalAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAddr
}

// ReadLoop blocks delivering datagrams to handler until the socket is
// closed. A nil return means the socket was closed deliberately.
func (s *UDPSocket) ReadLoop(handler PacketHandler) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}

	buffer := make([]byte, MAX_DATAGRAM)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("UDP read error: %w", err)
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		handler(data, addr)
	}
}

// Write sends data to addr
func (s *UDPSocket) Write(data []byte, addr *net.UDPAddr) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}

	if _, err := conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("UDP write error: %w", err)
	}
	return nil
}

// Close closes the socket, unblocking ReadLoop. Closing twice is a no-op.
func (s *UDPSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.logf("UDP socket closed")
	return err
}

func (s *UDPSocket) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Lookup resolves hostname to an IPv4 address
func Lookup(hostname string) (net.IP, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return ip, nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, err
	}

	for _, ip := range ips {
		if ip.To4() != nil {
			return ip, nil
		}
	}

	return nil, fmt.Errorf("no IPv4 address found for %s", hostname)
}

// ParseUDPAddr resolves address and pairs it with port
func ParseUDPAddr(address string, port int) (*net.UDPAddr, error) {
	ip, err := Lookup(address)
	if err != nil {
		return nil, err
	}

	return &net.UDPAddr{
		IP:   ip,
		Port: port,
	}, nil
}
