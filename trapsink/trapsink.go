// Package trapsink forwards accepted high-severity messages as SNMP v2c
// traps.
//
// The sink implements the router.Sink contract and is intended as an
// escalation channel: the router's rules decide observability per
// component, and the trap sink additionally refuses everything below its
// configured minimum (LevelError by default) so only genuinely alertable
// messages leave the process as traps.
//
// # Basic Usage
//
//	sink, err := trapsink.New(trapsink.Config{
//		Target:    "nms.example.com",
//		Port:      162,
//		Community: "public",
//	})
//	if err != nil {
//		panic(err)
//	}
//	defer sink.Close()
//
//	r := router.New(sink)
//	r.Emit(router.Path{"core", "storage"}, router.LevelError, "disk failure", "device", "sda")
package trapsink

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/geekxflood/logrouter/router"
	"github.com/gosnmp/gosnmp"
)

// Varbind OIDs carried by every emitted trap.
const (
	// snmpTrapOID is the standard snmpTrapOID.0 identifier.
	snmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"

	// trapOIDMessage identifies the message text varbind.
	trapOIDMessage = ".1.3.6.1.4.1.8072.9999.1.1"

	// trapOIDLevel identifies the numeric severity varbind.
	trapOIDLevel = ".1.3.6.1.4.1.8072.9999.1.2"

	// trapOIDComponent identifies the dotted component path varbind.
	trapOIDComponent = ".1.3.6.1.4.1.8072.9999.1.3"

	// trapOIDContext identifies the calling-context varbind.
	trapOIDContext = ".1.3.6.1.4.1.8072.9999.1.4"
)

// Config holds the trap sink settings.
type Config struct {
	// Target is the trap receiver host. Required.
	Target string `json:"target" yaml:"target"`

	// Port is the trap receiver UDP port.
	// Default: 162
	Port uint16 `json:"port" yaml:"port"`

	// Community is the SNMP v2c community string.
	// Default: "public"
	Community string `json:"community" yaml:"community"`

	// MinLevel sets the sink's minimum accepted severity. Valid values:
	// "debug", "info", "warn", "error", or a decimal integer.
	// Default: "error"
	MinLevel string `json:"min_level" yaml:"min_level"`

	// Timeout bounds each trap send.
	// Default: 2s
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Sink sends accepted messages as SNMP v2c traps. The network connection
// is established lazily on the first Handle call so constructing the sink
// never blocks on the receiver.
type Sink struct {
	client *gosnmp.GoSNMP
	min    router.Level

	mu        sync.Mutex
	connected bool
}

// New creates a trap sink from the provided configuration.
func New(config Config) (*Sink, error) {
	if strings.TrimSpace(config.Target) == "" {
		return nil, errors.New("trap sink requires a target host")
	}

	min := router.LevelError
	if strings.TrimSpace(config.MinLevel) != "" {
		parsed, err := router.ParseLevel(config.MinLevel)
		if err != nil {
			return nil, err
		}
		min = parsed
	}

	port := config.Port
	if port == 0 {
		port = 162
	}
	community := config.Community
	if community == "" {
		community = "public"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	client := &gosnmp.GoSNMP{
		Target:    config.Target,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   1,
	}

	return &Sink{client: client, min: min}, nil
}

// MinLevel returns the sink's minimum accepted severity.
func (s *Sink) MinLevel() router.Level {
	return s.min
}

// ShouldAccept applies the sink-local filter beyond the router's gate.
func (s *Sink) ShouldAccept(level router.Level, _ router.Path, _ string) bool {
	return level >= s.min
}

// Handle sends the message as an SNMP v2c trap. Send failures propagate
// to the emitting caller.
func (s *Sink) Handle(msg router.Message) error {
	if err := s.connect(); err != nil {
		return fmt.Errorf("trap sink connect: %w", err)
	}

	variables := []gosnmp.SnmpPDU{
		{Name: snmpTrapOID, Type: gosnmp.ObjectIdentifier, Value: trapOIDMessage},
		{Name: trapOIDMessage, Type: gosnmp.OctetString, Value: msg.Text},
		{Name: trapOIDLevel, Type: gosnmp.Integer, Value: int(msg.Level)},
		{Name: trapOIDComponent, Type: gosnmp.OctetString, Value: msg.Path.Key()},
	}
	if msg.Context != "" {
		variables = append(variables, gosnmp.SnmpPDU{
			Name: trapOIDContext, Type: gosnmp.OctetString, Value: msg.Context,
		})
	}

	trap := gosnmp.SnmpTrap{Variables: variables}
	if _, err := s.client.SendTrap(trap); err != nil {
		return fmt.Errorf("failed to send trap to %s: %w", s.client.Target, err)
	}
	return nil
}

// Close shuts the underlying SNMP connection down. Safe to call on a sink
// that never connected.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.client.Conn.Close()
}

// connect establishes the UDP socket on first use.
func (s *Sink) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if err := s.client.Connect(); err != nil {
		return err
	}
	s.connected = true
	return nil
}
