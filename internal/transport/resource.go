package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Kind identifies the link a resource string selects.
type Kind string

const (
	KindSocket Kind = "SOCKET"
	KindGPIB   Kind = "GPIB"
	KindSim    Kind = "SIM"
)

// DefaultSocketPort is the conventional raw SCPI port.
const DefaultSocketPort = 5025

// Resource is a parsed instrument address.
//
//	TCPIP::192.168.1.20::5025::SOCKET
//	TCPIP0::fsq.lab::SOCKET
//	GPIB::20  GPIB0::20::INSTR  GPIB::20::3
//	SIM::rs-fsq
type Resource struct {
	Kind      Kind
	Host      string
	Port      int
	Address   int
	Secondary int
	Model     string
}

// Addr returns host:port for socket resources.
func (r Resource) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r Resource) String() string {
	switch r.Kind {
	case KindSocket:
		return fmt.Sprintf("TCPIP::%s::%d::SOCKET", r.Host, r.Port)
	case KindGPIB:
		if r.Secondary >= 0 {
			return fmt.Sprintf("GPIB::%d::%d", r.Address, r.Secondary)
		}
		return fmt.Sprintf("GPIB::%d", r.Address)
	case KindSim:
		return "SIM::" + r.Model
	default:
		return "invalid"
	}
}

// ParseResource parses a VISA-style resource string. Interface numbers
// ("GPIB0") are accepted and ignored.
func ParseResource(s string) (Resource, error) {
	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) < 2 {
		return Resource{}, fmt.Errorf("resource %q: expected <interface>::<address>", s)
	}
	iface := strings.ToUpper(strings.TrimRight(parts[0], "0123456789"))
	fields := parts[1:]
	if last := strings.ToUpper(fields[len(fields)-1]); last == "INSTR" || last == "SOCKET" {
		fields = fields[:len(fields)-1]
	}

	switch iface {
	case "TCPIP":
		return parseSocket(s, fields)
	case "GPIB":
		return parseGPIB(s, fields)
	case "SIM":
		if len(fields) != 1 || fields[0] == "" {
			return Resource{}, fmt.Errorf("resource %q: expected SIM::<model>", s)
		}
		return Resource{Kind: KindSim, Model: fields[0], Secondary: -1}, nil
	default:
		return Resource{}, fmt.Errorf("resource %q: unsupported interface %q", s, parts[0])
	}
}

func parseSocket(s string, fields []string) (Resource, error) {
	if len(fields) == 0 || len(fields) > 2 || fields[0] == "" {
		return Resource{}, fmt.Errorf("resource %q: expected TCPIP::<host>[::<port>]::SOCKET", s)
	}
	r := Resource{Kind: KindSocket, Host: fields[0], Port: DefaultSocketPort, Secondary: -1}
	if len(fields) == 2 {
		port, err := strconv.Atoi(fields[1])
		if err != nil || port <= 0 || port > 65535 {
			return Resource{}, fmt.Errorf("resource %q: invalid port %q", s, fields[1])
		}
		r.Port = port
	}
	return r, nil
}

func parseGPIB(s string, fields []string) (Resource, error) {
	if len(fields) == 0 || len(fields) > 2 {
		return Resource{}, fmt.Errorf("resource %q: expected GPIB::<address>[::<secondary>]", s)
	}
	addr, err := strconv.Atoi(fields[0])
	if err != nil || addr < 0 || addr > 30 {
		return Resource{}, fmt.Errorf("resource %q: GPIB address must be 0-30", s)
	}
	r := Resource{Kind: KindGPIB, Address: addr, Secondary: -1}
	if len(fields) == 2 {
		sad, err := strconv.Atoi(fields[1])
		if err != nil || sad < 0 || sad > 30 {
			return Resource{}, fmt.Errorf("resource %q: secondary address must be 0-30", s)
		}
		r.Secondary = sad
	}
	return r, nil
}
