// Package transport provides the message-based links instruments are
// driven over: raw SCPI sockets, GPIB through a Prologix controller on a
// serial port, and in-process loopback links for simulators and tests.
//
// Every link reads one newline-terminated response per query.
package transport
