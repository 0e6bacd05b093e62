// Package instrument implements the SCPI session that bound properties
// drive: command/response transactions over a Conn, the SYST:ERR? error
// queue, and the IEEE 488.2 common commands (*IDN?, *RST, *CLS, *OPT?,
// *OPC?).
//
// An Instrument is not safe for concurrent use. The bench package
// serializes access per instrument.
package instrument
