// Package api serves the bench over HTTP/JSON under /api/v1.
//
// Every response uses one envelope: {"result":"ok","data":...} or
// {"result":"error","code":...,"message":...}, both with a correlationId.
// Property failures map onto status codes by class: INVALID_VALUE 400,
// INSTRUMENT 409, PROTOCOL 502, COMMUNICATION 503.
package api
