// Package metrics implements lock-free counters for request, error, and
// session events, exposed only as an in-process snapshot (no external
// exporter in MVP). It has no job-event counters.
package metrics

import "sync/atomic"

// Counters is a set of lock-free counters. The zero value is ready to use.
type Counters struct {
	requestsTotal            atomic.Int64
	postRequestsSuccess      atomic.Int64
	methodNotAllowedTotal    atomic.Int64
	protocolVersionErrors    atomic.Int64
	jsonParseErrors          atomic.Int64
	securityValidationErrors atomic.Int64
	internalErrors           atomic.Int64
	sessionsCreated          atomic.Int64
	sessionsDeleted          atomic.Int64
}

// Snapshot is a point-in-time value copy of Counters.
type Snapshot struct {
	RequestsTotal            int64
	PostRequestsSuccess      int64
	MethodNotAllowedTotal    int64
	ProtocolVersionErrors    int64
	JSONParseErrors          int64
	SecurityValidationErrors int64
	InternalErrors           int64
	SessionsCreated          int64
	SessionsDeleted          int64
}

func (c *Counters) IncRequestsTotal()            { c.requestsTotal.Add(1) }
func (c *Counters) IncPostRequestsSuccess()      { c.postRequestsSuccess.Add(1) }
func (c *Counters) IncMethodNotAllowed()         { c.methodNotAllowedTotal.Add(1) }
func (c *Counters) IncProtocolVersionErrors()    { c.protocolVersionErrors.Add(1) }
func (c *Counters) IncJSONParseErrors()          { c.jsonParseErrors.Add(1) }
func (c *Counters) IncSecurityValidationErrors() { c.securityValidationErrors.Add(1) }
func (c *Counters) IncInternalErrors()           { c.internalErrors.Add(1) }
func (c *Counters) IncSessionsCreated()          { c.sessionsCreated.Add(1) }
func (c *Counters) IncSessionsDeleted()          { c.sessionsDeleted.Add(1) }

// Snapshot returns a value copy of the current counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		RequestsTotal:            c.requestsTotal.Load(),
		PostRequestsSuccess:      c.postRequestsSuccess.Load(),
		MethodNotAllowedTotal:    c.methodNotAllowedTotal.Load(),
		ProtocolVersionErrors:    c.protocolVersionErrors.Load(),
		JSONParseErrors:          c.jsonParseErrors.Load(),
		SecurityValidationErrors: c.securityValidationErrors.Load(),
		InternalErrors:           c.internalErrors.Load(),
		SessionsCreated:          c.sessionsCreated.Load(),
		SessionsDeleted:          c.sessionsDeleted.Load(),
	}
}
