// Package core defines the shared data model of the invocation core: the
// request/outcome types exchanged with the executor, the stream event and raw
// fragment types consumed and produced by the stream coordinator, and the
// transient-failure classification used by the retry machinery.
//
// The package stays dependency-light so every other package (tool, breaker,
// executor, stream, session, model adapters) can import it without cycles.
package core
