// Package preflight provides readiness checks for the filesystem paths and
// remote endpoints the delivery engine depends on.
//
// The queue service logs RunAll results at start; failures are reported but
// never stop the service, since the endpoint may come back before the first
// retry. The CLI status command shows the same results.
package preflight
