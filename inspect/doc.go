// Package inspect serves a read-mostly HTTP view of a di.Registry.
//
// Routes:
//
//	GET  /health            registry health as a service health document
//	GET  /registry          registrations, filterable by ?lifetime= and ?cached=
//	GET  /registry/version  build information
//	POST /registry/warm     construct all singletons (only when AllowWarm is set)
//
// Errors use the errors.ErrorResponse envelope.
package inspect
