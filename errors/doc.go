// Package errors provides the structured error type used at dikit's outer
// surfaces: configuration validation and the HTTP inspection API.
//
// The registry itself returns typed errors (see package di); those implement
// Converter so FromError can render them with a stable code and HTTP status.
package errors
