// Package services provides the service registry handed to the HTTP layer.
//
// The registry bundles the task service, the user service, the token
// verifier and the store behind accessor methods. Use Build to wire the
// whole graph from configuration, or NewRegistry with hand-made instances
// in tests.
package services
