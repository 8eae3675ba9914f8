// Package gateway contains adapters for the external authorization and
// notification services. Both go through the resilience client so they share
// its timeout, retry and circuit breaker behaviour.
package gateway
