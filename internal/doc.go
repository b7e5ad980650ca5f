// Package internal holds cryptographic identifier and token helpers shared
// by the engine and its stores. Nothing here is part of the public API.
package internal
