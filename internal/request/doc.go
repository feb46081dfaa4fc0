// Package request turns raw chat text and chapter bounds into validated fetch
// requests.
//
// Validation is pure: no filesystem or network access happens here, so a
// rejected request never launches a worker or creates a directory.
package request
