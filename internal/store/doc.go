// Package store keeps the most recent probe result of every active endpoint.
//
// [Latest] is a poller observer: the scheduler feeds it every recorded
// result, and it forgets endpoints that leave the registry. The HTTP server
// reads it to answer /api/endpoints.
//
// Latest results are a view for operators. Availability percentages come
// from the stats aggregator and never from this package.
package store
