// Package middleware provides the Gin middleware stack of the front server:
// request IDs, access logging, panic recovery and per-IP rate limiting.
package middleware
