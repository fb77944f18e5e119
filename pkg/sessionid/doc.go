// Package sessionid resolves the client session identifier of a request.
//
// Clients send their session id in the X-Session-ID header. A missing or
// malformed value is replaced by a freshly minted UUID, and the id in use is
// always echoed back in the response header so the client can keep sending
// it. Middleware stores the id in the request context, where FromContext and
// LoggerExtractor pick it up.
package sessionid
