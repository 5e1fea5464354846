// Package audit records security-relevant actions to an append-only trail.
//
// A Trail accepts records from request handlers and hands them to a Writer,
// either inline or through a bounded background queue. Recording never fails the
// caller: write errors and queue overflow are logged and counted, and the
// business operation that produced the record proceeds regardless.
//
// Writers only append. There is no update or delete path.
package audit
