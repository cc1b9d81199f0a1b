// Package httputil provides shared HTTP response/request utilities for the
// trigger handlers.
//
// Every response uses the same envelope: {"ok": true, "result": ...} on
// success and {"ok": false, "error": "..."} on failure.
package httputil
