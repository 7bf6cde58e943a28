// Package httpapi exposes the Manager over HTTP with form-encoded requests and
// JSON responses. Handlers only translate between HTTP and Manager calls; all
// authentication rules live in the userauth package.
package httpapi
