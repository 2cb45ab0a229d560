// Package dashboard provides an HTTP client for the dashboard status API.
//
// # Overview
//
// The client fetches the status document that the synchronizer keeps fresh
// and wraps the small set of action endpoints the operator can trigger from
// the terminal. It handles request construction, bearer authentication, JSON
// decoding and error classification; refresh cadence and retry policy live in
// the poll and synchronizer packages.
//
// # Client Usage
//
//	client, err := dashboard.NewClient("http://127.0.0.1:8000", tokens)
//	if err != nil {
//		return err
//	}
//
//	// Cheap poll: the server leaves heavy lists empty.
//	snap, err := client.FetchDashboard(ctx, true)
//
// # API Endpoints
//
// All paths are relative to the API prefix (default "/api"):
//
//   - GET /dashboard?light=0|1: aggregated status document (preferred)
//   - GET /status/?light=0|1: legacy status document for older servers
//   - POST /actions/gateway/restart, /actions/backup, /actions/logs/clear
//   - GET /tasks/history
//   - POST /tasks/todos, /tasks/todos/{id}/complete, /tasks/history/{id}/reopen
//
// # Request Handling
//
// Every request:
//   - Uses the caller's context for cancellation
//   - Sets Accept: application/json and User-Agent: dashsync/0.1
//   - Carries a fresh X-Request-ID
//   - Sends Authorization: Bearer <token> when the TokenSource has one
//   - Has a 10-second timeout unless WithTimeout overrides it
//
// # Error Handling
//
// Failures are classified so callers can pick a policy with errors.As:
//
//   - *TransportError: the server could not be reached (refused, DNS, timeout)
//   - *AuthError: HTTP 401; the credential should be discarded
//   - *ServerError: any other 4xx/5xx, with the server's "detail" string
//   - "decode response: ...": the body was not the expected JSON
//
// Message extracts the server detail for display, falling back to a caller
// supplied string.
//
// # Thread Safety
//
// The Client struct is safe for concurrent use. The underlying http.Client
// handles connection pooling and concurrent requests internally.
package dashboard
