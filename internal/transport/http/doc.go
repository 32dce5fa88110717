// Package http implements the HTTP handlers of the budget analysis API.
// Handlers stay thin: they parse the request, call a service from
// internal/services and render the result with go-chi/render. Failures are
// rendered as RFC 7807 problem details through internal/errors.
//
// Endpoints at the API root:
//
//	POST /upload              queue a dataset (multipart field "file")
//	GET  /status/{job_id}     job record
//	GET  /download/{job_id}   compiled PDF, removes the job workspace after a full send
//	GET  /export/{job_id}     projection workbook
//
// Both artifact routes also answer HEAD and byte-range requests.
//	GET  /jobs                job listing, ?status= and ?limit=
//	GET  /api-status          configured model providers
//
// Subrouters:
//
//	/tools    stage tool catalogue, invocation and output checks
//	/health   liveness and readiness
//
// Handlers are tested with httptest against a chi router and testify mocks
// of the service interfaces.
package http
