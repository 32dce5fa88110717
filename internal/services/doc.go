// Package services holds the logic behind the HTTP handlers.
//
// AnalysisService accepts dataset uploads, applies the upload checks (file
// name, JSON syntax, the four required sections) and hands the dataset to
// the job queue. It also gates downloads: artifacts are only served for
// completed jobs whose files still exist.
//
// ToolService exposes the stage tools, HealthService the liveness and
// readiness probes, and ProviderService the /api-status report.
//
// Services return *errors.APIError for client mistakes so handlers can
// render them as problem details without inspecting the cause.
package services
