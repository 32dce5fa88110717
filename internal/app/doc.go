// Package app wires the budget analysis service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config file and BUDGET_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Open the job store (memory or SQLite) and fail jobs a restart interrupted
//	4. Build the WebSocket hub, status broadcaster, pipeline stages and job queue
//	5. Create services and HTTP handlers behind the middleware chain
//
// # Usage
//
//	a, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return a.Run()
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops accepting requests, queued jobs are
// given ShutdownTimeout to finish, then the hub, job store and telemetry
// providers are closed. The package never calls os.Exit.
package app
