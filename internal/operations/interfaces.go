package operations

import (
	"budgetpulse/internal/infrastructure"
	"budgetpulse/internal/report"
	"budgetpulse/internal/visualization"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, subject, status string, data interface{})
}

// StageOptions contains optional dependencies for stages
type StageOptions struct {
	Config   *Config
	Charts   *visualization.Producer
	Compiler *report.Compiler
	Metrics  *infrastructure.BusinessMetrics
}

func (o *StageOptions) withDefaults() *StageOptions {
	out := StageOptions{}
	if o != nil {
		out = *o
	}
	if out.Config == nil {
		out.Config = NewConfig()
	}
	return &out
}
