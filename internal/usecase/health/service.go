// Package health aggregates component checks for the readiness endpoint.
package health

import "context"

// Status is the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates search quality is reduced but the service works.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot serve searches at all.
	Unhealthy Status = "error"
)

// CheckResult is an individual component check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report aggregates component check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. The product store is load-bearing: if it
// is down, no search can return anything and the service is unhealthy. The AI
// providers only degrade quality (keyword-only ranking, canned assistant
// replies), so their failure reports Degraded.
type Service struct {
	store     StorePinger
	embedding ProviderChecker
	assistant ProviderChecker
}

// New creates a Service. embedding and assistant can be nil.
func New(store StorePinger, embedding, assistant ProviderChecker) *Service {
	return &Service{store: store, embedding: embedding, assistant: assistant}
}

// Check runs health checks against all wired components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
		status = Unhealthy
	} else {
		checks["store"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.assistant != nil {
		if err := s.assistant.HealthCheck(ctx); err != nil {
			checks["assistant"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["assistant"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
