package apphost

import (
	"github.com/gatehost/gatehost/pkg/observability"
)

// LoggerService hands out per-resource loggers.
type LoggerService interface {
	ResourceLogger(resourceName string) observability.Logger
}

// childLoggerService derives per-resource loggers from the host logger.
type childLoggerService struct {
	base observability.Logger
}

func (s *childLoggerService) ResourceLogger(resourceName string) observability.Logger {
	return s.base.With(observability.String("resource", resourceName))
}
