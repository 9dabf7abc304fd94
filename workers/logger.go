package workers

import "propscout/models"

// LogFunc records a worker message in the run log.
type LogFunc func(level models.LogLevel, source, message string)

var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
