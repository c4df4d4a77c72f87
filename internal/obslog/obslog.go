// Package obslog is the structured logging seam every component logs
// through. It mirrors the call shape used throughout the agent loop this
// codebase is descended from: a component tag plus a field map alongside
// the message, backed by logrus.
package obslog

import (
	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel adjusts the global log level (e.g. from config at startup).
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

func fields(component string, f map[string]interface{}) logrus.Fields {
	out := make(logrus.Fields, len(f)+1)
	out["component"] = component
	for k, v := range f {
		out[k] = v
	}
	return out
}

func Info(msg string)  { base.Info(msg) }
func Warn(msg string)  { base.Warn(msg) }
func Error(msg string) { base.Error(msg) }
func Debug(msg string) { base.Debug(msg) }

// InfoCF logs at info level tagged with a component and structured fields.
func InfoCF(component, msg string, f map[string]interface{}) {
	base.WithFields(fields(component, f)).Info(msg)
}

func WarnCF(component, msg string, f map[string]interface{}) {
	base.WithFields(fields(component, f)).Warn(msg)
}

func ErrorCF(component, msg string, f map[string]interface{}) {
	base.WithFields(fields(component, f)).Error(msg)
}

func DebugCF(component, msg string, f map[string]interface{}) {
	base.WithFields(fields(component, f)).Debug(msg)
}
