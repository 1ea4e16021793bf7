package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LoggerHelper gives the protocol packages a uniform structured field set.
// Every With method returns a new helper; the receiver is never modified.
type LoggerHelper struct {
	fields logrus.Fields
}

// NewLogger creates a logger helper tagged with the package and function.
func NewLogger(pkg, function string) *LoggerHelper {
	return &LoggerHelper{
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

func (l *LoggerHelper) clone(extra int) *LoggerHelper {
	fields := make(logrus.Fields, len(l.fields)+extra)
	for k, v := range l.fields {
		fields[k] = v
	}
	return &LoggerHelper{fields: fields}
}

// WithField adds a custom field.
func (l *LoggerHelper) WithField(key string, value interface{}) *LoggerHelper {
	c := l.clone(1)
	c.fields[key] = value
	return c
}

// WithFields adds multiple custom fields.
func (l *LoggerHelper) WithFields(fields logrus.Fields) *LoggerHelper {
	c := l.clone(len(fields))
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// WithPublicKey adds a short preview of a public key. Never pass private
// material.
func (l *LoggerHelper) WithPublicKey(name string, key []byte) *LoggerHelper {
	return l.WithFields(SecureFieldHash(key, name))
}

// WithError adds error information.
func (l *LoggerHelper) WithError(err error, operation string) *LoggerHelper {
	c := l.clone(2)
	if err != nil {
		c.fields["error"] = err.Error()
	}
	c.fields["operation"] = operation
	return c
}

// Debug logs a debug message
func (l *LoggerHelper) Debug(message string) {
	logrus.WithFields(l.fields).Debug(message)
}

// Info logs an info message
func (l *LoggerHelper) Info(message string) {
	logrus.WithFields(l.fields).Info(message)
}

// Warn logs a warning message
func (l *LoggerHelper) Warn(message string) {
	logrus.WithFields(l.fields).Warn(message)
}

// Error logs an error message
func (l *LoggerHelper) Error(message string) {
	logrus.WithFields(l.fields).Error(message)
}

// Fields returns a copy of the accumulated fields.
func (l *LoggerHelper) Fields() logrus.Fields {
	return l.clone(0).fields
}

// SecureFieldHash creates a preview of key material for logging.
// This shows only the first 8 bytes for debugging purposes.
func SecureFieldHash(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		previewLen := 8
		if len(data) < previewLen {
			previewLen = len(data)
		}
		preview = fmt.Sprintf("%x", data[:previewLen])
		if len(data) > previewLen {
			preview += "..."
		}
	}

	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}
