package copier

import "errors"

// ConfigurationError reports an invalid table filter or an unusable table set.
// It is always raised before any job is started.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func newConfigurationError(message string) error {
	return &ConfigurationError{Message: message}
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
