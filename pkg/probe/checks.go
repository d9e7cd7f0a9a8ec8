package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// APIKey fails when no key is configured for service.
func APIKey(service, key string) CheckFunc {
	return func(context.Context) error {
		if key == "" {
			return fmt.Errorf("%s API key not configured", service)
		}
		return nil
	}
}

// FileReadable fails when path is missing, a directory, or empty.
func FileReadable(path string) CheckFunc {
	return func(context.Context) error {
		if path == "" {
			return errors.New("no path configured")
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%s is empty", path)
		}
		return nil
	}
}

// Static reports an error observed earlier during startup, such as a
// device that failed to open.
func Static(err error) CheckFunc {
	return func(context.Context) error { return err }
}
