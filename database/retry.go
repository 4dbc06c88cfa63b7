package database

import "time"

// Retry runs fn up to attempts times, sleeping base between the first retry
// and doubling the delay each time. The last error is returned when all
// attempts fail.
func Retry(attempts int, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
