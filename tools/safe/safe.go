package safe

import (
	"PrivChat/logger"
)

// Go starts a goroutine that recovers from panic, so a bad frame or a
// misbehaving handler can't take down the whole gateway.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
