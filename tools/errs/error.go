package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// New builds a plain error with a call stack attached.
func New(msg string, kv ...any) error {
	return errors.New(toString(msg, kv))
}

// Wrap keeps err as the cause and records the wrap site.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// WrapMsg wraps err with a message plus optional key/value detail pairs.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, toString(msg, kv))
}

func toJSONish(v any) string {
	return fmt.Sprintf("%+v", v)
}
