package decode

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Options controls decode behavior.
type Options struct {
	// WeaklyTypedInput (default true) tolerates clients that send "123" for
	// an int or 1.0 for an int64.
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// Map decodes a loosely typed payload (as produced by encoding/json into
// map[string]any) into a typed struct T. Struct fields are read via the
// `json` tag, same as the wire frames.
func Map[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("payload is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T

	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			sliceAnyToSliceStringHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}

// ReadString reads a string field out of a dynamic payload.
func ReadString(m map[string]any, key string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("payload is nil")
	}
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("field %q not string (got %T)", key, v)
	}
}

// floatToIntHook maps JSON numbers (always float64) onto integer fields.
func floatToIntHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float64 {
			return data, nil
		}
		f := data.(float64)
		switch to.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return int64(f), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if f < 0 {
				return nil, fmt.Errorf("negative value %v for unsigned field", f)
			}
			return uint64(f), nil
		default:
			return data, nil
		}
	}
}

// sliceAnyToSliceStringHook maps []any onto []string fields, stringifying
// numeric elements instead of failing.
func sliceAnyToSliceStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Slice || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		in, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(in))
		for _, v := range in {
			switch t := v.(type) {
			case string:
				out = append(out, t)
			case float64:
				out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
			default:
				return nil, fmt.Errorf("slice element %T not string", v)
			}
		}
		return out, nil
	}
}
