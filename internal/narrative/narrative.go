// Package narrative turns computed market data into prose through an
// external chat-completion service. Numeric views never depend on it: a
// failed call becomes a placeholder section.
package narrative

import (
	"context"
	"math"
	"reflect"

	mlErrors "github.com/ezoic/marketlens/pkg/errors"
	"github.com/ezoic/marketlens/pkg/log"
)

// ErrDisabled is returned by Disabled.
var ErrDisabled = mlErrors.New("narrative service disabled")

// Request is one summarization call. Payload is sent as indented JSON after
// the instruction and must contain only finite numbers.
type Request struct {
	System      string
	Instruction string
	Payload     interface{}
}

// Summarizer produces narrative text for a request.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Disabled is the Summarizer used when no service is configured.
type Disabled struct{}

func (Disabled) Summarize(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

// Section runs fn and returns its text. On failure it logs the error and
// returns a placeholder naming the section, so callers can always render.
func Section(ctx context.Context, name string, fn func(context.Context) (string, error)) string {
	text, err := fn(ctx)
	if err == nil {
		return text
	}
	logger := log.GetLoggerWithName("narrative")
	if mlErrors.Is(err, ErrDisabled) {
		logger.Debug("Narrative disabled", "section", name)
	} else {
		logger.Warn("Narrative failed", "section", name, log.ErrorKey, err.Error())
	}
	return placeholder(name)
}

// placeholder is shown in place of a section whose narrative failed.
func placeholder(name string) string {
	return "_Narrative unavailable: " + name + "._"
}

// checkFinite rejects NaN and infinite floats anywhere inside v.
func checkFinite(v interface{}) error {
	return walkFinite(reflect.ValueOf(v), "payload")
}

func walkFinite(v reflect.Value, path string) error {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return mlErrors.NewValueErrorf("narrative.Request", "non-finite number %g at %s", f, path)
		}
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return walkFinite(v.Elem(), path)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := walkFinite(v.Field(i), path+"."+t.Field(i).Name); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walkFinite(v.Index(i), path+"[]"); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := walkFinite(iter.Value(), path+"{}"); err != nil {
				return err
			}
		}
	}
	return nil
}
