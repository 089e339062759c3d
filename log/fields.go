package log

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shortLen = 10

type shortStringer struct {
	val fmt.Stringer
}

func (s shortStringer) String() string {
	str := s.val.String()
	if len(str) <= shortLen {
		return str
	}
	return str[:shortLen]
}

// ZShortStringer logs the first characters of a long identifier such as a
// hash or a public key.
func ZShortStringer(key string, val fmt.Stringer) zap.Field {
	return zap.Stringer(key, shortStringer{val: val})
}

type contextFields struct {
	ctx context.Context
}

func (c *contextFields) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if id, ok := c.ctx.Value(requestIDKey).(string); ok {
		encoder.AddString("request_id", id)
	}
	if fields, ok := c.ctx.Value(requestFieldsKey).([]zap.Field); ok {
		for _, field := range fields {
			field.AddTo(encoder)
		}
	}
	return nil
}
