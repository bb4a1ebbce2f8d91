package models

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgPackCodec stores the same records as JSONCodec in msgpack form.
// Dates use msgpack's timestamp extension, so they round-trip with
// nanosecond precision.
type MsgPackCodec struct{}

func (MsgPackCodec) Name() string { return "msgpack" }

func (MsgPackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgPackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
