package newscache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// NotFoundMessage marks a negative entry.
const NotFoundMessage = "no matching news"

// Entry is the envelope stored under every cache key. A negative entry has
// Absent set and no Value. IsDelete non-zero retires an envelope in place;
// readers treat it as a miss and recompute.
type Entry struct {
	Value     json.RawMessage `json:"value,omitempty" msgpack:"value,omitempty"`
	Absent    bool            `json:"absent,omitempty" msgpack:"absent,omitempty"`
	Error     string          `json:"error,omitempty" msgpack:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at" msgpack:"created_at"`
	IsDelete  int             `json:"is_delete" msgpack:"is_delete"`
}

// Found reports whether the entry carries a value.
func (e Entry) Found() bool { return !e.Absent }

// Retired reports whether the envelope was marked deleted.
func (e Entry) Retired() bool { return e.IsDelete != 0 }

// Codec serializes entries and the payloads they carry.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec trades readability in redis-cli for smaller entries.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                       { return "msgpack" }
func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// CodecByName resolves "json" (or empty) and "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown cache codec %q", name)
	}
}

// EncodeEntry serializes e.
func EncodeEntry(codec Codec, e Entry) ([]byte, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	return codec.Marshal(e)
}

// DecodeEntry parses an envelope written by EncodeEntry.
func DecodeEntry(codec Codec, body []byte) (Entry, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	var e Entry
	if err := codec.Unmarshal(body, &e); err != nil {
		return Entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, nil
}
