// Package codec encodes handler payloads for the wire. JSON is the default;
// clients that send an Accept header naming protobuf get the binary form.
package codec

import (
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec defines the interface for encoding/decoding response payloads
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string

	// ContentType returns the media type written in the Content-Type header
	ContentType() string
}

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// ByName returns a codec by name
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return &JSONCodec{}, nil
	case "protobuf", "proto":
		return &ProtobufCodec{}, nil
	default:
		return nil, ErrUnsupportedCodec
	}
}

// Negotiate picks a codec from an Accept header value. Anything that does
// not ask for protobuf gets JSON.
func Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case ContentTypeProtobuf, "application/protobuf", "application/vnd.google.protobuf":
			return &ProtobufCodec{}
		case ContentTypeJSON:
			return &JSONCodec{}
		}
	}
	return &JSONCodec{}
}

// JSONCodec implements JSON encoding/decoding. Protobuf messages are
// rendered with protojson so well-known types keep their JSON mapping.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Marshal(msg)
	}
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, msg)
	}
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Name() string {
	return "json"
}

func (c *JSONCodec) ContentType() string {
	return ContentTypeJSON
}
