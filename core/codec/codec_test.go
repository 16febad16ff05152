package codec

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestJSONCodec(t *testing.T) {
	codec := &JSONCodec{}

	type message struct {
		Name  string
		Value int
	}

	data, err := codec.Encode(&message{Name: "test", Value: 42})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	decoded := &message{}
	if err := codec.Decode(data, decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.Name != "test" || decoded.Value != 42 {
		t.Errorf("Mismatch: got %+v", decoded)
	}
}

func TestJSONCodecProtoMessage(t *testing.T) {
	codec := &JSONCodec{}

	s, err := structpb.NewStruct(map[string]any{"workers": 4, "route": "GET /"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := codec.Encode(s)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if !strings.Contains(string(data), `"workers"`) || strings.Contains(string(data), "fields") {
		t.Errorf("expected protojson mapping, got %s", data)
	}

	decoded := &structpb.Struct{}
	if err := codec.Decode(data, decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.Fields["route"].GetStringValue() != "GET /" {
		t.Errorf("route = %v", decoded.Fields["route"])
	}
}

func TestProtobufCodec(t *testing.T) {
	codec := &ProtobufCodec{}
	original := wrapperspb.Int32(42)

	data, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	decoded := &wrapperspb.Int32Value{}
	if err := codec.Decode(data, decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if !proto.Equal(decoded, original) {
		t.Errorf("Mismatch: got %d, want %d", decoded.Value, original.Value)
	}
}

func TestProtobufCodecInvalidType(t *testing.T) {
	codec := &ProtobufCodec{}

	if _, err := codec.Encode("not a proto message"); err == nil {
		t.Error("Expected error for non-proto message")
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", "json"},
		{"*/*", "json"},
		{"application/json", "json"},
		{"application/x-protobuf", "protobuf"},
		{"text/html, application/protobuf;q=0.9", "protobuf"},
		{"application/json, application/x-protobuf", "json"},
		{"Application/X-Protobuf", "protobuf"},
	}

	for _, tt := range tests {
		if got := Negotiate(tt.accept).Name(); got != tt.want {
			t.Errorf("Negotiate(%q) = %s, want %s", tt.accept, got, tt.want)
		}
	}
}

func TestByName(t *testing.T) {
	if c, err := ByName("proto"); err != nil || c.ContentType() != ContentTypeProtobuf {
		t.Errorf("ByName(proto) = %v, %v", c, err)
	}
	if _, err := ByName("msgpack"); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func BenchmarkJSONEncode(b *testing.B) {
	codec := &JSONCodec{}
	data := map[string]any{
		"name":  "benchmark",
		"value": 123,
		"items": []int{1, 2, 3, 4, 5},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Encode(data)
	}
}

func BenchmarkProtobufEncode(b *testing.B) {
	codec := &ProtobufCodec{}
	msg, _ := structpb.NewStruct(map[string]any{"name": "benchmark", "value": 123})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Encode(msg)
	}
}
