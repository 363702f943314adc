package sink

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode converts a document to a message payload in the given format.
// Used by the Kafka, NATS, Pulsar and Kinesis backends.
func Encode(doc Document, format string) ([]byte, error) {
	switch format {
	case "", "json":
		return json.Marshal(doc)
	case "protobuf":
		return encodeProtobuf(doc)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// The document shapes are open-ended, so they travel as a
// google.protobuf.Struct built from their JSON form.
func encodeProtobuf(doc Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	m, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build protobuf struct: %w", err)
	}
	return proto.Marshal(m)
}
