// Package gatewaypb holds the Martin service's wire types: hand-written
// request/reply structs standing in for protoc-generated code, since no
// .proto file accompanies this interface, plus the manual grpc.ServiceDesc
// that registers them against a plain google.golang.org/grpc.Server.
package gatewaypb

import "encoding/json"

// Codec replaces grpc's default protobuf wire codec with plain JSON,
// since the request/reply types here are hand-written structs rather
// than generated proto.Message implementations.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (Codec) String() string { return "json" }
