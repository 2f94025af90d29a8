package vectorstore

import (
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
)

// toPayload converts a plain map into wire values. Unknown types fall
// back to their string rendering.
func toPayload(m map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(m))
	for k, v := range m {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) *pb.Value {
	switch tv := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	case []string:
		vals := make([]*pb.Value, len(tv))
		for i, s := range tv {
			vals[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: vals}}}
	case map[string]any:
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: toPayload(tv)}}}
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

// fromPayload converts wire values back into plain Go values. Integers
// come back as int64 and lists as []any.
func fromPayload(m map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_ListValue:
		vals := kind.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, lv := range vals {
			out[i] = fromValue(lv)
		}
		return out
	case *pb.Value_StructValue:
		return fromPayload(kind.StructValue.GetFields())
	default:
		return nil
	}
}

// PayloadString reads a string field, tolerating absence.
func PayloadString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// PayloadText reads a text field. Part of the corpus predates the flat
// text schema and stores the string wrapped in an envelope object, so a
// map value unwraps to its inner "text" string on read. New writes are
// always flat.
func PayloadText(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case map[string]any:
		s, _ := v["text"].(string)
		return s
	default:
		return ""
	}
}

// PayloadInt reads an integer field, tolerating absence.
func PayloadInt(p map[string]any, key string) int64 {
	n, _ := p[key].(int64)
	return n
}

// PayloadStrings reads a list field as strings, skipping non-strings.
func PayloadStrings(p map[string]any, key string) []string {
	vals, _ := p[key].([]any)
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
