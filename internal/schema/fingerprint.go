package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identities. The version suffix
// allows the layout encoding to change without colliding with old hashes.
const (
	DomainLayout   = "cardest/layout/v1"
	DomainRelation = "cardest/relation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies the vector layout of the query-set: tables,
// attribute names in slot order, their ranges, encodings and the maximum
// cardinality. Vectors built against query-sets with equal fingerprints are
// index-compatible. The id and relation name do not take part.
func (qs *QuerySet) Fingerprint() (string, error) {
	tables := make([]any, len(qs.Tables))
	for i, t := range qs.Tables {
		tables[i] = t.String()
	}
	attrs := make([]any, len(qs.Attributes))
	for i, a := range qs.Attributes {
		obj := map[string]any{
			"name": a.Name,
			"min":  a.Min,
			"max":  a.Max,
			"step": a.Step,
		}
		if a.Encoding != nil {
			values := make([]any, len(a.Encoding.Values))
			for j, v := range a.Encoding.Values {
				values[j] = v
			}
			obj["encoding"] = values
		}
		attrs[i] = obj
	}
	layout := map[string]any{
		"tables":     tables,
		"attributes": attrs,
		"max_card":   qs.MaxCard,
	}

	canonical, err := marshalCanonical(layout)
	if err != nil {
		return "", fmt.Errorf("fingerprint query-set %d: %w", qs.ID, err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// marshalCanonical writes JSON with sorted object keys, NFC-normalized
// strings and no HTML escaping. Floats are rejected so equal layouts always
// hash equally.
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return writeCanonicalString(buf, val)
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
