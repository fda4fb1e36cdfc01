// Package capcbor implements the deterministic CBOR subset used to bind
// job payloads, receipts, and stored records to a single canonical byte
// representation across all validators.
//
// Encoding rules (see SPEC_FULL.md §5.1):
//   - allowed values: nil, bool, int64/uint64, float64, []byte, string,
//     []any (sequence), map[string]any or OMap (mapping).
//   - map keys restricted to {string, int, bytes}; map entries are
//     always written in ascending order of their own CBOR encoding.
//   - integers use the shortest encoding; floats are always binary64.
//   - the encoder never emits indefinite-length items or tags.
//
// Decoding is the mirror image: it accepts tagged input (tags are
// consumed and discarded) but rejects anything that is not already in
// canonical form — non-minimal integers, indefinite-length items, or
// map entries out of key order all fail with caperrors.CodecError.
package capcbor

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"animica.dev/capabilities/caperrors"
)

// KV is one entry of an OMap.
type KV struct {
	Key   any
	Value any
}

// OMap is an explicitly ordered mapping, used when a map's keys are not
// all strings (e.g. int-keyed indexes). Entries must already be in
// canonical key order; Encode re-sorts defensively but Decode returns
// them pre-sorted.
type OMap []KV

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.CanonicalEncOptions()
	// Keep every float as binary64 instead of shortening it to
	// float16/float32.
	encOpts.ShortestFloat = cbor.ShortestFloatNone
	encOpts.NaNConvert = cbor.NaNConvertNone
	encOpts.InfConvert = cbor.InfConvertNone
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capcbor: building canonical encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IntDec:      cbor.IntDecConvertSigned,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
		MaxNestedLevels:  64,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capcbor: building decode mode: %v", err))
	}
}

// Encode produces the canonical CBOR byte representation of v.
func Encode(v any) ([]byte, error) {
	normalized, err := normalizeForEncode(v)
	if err != nil {
		return nil, err
	}
	b, err := encMode.Marshal(normalized)
	if err != nil {
		return nil, caperrors.Newf(caperrors.CodecError, "canonical cbor encode: %v", err)
	}
	return b, nil
}

// Decode parses canonical CBOR bytes into the Go value universe capcbor
// supports (nil, bool, int64, uint64, float64, []byte, string, []any,
// map[string]any, OMap). It fails if the input is not already the
// canonical encoding of the value it represents.
func Decode(b []byte) (any, error) {
	var raw any
	if err := decMode.Unmarshal(b, &raw); err != nil {
		return nil, caperrors.Newf(caperrors.CodecError, "cbor decode: %v", err)
	}

	// Canonical-form check: re-encode exactly what we decoded (tags and
	// all) and compare against the original bytes. Any deviation —
	// non-minimal ints, indefinite-length items, out-of-order map keys,
	// duplicate keys that slipped through — shows up as a byte mismatch.
	reencoded, err := encMode.Marshal(raw)
	if err != nil {
		return nil, caperrors.Newf(caperrors.CodecError, "re-encode for canonical check: %v", err)
	}
	if !bytes.Equal(reencoded, b) {
		return nil, caperrors.Newf(caperrors.CodecError, "input is not canonical cbor")
	}

	return stripTagsAndNormalize(raw)
}

// normalizeForEncode validates v's shape and converts native Go maps
// into a form cbor.Marshal will write in canonical key order.
func normalizeForEncode(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, float64:
		return val, nil
	case []byte:
		return val, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val, nil
	case OMap:
		return normalizeOMap(val)
	case map[string]any:
		return normalizeStringMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := normalizeForEncode(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]any, n)
		for i := 0; i < n; i++ {
			elem, err := normalizeForEncode(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, caperrors.Newf(caperrors.CodecError, "map key type %s not allowed (string, int, bytes only)", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalizeStringMap(m)
	}

	return nil, caperrors.Newf(caperrors.CodecError, "value of type %T is not encodable in the canonical codec", v)
}

func normalizeStringMap(m map[string]any) (cbor.RawMessage, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys) // ASCII/byte-order sort; re-validated below by key-byte comparison.

	entries := make([]mapEntry, 0, len(m))
	for _, k := range keys {
		nv, err := normalizeForEncode(m[k])
		if err != nil {
			return nil, err
		}
		kb, err := encMode.Marshal(k)
		if err != nil {
			return nil, caperrors.Newf(caperrors.CodecError, "encoding map key %q: %v", k, err)
		}
		entries = append(entries, mapEntry{keyBytes: kb, key: k, value: nv})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].keyBytes, entries[j].keyBytes) < 0
	})
	return marshalOrderedMap(entries)
}

func normalizeOMap(om OMap) (cbor.RawMessage, error) {
	entries := make([]mapEntry, 0, len(om))
	for _, kv := range om {
		if !allowedKeyType(kv.Key) {
			return nil, caperrors.Newf(caperrors.CodecError, "map key type %T not allowed (string, int, bytes only)", kv.Key)
		}
		nv, err := normalizeForEncode(kv.Value)
		if err != nil {
			return nil, err
		}
		kb, err := encMode.Marshal(kv.Key)
		if err != nil {
			return nil, caperrors.Newf(caperrors.CodecError, "encoding map key %v: %v", kv.Key, err)
		}
		entries = append(entries, mapEntry{keyBytes: kb, key: kv.Key, value: nv})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].keyBytes, entries[j].keyBytes) < 0
	})
	return marshalOrderedMap(entries)
}

func allowedKeyType(k any) bool {
	switch k.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, []byte:
		return true
	default:
		return false
	}
}

type mapEntry struct {
	keyBytes []byte
	key      any
	value    any
}

// marshalOrderedMap builds raw CBOR map bytes from already-sorted
// entries by concatenating each entry's pre-encoded key with its
// canonically-encoded value, then wrapping with a definite-length map
// head. This guarantees key order survives cbor.Marshal's own map
// handling, which would otherwise re-sort a Go map by its own rules.
func marshalOrderedMap(entries []mapEntry) (cbor.RawMessage, error) {
	var body bytes.Buffer
	for _, e := range entries {
		body.Write(e.keyBytes)
		vb, err := encMode.Marshal(e.value)
		if err != nil {
			return nil, caperrors.Newf(caperrors.CodecError, "encoding map value for key %v: %v", e.key, err)
		}
		body.Write(vb)
	}
	head := encodeMapHead(uint64(len(entries)))
	out := make([]byte, 0, len(head)+body.Len())
	out = append(out, head...)
	out = append(out, body.Bytes()...)
	return cbor.RawMessage(out), nil
}

// encodeMapHead writes a definite-length CBOR map head (major type 5)
// for n entries, using the shortest argument encoding.
func encodeMapHead(n uint64) []byte {
	return encodeHead(5, n)
}

// encodeHead writes a CBOR item head for the given major type (0-7)
// and argument, using the minimal-length form required by canonical
// CBOR.
func encodeHead(major byte, n uint64) []byte {
	mt := major << 5
	switch {
	case n < 24:
		return []byte{mt | byte(n)}
	case n <= 0xFF:
		return []byte{mt | 24, byte(n)}
	case n <= 0xFFFF:
		return []byte{mt | 25, byte(n >> 8), byte(n)}
	case n <= 0xFFFFFFFF:
		return []byte{mt | 26, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	default:
		return []byte{
			mt | 27,
			byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
			byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
		}
	}
}

// stripTagsAndNormalize walks a decoded value tree, discarding any CBOR
// tag wrappers (tag number dropped, content kept) and converting
// fxamacker's generic map[interface{}]interface{} decode result into
// either map[string]any (the common case) or OMap, enforcing the
// {string, int, bytes} key-type restriction along the way.
func stripTagsAndNormalize(v any) (any, error) {
	switch val := v.(type) {
	case cbor.Tag:
		return stripTagsAndNormalize(val.Content)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := stripTagsAndNormalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[any]any:
		return normalizeDecodedMap(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			n, err := stripTagsAndNormalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func normalizeDecodedMap(m map[any]any) (any, error) {
	allString := true
	for k := range m {
		if _, ok := k.(string); !ok {
			allString = false
		}
		if !allowedKeyType(k) {
			return nil, caperrors.Newf(caperrors.CodecError, "decoded map key type %T not allowed (string, int, bytes only)", k)
		}
	}

	if allString {
		out := make(map[string]any, len(m))
		for k, e := range m {
			n, err := stripTagsAndNormalize(e)
			if err != nil {
				return nil, err
			}
			out[k.(string)] = n
		}
		return out, nil
	}

	entries := make([]KV, 0, len(m))
	for k, e := range m {
		n, err := stripTagsAndNormalize(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, KV{Key: k, Value: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		ki, _ := encMode.Marshal(entries[i].Key)
		kj, _ := encMode.Marshal(entries[j].Key)
		return bytes.Compare(ki, kj) < 0
	})
	return OMap(entries), nil
}
