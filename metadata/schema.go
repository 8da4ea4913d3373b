package metadata

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// FieldKind is the JSON shape a field value must have.
type FieldKind int

const (
	KindString FieldKind = iota
	KindTimestamp
	KindHex
	KindStringList
	KindInteger
	KindNonNegativeInteger
	KindObject
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindTimestamp:
		return "RFC 3339 timestamp"
	case KindHex:
		return "hex string"
	case KindStringList:
		return "list of strings"
	case KindInteger:
		return "integer"
	case KindNonNegativeInteger:
		return "non-negative integer"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Schema lists the fields a table accepts besides its key field.
type Schema map[string]FieldKind

var schemas = map[interfaces.Table]Schema{
	interfaces.SoftwareTable: {
		"version":    KindString,
		"commitDate": KindTimestamp,
		"commitHash": KindHex,
		"tags":       KindStringList,
		"notes":      KindString,
		"url":        KindString,
		"firstLevel": KindNonNegativeInteger,
		"lastLevel":  KindNonNegativeInteger,
		"extras":     KindObject,
	},
	interfaces.ProtocolsTable: {
		"alias":      KindString,
		"code":       KindInteger,
		"version":    KindString,
		"docs":       KindString,
		"firstLevel": KindNonNegativeInteger,
		"lastLevel":  KindNonNegativeInteger,
		"constants":  KindObject,
		"extras":     KindObject,
	},
}

// SchemaFor returns the schema of table.
func SchemaFor(table interfaces.Table) (Schema, bool) {
	s, ok := schemas[table]
	return s, ok
}

var errNull = errors.New("null is not allowed")

// checkValue reports whether raw has the expected kind.
func checkValue(kind FieldKind, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return errors.New("empty value")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return errNull
	}

	switch kind {
	case KindString:
		_, err := decodeString(trimmed)
		return err

	case KindTimestamp:
		s, err := decodeString(trimmed)
		if err != nil {
			return err
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("expected %s", kind)
		}
		return nil

	case KindHex:
		s, err := decodeString(trimmed)
		if err != nil {
			return err
		}
		s = strings.TrimPrefix(s, "0x")
		if s == "" {
			return fmt.Errorf("expected %s", kind)
		}
		if len(s)%2 == 1 {
			s = "0" + s
		}
		if _, err := hex.DecodeString(s); err != nil {
			return fmt.Errorf("expected %s", kind)
		}
		return nil

	case KindStringList:
		var list []json.RawMessage
		if trimmed[0] != '[' || json.Unmarshal(trimmed, &list) != nil {
			return fmt.Errorf("expected %s", kind)
		}
		for i, item := range list {
			if _, err := decodeString(item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil

	case KindInteger, KindNonNegativeInteger:
		var n json.Number
		if trimmed[0] == '"' || json.Unmarshal(trimmed, &n) != nil {
			return fmt.Errorf("expected %s", kind)
		}
		i, err := n.Int64()
		if err != nil {
			return fmt.Errorf("expected %s", kind)
		}
		if kind == KindNonNegativeInteger && i < 0 {
			return fmt.Errorf("expected %s", kind)
		}
		return nil

	case KindObject:
		var obj map[string]json.RawMessage
		if trimmed[0] != '{' || json.Unmarshal(trimmed, &obj) != nil {
			return fmt.Errorf("expected %s", kind)
		}
		return nil

	default:
		return fmt.Errorf("unsupported field kind %d", kind)
	}
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		return "", fmt.Errorf("expected %s", KindString)
	}
	return s, nil
}
