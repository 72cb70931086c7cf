package kvstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/leafsii/repokit/pkg/metadata"
	"github.com/leafsii/repokit/pkg/storage"
)

var jsonNull = []byte("null")

func encodeRecord(record storage.Record) ([]byte, error) {
	return json.Marshal(record)
}

// decodeRecord unmarshals each column into its declared type so that
// values compare the same way they do in memory.
func decodeRecord(raw []byte, meta *metadata.EntityMetadata) (storage.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("kvstore: decode %s: %w", meta.TableName, err)
	}
	record := make(storage.Record, len(meta.Columns))
	for _, c := range meta.Columns {
		data, ok := fields[c.Name]
		if !ok || bytes.Equal(data, jsonNull) {
			record[c.Name] = nil
			continue
		}
		t := c.Type
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		v := reflect.New(t)
		if err := json.Unmarshal(data, v.Interface()); err != nil {
			return nil, fmt.Errorf("kvstore: decode %s.%s: %w", meta.TableName, c.Name, err)
		}
		record[c.Name] = v.Elem().Interface()
	}
	return record, nil
}
