package onnx

// MetadataValue returns the metadata_props value stored under key.
func MetadataValue(m *ModelProto, key string) (string, bool) {
	for _, entry := range m.MetadataProps {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// AddMetadata appends key=value to metadata_props unless key is already present.
// It reports whether the entry was added.
func AddMetadata(m *ModelProto, key, value string) bool {
	if _, ok := MetadataValue(m, key); ok {
		return false
	}
	m.MetadataProps = append(m.MetadataProps, StringStringEntry{Key: key, Value: value})
	return true
}
