// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/json"
	"fmt"
)

// Entities are persisted in their camelCase JSON wire shape, so a
// value read back from the disk tier can be emitted into a submission
// chunk directly.

// MarshalWire serializes an entity wire map to bytes.
func MarshalWire(m map[string]any) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSerializationFailed, err.Error())
	}
	return data, nil
}

// UnmarshalWire deserializes an entity wire map from bytes.
func UnmarshalWire(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSerializationFailed, err.Error())
	}
	return m, nil
}

// WireSize returns the serialized byte size of an entity wire map,
// used for the in-memory tier's size accounting.
func WireSize(m map[string]any) (int, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSerializationFailed, err.Error())
	}
	return len(data), nil
}
