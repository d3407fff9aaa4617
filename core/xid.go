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


package core

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// GenerateXid generates an external identifier from an ordered list of
// identifiers using BLAKE2b hashing. The same ordered list always yields
// the same xid; a different order yields a different one, because the
// components are joined positionally before hashing.
//
// With no identifiers a random xid is returned.
func GenerateXid(identifiers ...string) string {
	if len(identifiers) == 0 {
		return RandomXid()
	}
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(strings.Join(identifiers, "-")))
	return hex.EncodeToString(h.Sum(nil))
}

// RandomXid returns a random UUID xid.
func RandomXid() string {
	return uuid.NewString()
}
