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

import "errors"

var (
	// ErrUnknownIndicatorType indicates an indicator type that is neither
	// built in nor registered.
	ErrUnknownIndicatorType = errors.New("unknown indicator type")

	// ErrValueCount indicates the wrong number of value components for an
	// indicator type.
	ErrValueCount = errors.New("wrong number of indicator values")

	// ErrInvalidValueLabels indicates a custom type registration with an
	// unsupported number of value labels.
	ErrInvalidValueLabels = errors.New("custom indicator types take 1 to 3 value labels")

	// ErrTypeRegistered indicates a duplicate custom type registration.
	ErrTypeRegistered = errors.New("indicator type already registered")

	// ErrInvalidDate indicates a date value that could not be normalized
	// to the wire format.
	ErrInvalidDate = errors.New("unrecognized date value")
)
