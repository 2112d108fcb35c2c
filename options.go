// Copyright 2024 The Cockroach Authors
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

package probeset

import "go.uber.org/zap"

// option provide an interface to do work on a set while it is being created.
type option interface {
	apply(t *table)
}

type loggerOption struct {
	logger *zap.Logger
}

func (op loggerOption) apply(t *table) {
	if op.logger != nil {
		t.logger = op.logger
	}
}

// WithLogger is an option to specify the logger used to trace probing. Every
// probe step is logged at debug level, so the logger should only enable debug
// logging while diagnosing a problem. The default logger discards
// everything.
func WithLogger(logger *zap.Logger) option {
	return loggerOption{logger}
}
