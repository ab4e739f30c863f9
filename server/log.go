// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import "github.com/pion/logging"

// Logger is the diagnostic sink every subsystem writes through; it is
// satisfied directly by pion/logging's LeveledLogger, following the
// same per-subsystem scoped-logger idiom the source used with its own
// Noticef/Errorf/Debugf/Tracef methods on *Server.
type Logger = logging.LeveledLogger

// NewLoggerFactory returns the default pion logger factory, writing
// leveled output to stderr unless configured otherwise by the caller.
func NewLoggerFactory() logging.LoggerFactory {
	return logging.NewDefaultLoggerFactory()
}
