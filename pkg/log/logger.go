/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package log

import (
	"fmt"
	"strings"

	"mosn.io/pkg/log"
)

// Level re-exports the level type of the underlying logger.
type Level = log.Level

const (
	FATAL = log.FATAL
	ERROR = log.ERROR
	WARN  = log.WARN
	INFO  = log.INFO
	DEBUG = log.DEBUG
	TRACE = log.TRACE
)

var (
	// StartLogger is used before the configured logger is ready
	StartLogger log.ErrorLogger
	// DefaultLogger is the logger of the segment and lock packages
	DefaultLogger log.ErrorLogger
)

var flagToLogLevel = map[string]Level{
	"trace":    TRACE,
	"debug":    DEBUG,
	"info":     INFO,
	"warn":     WARN,
	"warning":  WARN,
	"error":    ERROR,
	"critical": FATAL,
	"fatal":    FATAL,
}

func init() {
	// use console as start logger
	lg, err := CreateDefaultErrorLogger("", INFO)
	if err != nil {
		panic("init start logger error: " + err.Error())
	}
	StartLogger = lg
	DefaultLogger = lg
}

// InitDefaultLogger replaces DefaultLogger with a logger writing to output.
func InitDefaultLogger(output string, level Level) error {
	lg, err := CreateDefaultErrorLogger(output, level)
	if err != nil {
		return err
	}
	DefaultLogger = lg
	return nil
}

// UpdateErrorLoggerLevel changes the level of DefaultLogger in place.
func UpdateErrorLoggerLevel(level Level) {
	DefaultLogger.SetLogLevel(level)
}

// ParseLogLevel converts a command line level name into a Level.
func ParseLogLevel(s string) (Level, error) {
	if lv, ok := flagToLogLevel[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lv, nil
	}
	return INFO, fmt.Errorf("unknown log level: %s", s)
}
