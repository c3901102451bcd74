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

package main

import (
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/serialize"
)

var Version = "0.1.0"

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "shmseg"
	app.Version = Version
	app.Compiled = time.Now()
	app.Usage = "create, inspect and exercise named shared memory segments"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "Load configuration from `FILE`",
			EnvVar: "SHMSEG_CONFIG",
		}, cli.StringFlag{
			Name:   "dir, d",
			Usage:  "directory of the shared objects, overrides the config",
			EnvVar: "SHMSEG_DIR",
		}, cli.StringFlag{
			Name:   "serializer, s",
			Usage:  "value serializer, " + strings.Join(serialize.Names(), "|"),
			EnvVar: "SHMSEG_SERIALIZER",
		}, cli.StringFlag{
			Name:   "log-level, l",
			Usage:  "log level, trace|debug|info|warning|error|critical",
			EnvVar: "LOG_LEVEL",
		}, cli.StringFlag{
			Name:   "log-output, o",
			Usage:  "log output, stdout|stderr|`FILE`",
			EnvVar: "LOG_OUTPUT",
		},
	}

	app.Commands = []cli.Command{
		cmdCreate,
		cmdGet,
		cmdSet,
		cmdLock,
		cmdStat,
		cmdRemove,
		cmdStress,
	}

	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.StartLogger.Errorf("[shmseg] %v", err)
		os.Exit(1)
	}
}
