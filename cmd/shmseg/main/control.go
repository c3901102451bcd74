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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"mosn.io/shmseg/pkg/config"
	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/metrics"
	"mosn.io/shmseg/pkg/metrics/sink/console"
	"mosn.io/shmseg/pkg/segment"
	"mosn.io/shmseg/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultCapacity = 4 * datasize.KB

var (
	nameFlag = cli.StringFlag{
		Name:  "name, n",
		Usage: "segment name",
	}
	valueFlag = cli.StringFlag{
		Name:  "value, v",
		Usage: "value, JSON text for the json and hessian serializers",
	}

	cmdCreate = cli.Command{
		Name:  "create",
		Usage: "create a segment and keep it until interrupted",
		Flags: []cli.Flag{
			nameFlag,
			valueFlag,
			cli.StringFlag{
				Name:  "capacity",
				Usage: "payload capacity such as 64KB, defaults to the config or 4KB",
			}, cli.BoolFlag{
				Name:  "synchronized",
				Usage: "write the initial value holding the segment lock",
			}, cli.DurationFlag{
				Name:  "hold",
				Usage: "close the segment after this long instead of waiting for a signal",
			},
		},
		Action: func(c *cli.Context) error {
			conf, name, err := setup(c)
			if err != nil {
				return err
			}
			sc, _ := conf.Segment(name)
			capacity := sc.Capacity
			if s := c.String("capacity"); s != "" {
				if err := capacity.UnmarshalText([]byte(s)); err != nil {
					return errors.Wrapf(types.ErrInvalidArgument, "capacity %q", s)
				}
			}
			if capacity == 0 {
				capacity = defaultCapacity
			}
			value, err := parseValue(c.String("value"), serializerName(conf, name))
			if err != nil {
				return err
			}

			s, err := segment.Create(name, value, uint64(capacity), c.Bool("synchronized") || sc.Synchronized, conf.Options(name)...)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(c.App.Writer, "created %s, capacity %s\n", name, capacity.String())

			ctx, cancel := holdContext(c.Duration("hold"))
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}

	cmdGet = cli.Command{
		Name:  "get",
		Usage: "print the value of a segment",
		Flags: []cli.Flag{
			nameFlag,
			cli.BoolFlag{
				Name:  "raw",
				Usage: "print the stored bytes without decoding",
			},
		},
		Action: func(c *cli.Context) error {
			conf, name, err := setup(c)
			if err != nil {
				return err
			}
			return withSegment(conf, name, func(s *segment.Segment) error {
				if c.Bool("raw") {
					b, err := s.ReadBytes()
					if err != nil {
						return err
					}
					c.App.Writer.Write(b)
					fmt.Fprintln(c.App.Writer)
					return nil
				}
				out, err := readValue(s, serializerName(conf, name))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, out)
				return nil
			})
		},
	}

	cmdSet = cli.Command{
		Name:  "set",
		Usage: "store a value into a segment",
		Flags: []cli.Flag{
			nameFlag,
			valueFlag,
		},
		Action: func(c *cli.Context) error {
			conf, name, err := setup(c)
			if err != nil {
				return err
			}
			value, err := parseValue(c.String("value"), serializerName(conf, name))
			if err != nil {
				return err
			}
			return withSegment(conf, name, func(s *segment.Segment) error {
				return s.SetData(value)
			})
		},
	}

	cmdLock = cli.Command{
		Name:  "lock",
		Usage: "hold the lock of a segment",
		Flags: []cli.Flag{
			nameFlag,
			cli.DurationFlag{
				Name:  "hold",
				Usage: "release after this long instead of waiting for a signal",
			},
		},
		Action: func(c *cli.Context) error {
			conf, name, err := setup(c)
			if err != nil {
				return err
			}
			return withSegment(conf, name, func(s *segment.Segment) error {
				fmt.Fprintf(c.App.Writer, "locked %s\n", name)
				ctx, cancel := holdContext(c.Duration("hold"))
				defer cancel()
				<-ctx.Done()
				return nil
			})
		},
	}

	cmdStat = cli.Command{
		Name:  "stat",
		Usage: "print the state of a segment and its lock",
		Flags: []cli.Flag{
			nameFlag,
		},
		Action: func(c *cli.Context) error {
			conf, name, err := setup(c)
			if err != nil {
				return err
			}
			s, err := segment.Attach(name, false, conf.Options(name)...)
			if err != nil {
				return err
			}
			defer s.Close()
			stat, err := s.Stat()
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(stat, "", "\t")
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, string(b))
			return nil
		},
	}

	cmdRemove = cli.Command{
		Name:  "remove",
		Usage: "remove a segment no process uses any more",
		Flags: []cli.Flag{
			nameFlag,
		},
		Action: func(c *cli.Context) error {
			conf, name, err := setup(c)
			if err != nil {
				return err
			}
			if err := segment.Remove(name, conf.Options(name)...); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "removed %s\n", name)
			return nil
		},
	}
)

// setup loads the configuration, applies the global flags and returns the
// segment name of the command.
func setup(c *cli.Context) (*config.Config, string, error) {
	conf := config.Default()
	if path := c.GlobalString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		conf = loaded
	}
	if dir := c.GlobalString("dir"); dir != "" {
		conf.Dir = dir
	}
	if s := c.GlobalString("serializer"); s != "" {
		conf.Serializer = s
	}
	if lv := c.GlobalString("log-level"); lv != "" {
		conf.Log.Level = lv
	}
	if output := c.GlobalString("log-output"); output != "" {
		conf.Log.Output = output
	}
	if err := conf.Validate(); err != nil {
		return nil, "", err
	}
	if err := conf.Apply(); err != nil {
		return nil, "", err
	}

	name := c.String("name")
	if err := types.ValidateName(name); err != nil {
		return nil, "", err
	}
	return conf, name, nil
}

// withSegment attaches to name and runs f holding the segment lock.
func withSegment(conf *config.Config, name string, f func(s *segment.Segment) error) error {
	s, err := segment.Attach(name, false, conf.Options(name)...)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.AcquireLock(conf.Timeout())
	if err != nil {
		if !errors.Is(err, types.ErrAbandonedLock) {
			return err
		}
		log.DefaultLogger.Warnf("[shmseg] %v, the value may be inconsistent", err)
	}
	defer g.Release()
	return f(s)
}

func serializerName(conf *config.Config, name string) string {
	if sc, ok := conf.Segment(name); ok && sc.Serializer != "" {
		return sc.Serializer
	}
	return conf.Serializer
}

// parseValue turns command line text into the value to serialize.
func parseValue(text, serializer string) (interface{}, error) {
	switch serializer {
	case "", "json", "hessian":
		if text == "" {
			return nil, nil
		}
		var v interface{}
		if err := json.UnmarshalFromString(text, &v); err != nil {
			return nil, errors.Wrapf(types.ErrInvalidArgument, "value is not JSON: %v", err)
		}
		return v, nil
	case "simple":
		return text, nil
	default:
		return nil, errors.Wrapf(types.ErrInvalidArgument, "serializer %s takes no command line values", serializer)
	}
}

// readValue decodes the value of s for printing.
func readValue(s *segment.Segment, serializer string) (string, error) {
	if serializer == "simple" {
		return segment.Get[string](s)
	}
	v, err := segment.Get[interface{}](s)
	if err != nil {
		return "", err
	}
	return json.MarshalToString(v)
}

// holdContext is done after d, or on SIGINT or SIGTERM when d is zero.
func holdContext(d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printMetrics writes the metrics this process kept for the named segment
// to the app writer.
func printMetrics(c *cli.Context, name string) {
	var ms []types.Metrics
	if m := metrics.GetMetricsFilter(metrics.SegmentStatsName(name)); m != nil {
		ms = append(ms, m)
	}
	console.NewConsoleSink().Flush(c.App.Writer, ms)
}
