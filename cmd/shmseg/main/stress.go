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
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	uatomic "go.uber.org/atomic"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/segment"
	shmsync "mosn.io/shmseg/pkg/sync"
	"mosn.io/shmseg/pkg/types"
)

var cmdStress = cli.Command{
	Name:  "stress",
	Usage: "increment a counter segment from many workers",
	Flags: []cli.Flag{
		nameFlag,
		cli.IntFlag{
			Name:  "workers, w",
			Usage: "concurrent workers, each with its own segment handle",
			Value: 4,
		}, cli.IntFlag{
			Name:  "iterations, i",
			Usage: "increments per worker",
			Value: 1000,
		}, cli.BoolFlag{
			Name:  "metrics",
			Usage: "print the segment metrics when done",
		},
	},
	Action: func(c *cli.Context) error {
		conf, name, err := setup(c)
		if err != nil {
			return err
		}
		workers, iterations := c.Int("workers"), c.Int("iterations")
		if workers <= 0 || iterations <= 0 {
			return errors.Wrapf(types.ErrOutOfRange, "workers %d, iterations %d", workers, iterations)
		}

		// keep the counter alive for the run, creating it if nobody has
		owner, err := segment.Attach(name, true, conf.Options(name)...)
		if errors.Is(err, types.ErrAbandonedLock) {
			log.DefaultLogger.Warnf("[stress] %v, the counter may be inconsistent", err)
			err = nil
		}
		if errors.Is(err, types.ErrSegmentNotFound) {
			owner, err = segment.Create(name, 0, uint64(defaultCapacity), true, conf.Options(name)...)
		}
		if err != nil {
			return err
		}
		defer owner.Close()

		start, err := segment.Get[int64](owner)
		if err != nil {
			return err
		}

		result := runStress(conf.Timeout(), name, workers, iterations, func() (*segment.Segment, error) {
			return segment.Attach(name, false, conf.Options(name)...)
		})

		end, err := segment.Get[int64](owner)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d increments in %s, %d failed, %d abandoned, counter %d -> %d\n",
			result.done.Load(), result.elapsed, result.failed.Load(), result.abandoned.Load(), start, end)
		if c.Bool("metrics") {
			printMetrics(c, name)
		}
		if result.failed.Load() > 0 {
			return errors.Errorf("%d increments failed", result.failed.Load())
		}
		return nil
	},
}

type stressResult struct {
	done      uatomic.Int64
	failed    uatomic.Int64
	abandoned uatomic.Int64
	elapsed   time.Duration
}

// runStress increments the counter held by the segment from workers
// goroutines, each with its own handle as separate processes would have.
func runStress(timeout time.Duration, name string, workers, iterations int, open func() (*segment.Segment, error)) *stressResult {
	result := &stressResult{}
	pool := shmsync.NewWorkerPool(workers)
	wg := sync.WaitGroup{}
	start := time.Now()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		pool.Schedule(func() {
			defer wg.Done()
			s, err := open()
			if err != nil {
				log.DefaultLogger.Errorf("[stress] attach %s: %v", name, err)
				result.failed.Add(int64(iterations))
				return
			}
			defer s.Close()
			for i := 0; i < iterations; i++ {
				if err := increment(s, timeout); err != nil {
					if errors.Is(err, types.ErrAbandonedLock) {
						result.abandoned.Inc()
						result.done.Inc()
						continue
					}
					log.DefaultLogger.Errorf("[stress] increment %s: %v", name, err)
					result.failed.Inc()
					continue
				}
				result.done.Inc()
			}
		})
	}
	wg.Wait()
	result.elapsed = time.Since(start)
	return result
}

// increment adds one to the counter under the segment lock. An abandoned
// lock is reported after the increment succeeded.
func increment(s *segment.Segment, timeout time.Duration) error {
	g, lockErr := s.AcquireLock(timeout)
	if g == nil {
		return lockErr
	}
	defer g.Release()

	n, err := segment.Get[int64](s)
	if err != nil {
		return err
	}
	if err := s.SetData(n + 1); err != nil {
		return err
	}
	return lockErr
}
