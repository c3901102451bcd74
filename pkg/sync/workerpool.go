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

package sync

import (
	"mosn.io/pkg/utils"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/types"
)

type workerPool struct {
	work chan func()
	sem  chan struct{}
}

// NewWorkerPool creates a worker pool with at most size pooled workers.
func NewWorkerPool(size int) WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &workerPool{
		work: make(chan func()),
		sem:  make(chan struct{}, size),
	}
}

func (p *workerPool) Size() int {
	return cap(p.sem)
}

func (p *workerPool) Schedule(task func()) {
	select {
	case p.work <- task:
	case p.sem <- struct{}{}:
		utils.GoWithRecover(func() {
			p.spawnWorker(task)
		}, func(r interface{}) {
			log.DefaultLogger.Alertf(types.AlertWorkerPanic, "[workerpool] worker of pool %d panic: %v", p.Size(), r)
		})
	}
}

// spawnWorker runs tasks until one panics. The panic ends the goroutine, and
// with it the thread of a task that still held a NamedMutex.
func (p *workerPool) spawnWorker(task func()) {
	defer func() {
		<-p.sem
	}()
	for {
		task()
		task = <-p.work
	}
}
