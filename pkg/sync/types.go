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

// WorkerPool runs tasks on a bounded set of reusable goroutines.
//
// A task that acquires a NamedMutex must release it before returning. A task
// that panics while holding one ends its worker goroutine, so the mutex is
// reported abandoned to the next acquirer.
type WorkerPool interface {
	// Schedule runs task on a pooled worker, waiting until one is free.
	Schedule(task func())

	// Size is the maximum number of pooled workers.
	Size() int
}
