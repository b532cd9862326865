/*
 * SPDX-FileCopyrightText: 2019 SAP SE or an SAP affiliate company and Gardener contributors
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package pool

import (
	"fmt"
	"time"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/concerns/pkg/healthz"
)

// worker describe a single threaded worker entity synchronously working
// on requests provided by the pool workqueue.
type worker struct {
	log  logging.Logger
	pool *pool
}

func newWorker(p *pool, number int) *worker {
	return &worker{
		log:  p.log.WithName(fmt.Sprintf("worker %d", number)).WithValues("worker", number),
		pool: p,
	}
}

func (w *worker) Run() {
	w.log.Info("starting worker")
	for w.processNextWorkItem() {
	}
	w.log.Info("exit worker")
}

func (w *worker) internalErr(obj interface{}, err error) bool {
	w.log.LogError(err, "internal error")
	w.pool.workqueue.Forget(obj)
	return true
}

func catch(f func() Status) (result Status) {
	defer func() {
		if r := recover(); r != nil {
			if res, ok := r.(Status); ok {
				result = res
			} else {
				panic(r)
			}
		}
	}()
	return f()
}

func (w *worker) processNextWorkItem() bool {
	obj, shutdown := w.pool.workqueue.Get()
	if shutdown {
		return false
	}
	w.log.Debug("request {{key}}", "key", obj)
	defer w.pool.workqueue.Done(obj)
	defer w.log.Debug("request {{key}} done", "key", obj)
	healthz.Tick(w.pool.Key())

	key, ok := obj.(string)
	if !ok {
		return w.internalErr(obj, fmt.Errorf("expected string in workqueue but got %#v", obj))
	}

	reqlog := w.log.WithValues("resource-key", key)

	cmd, rkey, err := DecodeKey(key)
	if err != nil {
		reqlog.Error("request key error", "error", err)
		w.pool.workqueue.Forget(obj)
		return true
	}

	ok = true
	var reschedule time.Duration = -1
	if cmd != "" {
		actions := w.pool.GetActions(cmd)
		if len(actions) > 0 {
			for _, action := range actions {
				status := catch(func() Status { return action.Command(w.pool, reqlog, cmd) })
				if !status.Completed {
					ok = false
				}
				if status.Error != nil {
					err = status.Error
					reqlog.Error("command {{command}} failed", "command", cmd, "error", err)
				}
				updateSchedule(&reschedule, status.Interval)
			}
		} else {
			if cmd == tickCmd {
				healthz.Tick(w.pool.Key())
				w.pool.workqueue.AddAfter(tickCmd, tick)
			} else {
				reqlog.Error("no action found for command {{command}}", "command", cmd)
			}
			return true
		}
	}
	if rkey != nil {
		actions := w.pool.GetActions(ObjectType(rkey.Kind))

		for _, a := range actions {
			status := catch(func() Status { return a.Reconcile(w.pool, reqlog, *rkey) })
			if !status.Completed {
				ok = false
			}
			if status.Error != nil {
				err = status.Error
			}
			if status.Interval >= 0 {
				reqlog.Debug("requested reschedule", "delay", status.Interval/time.Second)
			}
			updateSchedule(&reschedule, status.Interval)
		}
	}
	if err != nil {
		if ok && reschedule < 0 {
			reqlog.Warn("add rate limited because of problem", "problem", err)
			w.pool.workqueue.AddRateLimited(obj)
		} else {
			if reschedule > 0 {
				reqlog.Info("request reschedule", "delay", reschedule/time.Second)
				w.pool.workqueue.AddAfter(obj, reschedule)
			} else {
				reqlog.Info("wait for new change", "problem", err)
			}
		}
	} else {
		if ok {
			w.pool.workqueue.Forget(obj)
			if rkey != nil && (reschedule < 0 || (w.pool.Period() > 0 && w.pool.Period() < reschedule)) {
				reschedule = w.pool.Period()
			}

			if reschedule > 0 {
				if w.pool.Period() != reschedule {
					reqlog.Info("reschedule", "delay", reschedule/time.Second)
				} else {
					reqlog.Debug("reschedule", "delay", reschedule/time.Second)
				}
				w.pool.workqueue.AddAfter(obj, reschedule)
			} else {
				reqlog.Debug("stop reconciling")
			}
		} else {
			reqlog.Info("redo reconcile")
			w.pool.workqueue.Add(obj)
		}
	}
	return true
}

func updateSchedule(reschedule *time.Duration, interval time.Duration) {
	if interval >= 0 && (*reschedule <= 0 || interval < *reschedule) {
		*reschedule = interval
	}
}
