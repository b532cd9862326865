package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/mandelsoft/logging"
	"k8s.io/client-go/util/workqueue"

	"github.com/mandelsoft/concerns/pkg/ctxutil"
	"github.com/mandelsoft/concerns/pkg/healthz"
	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/service"
)

var REALM = logging.DefineRealm("concerns/pool", "processing worker pool")

var poolkey = ctxutil.NewValueKey[Pool]("pool")

// GetPool provides the pool running a request.
func GetPool(ctx context.Context) Pool {
	return poolkey.Get(ctx)
}

type Pool interface {
	service.Service

	GetName() string
	Period() time.Duration
	QueueLength() int

	AddAction(key ActionTargetSpec, a Action)
	GetActions(key ActionTargetSpec) []Action

	EnqueueCommand(cmd Command)
	EnqueueCommandRateLimited(cmd Command)
	EnqueueCommandAfter(cmd Command, duration time.Duration)

	EnqueueKey(key model.ObjectId)
	EnqueueKeyRateLimited(key model.ObjectId)
	EnqueueKeyAfter(key model.ObjectId, duration time.Duration)
}

// MessageContext is the logger handed to actions for a request.
type MessageContext = logging.Logger

type pool struct {
	log       logging.Logger
	lctx      logging.Context
	name      string
	size      int
	ctx       context.Context
	period    time.Duration
	workqueue workqueue.RateLimitingInterface
	actions   *actionMapping
	key       string
	ready     service.Trigger
	syncher   service.Syncher
}

// NewPool creates a pool with size workers. A non-zero period
// reschedules every successfully processed object key after the
// given duration.
func NewPool(lctx logging.Context, name string, size int, period time.Duration) Pool {
	if size <= 0 {
		size = 1
	}
	pool := &pool{
		log:    lctx.Logger(REALM).WithValues("pool", name),
		lctx:   lctx,
		name:   name,
		size:   size,
		period: period,
		key:    fmt.Sprintf("pool %s", name),
		workqueue: workqueue.NewRateLimitingQueueWithConfig(workqueue.DefaultControllerRateLimiter(), workqueue.RateLimitingQueueConfig{
			Name: name,
		}),
		actions: newActionMapping(),
	}

	if pool.period != 0 {
		pool.log.Info("created pool {{name}}", "name", pool.name, "size", pool.size, "resync period", pool.period.String())
	} else {
		pool.log.Info("created pool {{name}}", "name", pool.name, "size", pool.size)
	}
	return pool
}

func (p *pool) AddAction(key ActionTargetSpec, a Action) {
	p.log.Info("adding action {{type}} for {{key}}", "type", fmt.Sprintf("%T", a), "key", key.String())
	p.actions.addAction(key, a)
}

func (p *pool) GetActions(key ActionTargetSpec) []Action {
	return p.actions.getActions(key)
}

func (p *pool) GetName() string {
	return p.name
}

func (p *pool) Key() string {
	return p.key
}

func (p *pool) Period() time.Duration {
	return p.period
}

func (p *pool) QueueLength() int {
	return p.workqueue.Len()
}

func (p *pool) Wait() error {
	return p.syncher.Wait()
}

// Start starts the workers. The pool runs until the given context
// is canceled.
func (p *pool) Start(ctx context.Context) (service.Syncher, service.Syncher, error) {
	if p.syncher == nil {
		p.ctx = ctxutil.WaitGroupContext(poolkey.WithValue(ctx, p), p.key)

		p.syncher = service.Sync(ctxutil.WaitGroupGet(p.ctx))
		p.ready = service.SyncTrigger()
		ctxutil.WaitGroupRun(p.ctx, p.Run)
	}
	return p.ready, p.syncher, nil
}

func (p *pool) Run() {
	p.log.Info("starting worker pool {{name}} with {{workers}} workers", "name", p.name, "workers", p.size)
	period := p.period
	if period == 0 {
		p.log.Info("no reconcile period active -> start ticker")
		period = tick
	}
	healthz.Start(p.Key(), period)

	// always run periodic tickCmd to deal with empty workqueue
	p.workqueue.AddAfter(tickCmd, period)

	workers := ctxutil.WaitGroupContext(p.ctx, p.key+" workers")
	for i := 0; i < p.size; i++ {
		n := i
		ctxutil.WaitGroupRun(workers, func() { newWorker(p, n).Run() })
	}

	p.ready.Trigger()

	<-p.ctx.Done()
	p.workqueue.ShutDown()
	p.log.Info("waiting for pool workers of {{name}} to shutdown", "name", p.name)
	if !ctxutil.WaitGroupWait(workers, 120*time.Second) {
		p.log.Warn("workers of pool {{name}} did not finish", "name", p.name)
	}
	healthz.End(p.Key())
}

func (p *pool) EnqueueCommand(cmd Command) {
	p.enqueueCommand(cmd, p.workqueue.Add)
}
func (p *pool) EnqueueCommandRateLimited(name Command) {
	p.enqueueCommand(name, p.workqueue.AddRateLimited)
}
func (p *pool) EnqueueCommandAfter(name Command, duration time.Duration) {
	p.enqueueCommand(name, func(key interface{}) { p.workqueue.AddAfter(key, duration) })
}
func (p *pool) enqueueCommand(cmd Command, add func(interface{})) {
	add(EncodeCommandKey(cmd))
}

func (p *pool) EnqueueKey(key model.ObjectId) {
	p.enqueueKey(key, p.workqueue.Add)
}
func (p *pool) EnqueueKeyRateLimited(key model.ObjectId) {
	p.enqueueKey(key, p.workqueue.AddRateLimited)
}
func (p *pool) EnqueueKeyAfter(key model.ObjectId, duration time.Duration) {
	p.enqueueKey(key, func(key interface{}) { p.workqueue.AddAfter(key, duration) })
}
func (p *pool) enqueueKey(key model.ObjectId, add func(interface{})) {
	add(EncodeObjectKey(key))
}
