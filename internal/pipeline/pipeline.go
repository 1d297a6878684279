// Package pipeline implements the three-stage upload pipeline: pre-send
// (read + hash) → send (store upload) → sent (index insert), connected
// by internal/queue.Queue instances and driven by fixed-size worker
// pools.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/cuemby/haumaru/internal/domain"
	"github.com/cuemby/haumaru/internal/hasher"
	"github.com/cuemby/haumaru/internal/log"
	"github.com/cuemby/haumaru/internal/queue"
	"github.com/cuemby/haumaru/internal/store"
)

const (
	preSendWorkers         = 4
	sendWorkers            = 12
	sentWorkers            = 1
	queueCapacity          = 4
	queueDepthReportPeriod = 2 * time.Second
)

// Inserter is the subset of *index.Index the sent stage needs.
type Inserter interface {
	Insert(node domain.Node) error
}

// Pipeline owns the three bounded queues and their worker pools. Root is
// used to resolve a Node's relative path back to an absolute path for
// reading file bodies.
type Pipeline struct {
	root string

	PreSend *queue.Queue[domain.Node]
	Send    *queue.Queue[*store.SendRequest]
	Sent    *queue.Queue[domain.Node]

	store store.Store
	index Inserter

	metrics Metrics
}

// Metrics is the subset of engine-owned Prometheus instrumentation the
// pipeline reports into. A nil-safe no-op implementation is used when the
// caller doesn't care to observe it.
type Metrics interface {
	DedupSkipped()
	QueueDepth(stage string, n int)
}

type noopMetrics struct{}

func (noopMetrics) DedupSkipped()          {}
func (noopMetrics) QueueDepth(string, int) {}

// New builds a Pipeline rooted at root, uploading through st and
// recording accepted nodes into idx. If metrics is nil, a no-op recorder
// is used.
func New(root string, st store.Store, idx Inserter, metrics Metrics) *Pipeline {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Pipeline{
		root:    root,
		PreSend: queue.New[domain.Node]("pre_send", queueCapacity),
		Send:    queue.New[*store.SendRequest]("send", queueCapacity),
		Sent:    queue.New[domain.Node]("sent", queueCapacity),
		store:   st,
		index:   idx,
		metrics: metrics,
	}
}

// Start launches the worker pools as goroutines. Workers run until the
// process exits; ctx is passed to store calls and its cancellation stops
// only the queue-depth reporter.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < preSendWorkers; i++ {
		go p.runPreSendWorker(ctx)
	}
	for i := 0; i < sendWorkers; i++ {
		go p.runSendWorker(ctx)
	}
	for i := 0; i < sentWorkers; i++ {
		go p.runSentWorker(ctx)
	}
	go p.reportQueueDepths(ctx)
}

// reportQueueDepths periodically samples each stage's queue length into
// metrics, so an operator watching /metrics can see backlog building up
// in one stage without instrumenting every Push/Pop call site.
func (p *Pipeline) reportQueueDepths(ctx context.Context) {
	ticker := time.NewTicker(queueDepthReportPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.metrics.QueueDepth("pre_send", p.PreSend.Len())
			p.metrics.QueueDepth("send", p.Send.Len())
			p.metrics.QueueDepth("sent", p.Sent.Len())
		}
	}
}

// Wait blocks until all three queues have fully drained, in stage order.
func (p *Pipeline) Wait() {
	p.PreSend.Wait()
	p.Send.Wait()
	p.Sent.Wait()
}

// Enqueue pushes a newly-observed file Node into the pre-send stage.
func (p *Pipeline) Enqueue(n domain.Node) {
	p.PreSend.Push(n)
}

func (p *Pipeline) runPreSendWorker(ctx context.Context) {
	for {
		item := p.PreSend.Pop()
		p.processPreSend(ctx, item)
	}
}

// processPreSend guards the worker body in recover() so a panic during
// file I/O or hashing still reaches item.Done(false), preserving the
// re-enqueue-on-drop guarantee without a destructor.
func (p *Pipeline) processPreSend(ctx context.Context, item *queue.Item[domain.Node]) {
	success := false
	defer func() {
		recover()
		item.Done(success)
	}()

	node := item.Value()
	comp := log.WithComponent("pipeline.pre_send")

	abs := absPath(p.root, node.Path)
	f, err := os.Open(abs)
	if err != nil {
		comp.Warn().Str("path", node.Path).Err(err).Msg("failed to open file for reading")
		return
	}
	defer f.Close()

	h := hasher.New()
	buf := &bytes.Buffer{}
	if _, err := io.Copy(io.MultiWriter(buf, h), f); err != nil {
		comp.Warn().Str("path", node.Path).Err(err).Msg("failed to read file body")
		return
	}

	md5sum, sha256sum := h.Sum()
	withHash := node.WithHash(sha256sum[:])

	req := &store.SendRequest{
		MD5:    md5sum,
		SHA256: sha256sum,
		Node:   withHash,
		Reader: bytes.NewReader(buf.Bytes()),
		Size:   int64(buf.Len()),
	}
	p.Send.Push(req)
	success = true
}

func (p *Pipeline) runSendWorker(ctx context.Context) {
	for {
		item := p.Send.Pop()
		p.processSend(ctx, item)
	}
}

func (p *Pipeline) processSend(ctx context.Context, item *queue.Item[*store.SendRequest]) {
	success := false
	defer func() {
		recover()
		item.Done(success)
	}()

	req := item.Value()
	comp := log.WithComponent("pipeline.send")

	deduped, err := p.store.Send(ctx, req)
	if err != nil {
		comp.Warn().Str("path", req.Node.Path).Err(err).Msg("failed to send blob")
		return
	}
	if deduped {
		p.metrics.DedupSkipped()
	}
	p.Sent.Push(req.Node)
	success = true
}

func (p *Pipeline) runSentWorker(ctx context.Context) {
	for {
		item := p.Sent.Pop()
		p.processSent(item)
	}
}

func (p *Pipeline) processSent(item *queue.Item[domain.Node]) {
	// An insert failure is logged but NOT re-enqueued: a duplicate blob
	// upload is safe, but a duplicate index row is not.
	success := true
	defer func() {
		recover()
		item.Done(success)
	}()

	node := item.Value()
	if err := p.index.Insert(node); err != nil {
		log.WithComponent("pipeline.sent").Warn().Str("path", node.Path).Err(err).Msg("failed to insert node into index")
	}
}

func absPath(root, rel string) string {
	if rel == "" {
		return root
	}
	return root + string(os.PathSeparator) + rel
}
