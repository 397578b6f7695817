package resumefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a pipeline run's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateExtracted
	StateRewritten
	StateReconstructed
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracted:
		return "extracted"
	case StateRewritten:
		return "rewritten"
	case StateReconstructed:
		return "reconstructed"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RewriteRequest is what the external rewriter receives.
type RewriteRequest struct {
	Mode Mode
	// Payload is the serialized tree (tree mode) or the JSON entry list (patch mode)
	Payload     string
	Role        string
	Description string
}

// Rewriter is the external text transformer. Implementations must honour
// context cancellation; the pipeline never retries a call.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (string, error)
}

// RewriterFunc adapts a function to the Rewriter interface.
type RewriterFunc func(ctx context.Context, req RewriteRequest) (string, error)

// Rewrite calls f.
func (f RewriterFunc) Rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	return f(ctx, req)
}

// Transition is one state change of a run.
type Transition struct {
	RunID string
	Mode  Mode
	From  State
	To    State
	At    time.Time
	// Err and Raw are set when To is StateFailed
	Err error
	Raw string
}

// Recorder receives every state transition. Recording failures are logged
// and never fail a run.
type Recorder interface {
	Record(ctx context.Context, t Transition) error
}

// Input is one document to optimize.
type Input struct {
	Document    []byte
	Role        string
	Description string
}

// Result is the outcome of a successful run.
type Result struct {
	RunID    string
	Document []byte
	Analysis Analysis
	Filename string
	// Patch holds patch-mode statistics
	Patch PatchStats
	// Build holds tree-mode omissions
	Build BuildReport
}

// Pipeline owns the extract, rewrite and reconstruct stages. It is safe for
// concurrent use; each run keeps its own state.
type Pipeline struct {
	cfg      Config
	rewriter Rewriter
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder attaches a transition recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline. cfg may be nil for defaults.
func New(cfg *Config, rw Rewriter, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if rw == nil {
		return nil, errors.New("rewriter is required")
	}
	p := &Pipeline{cfg: *cfg, rewriter: rw, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Optimize runs one document through a fresh run.
func (p *Pipeline) Optimize(ctx context.Context, in Input) (*Result, error) {
	return p.NewRun().Execute(ctx, in)
}

// NewRun allocates a run with its own identifier and state.
func (p *Pipeline) NewRun() *Run {
	id := uuid.NewString()
	return &Run{
		ID:     id,
		mode:   p.cfg.Mode,
		p:      p,
		logger: p.logger.With("run_id", id, "mode", string(p.cfg.Mode)),
	}
}

// Run is a single extract, rewrite and reconstruct cycle. Everything it
// extracts (index, tree, images) belongs to it alone.
type Run struct {
	ID string

	mode   Mode
	p      *Pipeline
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	started bool

	pkg    *Package
	index  *Index
	tree   *Tree
	images ImageTable
}

// State returns the current state of the run.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Execute drives the run to Done or Failed. A run executes once. On failure
// no output is produced and the input is left untouched.
func (r *Run) Execute(ctx context.Context, in Input) (*Result, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, fmt.Errorf("run %s already executed", r.ID)
	}
	r.started = true
	r.mu.Unlock()

	payload, err := r.extract(in.Document)
	if err != nil {
		return nil, r.fail(ctx, StageExtract, err, "")
	}
	r.transition(ctx, StateExtracted)

	raw, err := r.rewrite(ctx, RewriteRequest{Mode: r.mode, Payload: payload, Role: in.Role, Description: in.Description})
	if err != nil {
		return nil, r.fail(ctx, StageRewrite, err, "")
	}
	r.transition(ctx, StateRewritten)

	result, err := r.reconstruct(raw)
	if err != nil {
		return nil, r.fail(ctx, StageReconstruct, err, raw)
	}
	r.transition(ctx, StateReconstructed)

	result.RunID = r.ID
	result.Filename = SuggestedFilename(in.Role)
	r.transition(ctx, StateDone)
	r.release()
	return result, nil
}

func (r *Run) extract(document []byte) (string, error) {
	if limit := r.p.cfg.MaxDocumentBytes(); int64(len(document)) > limit {
		return "", newMalformed("input", "", fmt.Sprintf("document is %d bytes, limit is %d", len(document), limit))
	}
	pkg, err := OpenPackage(document)
	if err != nil {
		return "", err
	}
	r.pkg = pkg

	switch r.mode {
	case ModePatch:
		idx, err := IndexPackage(pkg)
		if err != nil {
			return "", err
		}
		r.index = idx
		r.logger.Debug("document indexed", "entries", idx.Len())
		return envelopePayload(idx)
	case ModeTree:
		tree, images, err := ReadTree(pkg)
		if err != nil {
			return "", err
		}
		r.tree, r.images = tree, images
		r.logger.Debug("document extracted", "nodes", len(tree.Nodes), "images", len(images))
		data, err := MarshalTree(tree)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported mode %q", r.mode)
}

func (r *Run) rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	if timeout := r.p.cfg.RewriteTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := r.p.rewriter.Rewrite(ctx, req)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRewrite, err)
	}
	r.logger.Info("rewrite complete", "duration", time.Since(start), "bytes", len(raw))
	return raw, nil
}

func (r *Run) reconstruct(raw string) (*Result, error) {
	switch r.mode {
	case ModePatch:
		patches, analysis, err := ParseEnvelope(raw)
		if err != nil {
			return nil, err
		}
		doc, stats, err := ApplyPatches(r.pkg, r.index, patches)
		if err != nil {
			return nil, err
		}
		if stats.Ignored > 0 {
			r.logger.Warn("ignored patches with unknown addresses", "ignored", stats.Ignored)
		}
		return &Result{Document: doc, Analysis: analysis, Patch: stats}, nil
	case ModeTree:
		returned, analysis, err := ParseMarkup(raw)
		if err != nil {
			return nil, err
		}
		tree, err := MergeTree(r.tree, returned)
		if err != nil {
			return nil, err
		}
		doc, report, err := BuildDocument(tree, r.images, BuildOptions{Base: r.pkg, Logger: r.logger})
		if err != nil {
			return nil, err
		}
		return &Result{Document: doc, Analysis: analysis, Build: report}, nil
	}
	return nil, fmt.Errorf("unsupported mode %q", r.mode)
}

func (r *Run) transition(ctx context.Context, to State) {
	r.record(ctx, to, nil, "")
}

func (r *Run) fail(ctx context.Context, stage Stage, cause error, raw string) error {
	se := &StageError{RunID: r.ID, Stage: stage, Kind: kindOf(cause), Cause: cause}
	if errors.Is(cause, ErrInvalidResponse) {
		se.Raw = raw
	}
	r.logger.Error("run failed", "stage", string(stage), "error", cause)
	r.record(ctx, StateFailed, se, se.Raw)
	r.release()
	return se
}

func (r *Run) record(ctx context.Context, to State, err error, raw string) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()

	r.logger.Debug("state transition", "from", from.String(), "to", to.String())
	if r.p.recorder == nil {
		return
	}
	t := Transition{RunID: r.ID, Mode: r.mode, From: from, To: to, At: time.Now().UTC(), Err: err, Raw: raw}
	if rerr := r.p.recorder.Record(context.WithoutCancel(ctx), t); rerr != nil {
		r.logger.Warn("failed to record transition", "to", to.String(), "error", rerr)
	}
}

// release drops the per-run arena once the run is finished.
func (r *Run) release() {
	r.pkg, r.index, r.tree, r.images = nil, nil, nil, nil
}

func kindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidResponse, ErrStaleIndex, ErrRewrite, ErrMalformed} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Extraction is the rewriter payload of a document without the rewrite step.
type Extraction struct {
	Mode    Mode
	Payload string
	Entries []Entry
	Tree    *Tree
	Images  ImageTable
}

// Extract runs only the extraction stage.
func (p *Pipeline) Extract(document []byte) (*Extraction, error) {
	r := p.NewRun()
	payload, err := r.extract(document)
	if err != nil {
		return nil, &StageError{RunID: r.ID, Stage: StageExtract, Kind: kindOf(err), Cause: err}
	}
	ex := &Extraction{Mode: r.mode, Payload: payload, Tree: r.tree, Images: r.images}
	if r.index != nil {
		ex.Entries = r.index.Entries
	}
	return ex, nil
}

// SuggestedFilename names the optimized document after the job role.
func SuggestedFilename(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		role = "Optimized"
	}
	role = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(role)
	return "Optimized_Resume_" + role + ".docx"
}
