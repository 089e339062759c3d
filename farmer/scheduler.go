package farmer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plotfarm/go-farmer/common/types"
	"github.com/plotfarm/go-farmer/consensus"
	"github.com/plotfarm/go-farmer/metrics"
	"github.com/plotfarm/go-farmer/plot"
	"github.com/plotfarm/go-farmer/wire"
)

// SchedulerConfig tunes proof windows.
type SchedulerConfig struct {
	// Deadline bounds a proof window. Zero uses the signage point interval of the network.
	Deadline time.Duration `mapstructure:"deadline"`
	// SubmissionTTL is how long submitted candidates are remembered for deduplication.
	SubmissionTTL       time.Duration `mapstructure:"submission-ttl"`
	SubmissionCacheSize int           `mapstructure:"submission-cache-size"`
	InboxSize           int           `mapstructure:"inbox-size"`
	// SubSlotHistory is the number of sub-slots whose signage points are remembered.
	// A remembered signage point, or any point of an older sub-slot, is never
	// dispatched again.
	SubSlotHistory int `mapstructure:"sub-slot-history"`
}

func (cfg *SchedulerConfig) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddDuration("deadline", cfg.Deadline)
	encoder.AddDuration("submission ttl", cfg.SubmissionTTL)
	encoder.AddInt("submission cache size", cfg.SubmissionCacheSize)
	encoder.AddInt("inbox size", cfg.InboxSize)
	encoder.AddInt("sub-slot history", cfg.SubSlotHistory)
	return nil
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		SubmissionTTL:       10 * time.Minute,
		SubmissionCacheSize: 100_000,
		InboxSize:           1024,
		SubSlotHistory:      8,
	}
}

// Dispatcher takes candidates that passed verification and deduplication.
type Dispatcher interface {
	Dispatch(ctx context.Context, sp *types.SignagePoint, candidate *types.ProofCandidate)
}

// Broadcaster sends challenges to harvesters.
type Broadcaster interface {
	Broadcast(
		ctx context.Context,
		sp *wire.NewSignagePointHarvester,
		onProof func(uuid.UUID, *wire.NewProofOfSpace),
		onReport func(uuid.UUID, *wire.FarmingInfo, error),
	) []uuid.UUID
}

// WindowStatus is a snapshot of the current proof window.
type WindowStatus struct {
	State        types.WindowState   `json:"state"`
	SignagePoint *types.SignagePoint `json:"signage_point,omitempty"`
	Pending      int                 `json:"pending"`
	Proofs       int                 `json:"proofs"`
	Candidates   int                 `json:"candidates"`
}

type event interface{ isEvent() }

type spEvent struct {
	sp    *types.SignagePoint
	reset bool
}

type proofEvent struct {
	window uint64
	source uuid.UUID
	proof  *wire.NewProofOfSpace
}

type reportEvent struct {
	window uint64
	source uuid.UUID
	info   *wire.FarmingInfo
	err    error
}

func (spEvent) isEvent()     {}
func (proofEvent) isEvent()  {}
func (reportEvent) isEvent() {}

type spKey struct {
	challenge types.Bytes32
	index     uint8
}

type window struct {
	id         uint64
	sp         *types.SignagePoint
	state      types.WindowState
	timer      clockwork.Timer
	pending    map[uuid.UUID]struct{}
	proofs     int
	candidates int
}

// Scheduler owns the signage point state machine. Every state change happens on the Run
// goroutine; signage points, proofs and harvester reports reach it through its inbox.
type Scheduler struct {
	logger       *zap.Logger
	clock        clockwork.Clock
	constants    *consensus.Constants
	cfg          SchedulerConfig
	harvesters   Broadcaster
	dispatcher   Dispatcher
	difficulties func() []wire.PoolDifficulty

	inbox       chan event
	submissions *expirable.LRU[types.CandidateKey, struct{}]
	status      atomic.Pointer[WindowStatus]

	// loop-owned
	seen      *expirable.LRU[spKey, struct{}]
	subSlots  *expirable.LRU[types.Bytes32, struct{}]
	started   bool
	challenge types.Bytes32
	lastIndex uint8
	lastPeak  uint32
	nextID    uint64
	current   *window
}

// NewScheduler creates a scheduler. difficulties returns the pool difficulties sent to
// harvesters with every challenge.
func NewScheduler(
	logger *zap.Logger,
	clock clockwork.Clock,
	constants *consensus.Constants,
	cfg SchedulerConfig,
	harvesters Broadcaster,
	dispatcher Dispatcher,
	difficulties func() []wire.PoolDifficulty,
) *Scheduler {
	if cfg.Deadline == 0 {
		cfg.Deadline = constants.SPInterval()
	}
	history := max(cfg.SubSlotHistory, 1)
	historyTTL := time.Duration(history) * constants.SubSlotTimeTarget
	s := &Scheduler{
		logger:       logger,
		clock:        clock,
		constants:    constants,
		cfg:          cfg,
		harvesters:   harvesters,
		dispatcher:   dispatcher,
		difficulties: difficulties,
		inbox:        make(chan event, max(cfg.InboxSize, 1)),
		submissions: expirable.NewLRU[types.CandidateKey, struct{}](
			max(cfg.SubmissionCacheSize, 1), nil, cfg.SubmissionTTL),
		seen: expirable.NewLRU[spKey, struct{}](
			history*int(max(constants.NumSPsSubSlot, 1)), nil, historyTTL),
		subSlots: expirable.NewLRU[types.Bytes32, struct{}](history, nil, historyTTL),
	}
	s.status.Store(&WindowStatus{State: types.WindowIdle})
	return s
}

// Status returns the current window snapshot.
func (s *Scheduler) Status() WindowStatus {
	return *s.status.Load()
}

func (s *Scheduler) post(ctx context.Context, ev event) {
	select {
	case s.inbox <- ev:
	case <-ctx.Done():
	}
}

// NewSignagePoint queues a signage point. Reset marks a sub-slot transition or a fresh
// full node connection as seen by the caller. It is informational: a signage point the
// scheduler already accepted, or one older than the current sub-slot, is dropped either way.
func (s *Scheduler) NewSignagePoint(ctx context.Context, sp *types.SignagePoint, reset bool) {
	s.post(ctx, spEvent{sp: sp, reset: reset})
}

// Run processes events until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", zap.Inline(&s.cfg))
	for {
		var deadline <-chan time.Time
		if w := s.current; w != nil && w.state == types.WindowAwaitingProofs {
			deadline = w.timer.Chan()
		}
		select {
		case <-ctx.Done():
			if w := s.current; w != nil && w.timer != nil {
				w.timer.Stop()
			}
			return nil
		case ev := <-s.inbox:
			switch ev := ev.(type) {
			case spEvent:
				s.onSignagePoint(ctx, ev.sp, ev.reset)
			case proofEvent:
				s.onProof(ctx, ev)
			case reportEvent:
				s.onReport(ev)
			}
		case <-deadline:
			s.close(types.WindowExpired, "deadline")
		}
		s.publish()
	}
}

func (s *Scheduler) publish() {
	w := s.current
	if w == nil {
		return
	}
	sp := *w.sp
	s.status.Store(&WindowStatus{
		State:        w.state,
		SignagePoint: &sp,
		Pending:      len(w.pending),
		Proofs:       w.proofs,
		Candidates:   w.candidates,
	})
}

// stale returns why sp must not open a window, or an empty string when it may.
func (s *Scheduler) stale(sp *types.SignagePoint) string {
	if s.seen.Contains(spKey{challenge: sp.ChallengeHash, index: sp.Index}) {
		return "duplicate"
	}
	if !s.started {
		return ""
	}
	if sp.ChallengeHash == s.challenge {
		if sp.Index < s.lastIndex {
			return "behind current sub-slot"
		}
		return ""
	}
	switch {
	case s.subSlots.Contains(sp.ChallengeHash):
		return "older sub-slot"
	case sp.PeakHeight < s.lastPeak:
		return "older peak"
	case sp.Index > 0 && sp.Index <= s.lastIndex && s.live():
		// a new sub-slot opens at index 0, or past a gap once the current window is gone
		return "out of order sub-slot"
	}
	return ""
}

func (s *Scheduler) live() bool {
	return s.current != nil && s.current.state == types.WindowAwaitingProofs
}

func (s *Scheduler) onSignagePoint(ctx context.Context, sp *types.SignagePoint, reset bool) {
	if reason := s.stale(sp); reason != "" {
		signagePoints.WithLabelValues("stale").Inc()
		s.logger.Debug("ignoring stale signage point",
			zap.Inline(sp),
			zap.String("reason", reason),
			zap.Bool("reset", reset),
			zap.Uint8("last_index", s.lastIndex),
		)
		return
	}
	signagePoints.WithLabelValues("accepted").Inc()
	if s.live() {
		s.close(types.WindowExpired, "superseded")
	}
	if s.started && sp.ChallengeHash != s.challenge {
		s.subSlots.Add(s.challenge, struct{}{})
	}
	s.seen.Add(spKey{challenge: sp.ChallengeHash, index: sp.Index}, struct{}{})
	s.started = true
	s.challenge = sp.ChallengeHash
	s.lastIndex = sp.Index
	s.lastPeak = max(s.lastPeak, sp.PeakHeight)

	if sp.Received.IsZero() {
		sp.Received = s.clock.Now()
	}
	sp.Deadline = sp.Received.Add(s.cfg.Deadline)
	s.nextID++
	w := &window{
		id:      s.nextID,
		sp:      sp,
		state:   types.WindowAwaitingProofs,
		timer:   s.clock.NewTimer(max(sp.Deadline.Sub(s.clock.Now()), 0)),
		pending: make(map[uuid.UUID]struct{}),
	}
	s.current = w

	msg := &wire.NewSignagePointHarvester{
		ChallengeHash:    sp.ChallengeHash,
		SPHash:           sp.SPHash(),
		Index:            sp.Index,
		Difficulty:       sp.Difficulty,
		SubSlotIters:     sp.SubSlotIters,
		FilterPrefixBits: s.constants.PrefixBits(sp.PeakHeight),
		PeakHeight:       sp.PeakHeight,
		PoolDifficulties: s.difficulties(),
	}
	id := w.id
	sources := s.harvesters.Broadcast(ctx, msg,
		func(src uuid.UUID, proof *wire.NewProofOfSpace) {
			s.post(ctx, proofEvent{window: id, source: src, proof: proof})
		},
		func(src uuid.UUID, info *wire.FarmingInfo, err error) {
			s.post(ctx, reportEvent{window: id, source: src, info: info, err: err})
		},
	)
	for _, src := range sources {
		w.pending[src] = struct{}{}
	}
	s.logger.Info("new signage point",
		zap.Inline(sp),
		zap.Bool("reset", reset),
		zap.Int("harvesters", len(sources)),
		zap.Time("deadline", sp.Deadline),
	)
	if len(sources) == 0 {
		s.close(types.WindowSubmitted, "no harvesters")
	}
}

func (s *Scheduler) onProof(ctx context.Context, ev proofEvent) {
	w := s.current
	if w == nil || w.id != ev.window || w.state != types.WindowAwaitingProofs {
		candidates.WithLabelValues("late").Inc()
		s.logger.Debug("ignoring late proof",
			zap.Uint8("index", ev.proof.Index),
			zap.Stringer("plot_id", ev.proof.PlotID),
			zap.Stringer("harvester", ev.source),
		)
		return
	}
	w.proofs++
	sp := w.sp
	if ev.proof.SPHash != sp.SPHash() || ev.proof.Index != sp.Index || ev.proof.ChallengeHash != sp.ChallengeHash {
		candidates.WithLabelValues("mismatch").Inc()
		s.logger.Warn("proof does not match the signage point",
			zap.Uint8("index", ev.proof.Index),
			zap.Stringer("harvester", ev.source),
		)
		return
	}
	plotID, quality, err := plot.VerifyProofOfSpace(&ev.proof.Proof, sp.ChallengeHash, sp.SPHash())
	if err == nil && plotID != ev.proof.PlotID {
		err = plot.ErrInvalidProof
	}
	if err != nil {
		candidates.WithLabelValues("invalid").Inc()
		s.logger.Warn("invalid proof of space",
			zap.Stringer("plot_id", ev.proof.PlotID),
			zap.Stringer("harvester", ev.source),
			zap.Error(errors.Join(types.ErrCryptoValidation, err)),
		)
		return
	}
	candidate := &types.ProofCandidate{
		PlotID:            plotID,
		SignagePointIndex: sp.Index,
		SPHash:            sp.SPHash(),
		ChallengeHash:     sp.ChallengeHash,
		QualityString:     quality,
		RequiredIters: consensus.RequiredIters(
			s.constants, quality, ev.proof.Proof.Size, sp.Difficulty, sp.SPHash()),
		Proof:       ev.proof.Proof,
		HarvesterID: ev.source,
	}
	key := candidate.Key()
	if s.submissions.Contains(key) {
		candidates.WithLabelValues("duplicate").Inc()
		s.logger.Debug("dropping duplicate candidate", zap.Inline(candidate))
		return
	}
	s.submissions.Add(key, struct{}{})
	w.candidates++
	candidates.WithLabelValues("dispatched").Inc()
	spCopy := *sp
	s.dispatcher.Dispatch(ctx, &spCopy, candidate)
}

func (s *Scheduler) onReport(ev reportEvent) {
	w := s.current
	if w == nil || w.id != ev.window || w.state != types.WindowAwaitingProofs {
		s.logger.Debug("ignoring late harvester report", zap.Stringer("harvester", ev.source), zap.Error(ev.err))
		return
	}
	if _, ok := w.pending[ev.source]; !ok {
		return
	}
	delete(w.pending, ev.source)
	switch {
	case ev.err != nil:
		s.logger.Warn("harvester failed to evaluate signage point",
			zap.Stringer("harvester", ev.source),
			zap.Uint8("index", w.sp.Index),
			zap.Error(ev.err),
		)
	case ev.info != nil:
		latency := s.clock.Since(w.sp.Received)
		metrics.ReportProofLatency(ev.source.String(), latency)
		s.logger.Debug("harvester reported",
			zap.Stringer("harvester", ev.source),
			zap.Uint8("index", ev.info.Index),
			zap.Uint32("plots", ev.info.TotalPlots),
			zap.Uint32("passed_filter", ev.info.PassedFilter),
			zap.Uint32("proofs", ev.info.Proofs),
			zap.Uint32("errors", ev.info.Errors),
			zap.Duration("latency", latency),
		)
	}
	if len(w.pending) == 0 {
		s.close(types.WindowSubmitted, "all harvesters reported")
	}
}

func (s *Scheduler) close(state types.WindowState, reason string) {
	w := s.current
	w.state = state
	w.timer.Stop()
	windows.WithLabelValues(state.String()).Inc()
	log := s.logger.Debug
	if state == types.WindowExpired && len(w.pending) > 0 {
		log = s.logger.Info
	}
	log("proof window closed",
		zap.Uint8("index", w.sp.Index),
		zap.Stringer("state", state),
		zap.String("reason", reason),
		zap.Int("pending", len(w.pending)),
		zap.Int("proofs", w.proofs),
		zap.Int("candidates", w.candidates),
	)
}
