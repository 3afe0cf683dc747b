package koth

import (
	"context"
	"encoding/json"
	"log"

	"kothmode/internal/protocol"
)

// MatchEvent is one state-machine transition, fed to the event log and the
// match index.
type MatchEvent struct {
	Tick       int64  `json:"tick"`
	Kind       string `json:"kind"`
	AllianceID int32  `json:"alliance_id"`
}

// Event kinds.
const (
	EventCrowned    = "crowned"
	EventDethroned  = "dethroned"
	EventEliminated = "eliminated"
	EventWin        = "win"
)

// EventSink receives match events. Implemented in internal/persistence/*.
type EventSink interface {
	WriteEvent(e MatchEvent) error
}

// ResultSink is optionally implemented by sinks that record the final
// outcome (winner plus the possession table).
type ResultSink interface {
	RecordResult(winner int32, endTick int64, possession map[int32]int64)
}

// BuildCheckReq pairs a build admission request with its reply channel.
type BuildCheckReq struct {
	Msg  protocol.BuildCheckMsg
	Resp chan protocol.BuildVerdictMsg
}

// DamageCheckReq pairs a pre-damage request with its reply channel.
type DamageCheckReq struct {
	Msg  protocol.DamageCheckMsg
	Resp chan protocol.DamageVerdictMsg
}

type observerJoinReq struct {
	id   string
	out  chan []byte
	resp chan protocol.WelcomeMsg
}

type engineAttachReq struct {
	out chan []byte
}

type configureReq struct {
	hello protocol.HelloMsg
	resp  chan protocol.WelcomeMsg
}

// Engine owns the match and is the only goroutine that touches it.
// Transports feed it through channels; each frame applies queued lifecycle
// events first, then evaluates the state machine on cadence ticks, then
// publishes changed state to observers.
type Engine struct {
	match  *Match
	cfg    Config
	logger *log.Logger
	sinks  []EventSink

	frames       chan protocol.FrameMsg
	unitEvents   chan protocol.UnitEventMsg
	teamDeaths   chan protocol.TeamDiedMsg
	buildChecks  chan BuildCheckReq
	damageChecks chan DamageCheckReq

	engineAttach chan engineAttachReq
	engineDetach chan struct{}
	configureCh  chan configureReq
	obsJoin      chan observerJoinReq
	obsLeave     chan string
	stop         chan struct{}

	host      *hostBridge
	observers map[string]*observer
	overSent  bool
}

type observer struct {
	out chan []byte
	pub *StatePublisher
}

// NewEngine builds the match with a bridged host: side effects leave as CMD
// messages on the attached engine session.
func NewEngine(opts Options, cfg Config, logger *log.Logger, sinks ...EventSink) *Engine {
	hb := newHostBridge()
	match := NewMatch(opts, cfg, hb, logger)
	e := &Engine{
		match:        match,
		cfg:          cfg,
		logger:       logger,
		host:         hb,
		observers:    map[string]*observer{},
		frames:       make(chan protocol.FrameMsg, 64),
		unitEvents:   make(chan protocol.UnitEventMsg, 256),
		teamDeaths:   make(chan protocol.TeamDiedMsg, 16),
		buildChecks:  make(chan BuildCheckReq, 64),
		damageChecks: make(chan DamageCheckReq, 256),
		engineAttach: make(chan engineAttachReq, 1),
		engineDetach: make(chan struct{}, 1),
		configureCh:  make(chan configureReq, 1),
		obsJoin:      make(chan observerJoinReq, 16),
		obsLeave:     make(chan string, 16),
		stop:         make(chan struct{}),
	}
	for _, s := range sinks {
		if s != nil {
			e.sinks = append(e.sinks, s)
		}
	}
	match.events = e.record
	return e
}

func (e *Engine) Frames() chan<- protocol.FrameMsg         { return e.frames }
func (e *Engine) UnitEvents() chan<- protocol.UnitEventMsg { return e.unitEvents }
func (e *Engine) TeamDeaths() chan<- protocol.TeamDiedMsg  { return e.teamDeaths }
func (e *Engine) BuildChecks() chan<- BuildCheckReq        { return e.buildChecks }
func (e *Engine) DamageChecks() chan<- DamageCheckReq      { return e.damageChecks }

// AttachEngine binds the single engine session's outbound channel.
func (e *Engine) AttachEngine(out chan []byte) {
	e.engineAttach <- engineAttachReq{out: out}
}

func (e *Engine) DetachEngine() {
	select {
	case e.engineDetach <- struct{}{}:
	default:
	}
}

// Configure rebuilds the match from the engine session's HELLO: its mod
// options override the config-file defaults, its map dimensions replace the
// configured ones, and its alliances are registered. Returns the WELCOME to
// send back. Called once per engine session, before any FRAME.
func (e *Engine) Configure(hello protocol.HelloMsg) protocol.WelcomeMsg {
	resp := make(chan protocol.WelcomeMsg, 1)
	e.configureCh <- configureReq{hello: hello, resp: resp}
	return <-resp
}

func (e *Engine) ObserverJoin(id string, out chan []byte) protocol.WelcomeMsg {
	resp := make(chan protocol.WelcomeMsg, 1)
	e.obsJoin <- observerJoinReq{id: id, out: out, resp: resp}
	return <-resp
}

func (e *Engine) ObserverLeave(id string) {
	e.obsLeave <- id
}

func (e *Engine) Stop() { close(e.stop) }

// Match exposes the underlying match for bootstrap responses. Read-only
// fields only; observers must not reach into live state.
func (e *Engine) Match() *Match { return e.match }

func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case req := <-e.configureCh:
			e.handleConfigure(req)
		case req := <-e.engineAttach:
			e.host.attach(req.out)
		case <-e.engineDetach:
			e.host.attach(nil)
		case req := <-e.obsJoin:
			e.handleObserverJoin(req)
		case id := <-e.obsLeave:
			delete(e.observers, id)
		case ev := <-e.unitEvents:
			e.applyUnitEvent(ev)
		case td := <-e.teamDeaths:
			e.match.OnTeamDied(td.Tick, td.TeamID, td.AllianceID)
		case req := <-e.buildChecks:
			allow := e.match.AllowBuild(req.Msg.AllianceID, req.Msg.X, req.Msg.Z, req.Msg.SizeX, req.Msg.SizeZ)
			req.Resp <- protocol.BuildVerdictMsg{Type: protocol.TypeBuildVerdict, RequestID: req.Msg.RequestID, Allow: allow}
		case req := <-e.damageChecks:
			d, i := e.match.AdjustDamage(req.Msg.VictimAlliance, req.Msg.AttackerAlliance, req.Msg.X, req.Msg.Z, req.Msg.Damage, req.Msg.Impulse)
			req.Resp <- protocol.DamageVerdictMsg{Type: protocol.TypeDamageVerdict, RequestID: req.Msg.RequestID, Damage: d, Impulse: i}
		case f := <-e.frames:
			e.stepFrame(f)
		}
	}
}

// StepFrame applies one frame synchronously. Used by Run and by tests that
// drive the engine deterministically without goroutines.
func (e *Engine) StepFrame(f protocol.FrameMsg) {
	e.stepFrame(f)
}

func (e *Engine) stepFrame(f protocol.FrameMsg) {
	e.host.setPositions(f.Units)

	cadence := e.match.opts.Cadence
	if cadence <= 0 {
		cadence = 1
	}
	if f.Tick%int64(cadence) == 0 {
		e.match.Evaluate(f.Tick)
	}
	e.publish(f.Tick)

	if over, winner := e.match.Over(); over && !e.overSent {
		e.overSent = true
		b, _ := json.Marshal(protocol.MatchOverMsg{Type: protocol.TypeMatchOver, Tick: f.Tick, AllianceID: winner})
		for _, o := range e.observers {
			trySend(o.out, b)
		}
		e.host.send(b)
		for _, s := range e.sinks {
			if rs, ok := s.(ResultSink); ok {
				rs.RecordResult(winner, f.Tick, e.match.Snapshot(f.Tick).Possession)
			}
		}
	}
}

func (e *Engine) applyUnitEvent(ev protocol.UnitEventMsg) {
	switch ev.Type {
	case protocol.TypeUnitFinished:
		if ev.Building {
			e.match.OnBuildingFinished(ev.UnitID, ev.AllianceID, ev.X, ev.Z, ev.SizeX, ev.SizeZ)
		} else {
			e.match.OnUnitFinished(ev.UnitID, ev.AllianceID, ev.DefName)
		}
	case protocol.TypeUnitGiven:
		e.match.OnUnitGiven(ev.UnitID, ev.AllianceID)
	case protocol.TypeUnitDestroyed:
		e.match.OnUnitDestroyed(ev.UnitID)
	}
}

func (e *Engine) handleConfigure(req configureReq) {
	cfg := e.cfg
	if req.hello.MapSizeX > 0 && req.hello.MapSizeZ > 0 {
		cfg.MapSizeX = req.hello.MapSizeX
		cfg.MapSizeZ = req.hello.MapSizeZ
	}
	raw := make(map[string]string, len(cfg.ModOptions)+len(req.hello.ModOptions))
	for k, v := range cfg.ModOptions {
		raw[k] = v
	}
	for _, o := range req.hello.ModOptions {
		raw[o.Key] = o.Value
	}
	opts := ParseOptions(raw, cfg.TickRateHz, e.logger)

	m := NewMatch(opts, cfg, e.host, e.logger)
	m.events = e.record
	for _, a := range req.hello.Alliances {
		m.RegisterAlliance(a.ID, a.Teams)
	}
	e.match = m
	e.cfg = cfg
	e.overSent = false

	req.resp <- e.welcome(req.hello.GameID)
}

func (e *Engine) welcome(gameID string) protocol.WelcomeMsg {
	opts := e.match.Options()
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		GameID:          gameID,
		Enabled:         opts.Enabled,
	}
	if opts.Enabled {
		w.TickCadence = opts.Cadence
		w.WinTicks = opts.WinTicks
		w.CaptureTicks = opts.CaptureTicks
		w.Hill = e.match.Hill().WireArea()
	}
	return w
}

func (e *Engine) handleObserverJoin(req observerJoinReq) {
	o := &observer{out: req.out, pub: NewStatePublisher()}
	e.observers[req.id] = o
	// A fresh publisher gates nothing, so the first publish after join
	// carries the full state.
	req.resp <- e.welcome("")
}

func (e *Engine) publish(tick int64) {
	if len(e.observers) == 0 {
		return
	}
	snap := e.match.Snapshot(tick)
	for id, o := range e.observers {
		msg, ok := o.pub.Diff(snap)
		if !ok {
			continue
		}
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if !trySend(o.out, b) {
			// Slow observer: drop the session rather than stall the match.
			delete(e.observers, id)
		}
	}
}

func (e *Engine) record(ev MatchEvent) {
	for _, s := range e.sinks {
		if err := s.WriteEvent(ev); err != nil && e.logger != nil {
			e.logger.Printf("event sink: %v", err)
		}
	}
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
