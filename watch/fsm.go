package watch

import (
	"context"

	"github.com/looplab/fsm"
)

// Watcher states.
const (
	StateIdle = "idle"

	// fast mode
	StatePolling        = "polling"
	StateBalanceChanged = "balance_changed"
	StateUnchanged      = "unchanged"

	// full mode
	StateWatchingHistory = "watching_history"
	StateCandidateFound  = "candidate_found"
	StateFetchingProof   = "fetching_proof"
	StateVerifying       = "verifying"
	StateConfirmed       = "confirmed"
	StateRejected        = "rejected"
)

// Watcher events.
const (
	eventStart = "start"
	eventStop  = "stop"

	eventChanged   = "changed"
	eventUnchanged = "unchanged"
	eventPoll      = "poll"

	eventCandidate = "candidate"
	eventFetch     = "fetch"
	eventVerify    = "verify"
	eventConfirm   = "confirm"
	eventReject    = "reject"
	eventResume    = "resume"
)

// newFastFSM builds the fast mode machine:
//
//	idle -> polling -> (balance_changed | unchanged) -> polling
func newFastFSM(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StatePolling},
			{Name: eventChanged, Src: []string{StatePolling}, Dst: StateBalanceChanged},
			{Name: eventUnchanged, Src: []string{StatePolling}, Dst: StateUnchanged},
			{Name: eventPoll, Src: []string{StateBalanceChanged, StateUnchanged}, Dst: StatePolling},
			{
				Name: eventStop,
				Src:  []string{StatePolling, StateBalanceChanged, StateUnchanged},
				Dst:  StateIdle,
			},
		},
		callbacks,
	)
}

// newFullFSM builds the full mode machine:
//
//	idle -> watching_history -> candidate_found -> fetching_proof ->
//	verifying -> (confirmed | rejected) -> watching_history
//
// A candidate whose header or proof cannot be fetched resumes watching
// from where it stopped and stays pending.
func newFullFSM(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateWatchingHistory},
			{Name: eventCandidate, Src: []string{StateWatchingHistory}, Dst: StateCandidateFound},
			{Name: eventFetch, Src: []string{StateCandidateFound}, Dst: StateFetchingProof},
			{Name: eventVerify, Src: []string{StateFetchingProof}, Dst: StateVerifying},
			{Name: eventConfirm, Src: []string{StateVerifying}, Dst: StateConfirmed},
			{Name: eventReject, Src: []string{StateVerifying}, Dst: StateRejected},
			{
				Name: eventResume,
				Src: []string{
					StateCandidateFound,
					StateFetchingProof,
					StateVerifying,
					StateConfirmed,
					StateRejected,
				},
				Dst: StateWatchingHistory,
			},
			{
				Name: eventStop,
				Src: []string{
					StateWatchingHistory,
					StateCandidateFound,
					StateFetchingProof,
					StateVerifying,
					StateConfirmed,
					StateRejected,
				},
				Dst: StateIdle,
			},
		},
		callbacks,
	)
}

// fire moves the machine. Transitions must complete even after ctx is
// cancelled so the watcher always settles back in a resting state.
func (w *Watcher) fire(ctx context.Context, event string) {
	if err := w.machine.Event(context.WithoutCancel(ctx), event); err != nil {
		w.log.Errorf("%s: event %q in state %q: %v", w.name, event, w.machine.Current(), err)
	}
}
