package playout

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"
)

// State is the playout operation used for the most recent frame.
type State string

const (
	StateNormal      State = "normal"
	StateConcealment State = "concealment"
	StateAccelerate  State = "accelerate"
	StateExpand      State = "expand"
)

const (
	eventPlay       = "play"
	eventConceal    = "conceal"
	eventAccelerate = "accelerate"
	eventExpand     = "expand"
)

var allStates = []string{
	string(StateNormal),
	string(StateConcealment),
	string(StateAccelerate),
	string(StateExpand),
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

func eventFor(s State) string {
	switch s {
	case StateConcealment:
		return eventConceal
	case StateAccelerate:
		return eventAccelerate
	case StateExpand:
		return eventExpand
	default:
		return eventPlay
	}
}

// stateMachine wraps the fsm so a repeated state is not an error.
type stateMachine struct {
	fsm         *fsm.FSM
	transitions uint64
}

func newStateMachine() *stateMachine {
	m := &stateMachine{}
	m.fsm = fsm.NewFSM(
		string(StateNormal),
		fsm.Events{
			{Name: eventPlay, Src: allStates, Dst: string(StateNormal)},
			{Name: eventConceal, Src: allStates, Dst: string(StateConcealment)},
			{Name: eventAccelerate, Src: allStates, Dst: string(StateAccelerate)},
			{Name: eventExpand, Src: allStates, Dst: string(StateExpand)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.transitions++
				logrus.WithFields(logrus.Fields{
					"function": "stateMachine.enter_state",
					"from":     e.Src,
					"to":       e.Dst,
				}).Debug("Playout state changed")
			},
		},
	)
	return m
}

// enter moves the machine to s.
func (m *stateMachine) enter(s State) {
	err := m.fsm.Event(context.Background(), eventFor(s))
	if err == nil {
		return
	}
	var same fsm.NoTransitionError
	if errors.As(err, &same) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "stateMachine.enter",
		"state":    s,
		"error":    err.Error(),
	}).Error("Playout state transition failed")
}

func (m *stateMachine) current() State {
	return State(m.fsm.Current())
}

func (m *stateMachine) reset() {
	m.fsm.SetState(string(StateNormal))
	m.transitions = 0
}
