package eventsourcing

// Decider splits command handling into two pure functions over a state S:
// Decide turns a command into the events it causes, Evolve folds one event
// into the state. InitialState is the state of a stream with no events.
//
// The same Evolve is used for live decisions and for replaying history.
//
// Example Usage:
//
//	var carts = Decider[Cart, CartCommand, CartEvent]{
//	    Decide:       decideCart,
//	    Evolve:       evolveCart,
//	    InitialState: func() Cart { return Cart{Status: CartEmpty} },
//	}
type Decider[S, C, E any] struct {
	// Decide returns the events caused by command given state, or an error
	// when the command breaks a business rule.
	Decide func(command C, state S) ([]E, error)

	// Evolve returns the state with event applied. It must ignore events it
	// does not know.
	Evolve func(state S, event E) S

	InitialState func() S
}

// Fold evolves the initial state through events.
func (d Decider[S, C, E]) Fold(events ...E) S {
	state := d.InitialState()
	for _, event := range events {
		state = d.Evolve(state, event)
	}
	return state
}

// Run decides command against state and returns the events together with
// the resulting state.
func (d Decider[S, C, E]) Run(state S, command C) (S, []E, error) {
	events, err := d.Decide(command, state)
	if err != nil {
		return state, nil, err
	}
	for _, event := range events {
		state = d.Evolve(state, event)
	}
	return state, events, nil
}
