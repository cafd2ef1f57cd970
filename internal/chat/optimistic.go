package chat

// applyOptimistic runs the vote-style optimistic mutation pattern: apply
// the local change immediately, issue the remote call, and restore the
// pre-mutation snapshot when the call fails. The caller captures the
// snapshot before invoking this, so apply and restore close over whatever
// state is being mutated.
//
// Reactions deliberately do NOT use this: they re-fetch after the remote
// call instead, because optimistically applied reaction state is a known
// source of duplicate and ghost reactions.
func applyOptimistic[S any](snapshot S, apply func(), restore func(S), call func() error) error {
	apply()

	if err := call(); err != nil {
		restore(snapshot)
		return err
	}

	return nil
}
