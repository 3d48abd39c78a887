package pipeline

// Action is the branch of the decision matrix taken for one unit.
type Action string

const (
	ActionConfirm        Action = "confirm"
	ActionConfirmOffline Action = "confirm-offline"
	ActionMaterialize    Action = "materialize"
	ActionBackfill       Action = "backfill"
	ActionFullResolution Action = "full-resolution"
)

// StoreState is what the orchestrator found in the two stores for a key.
type StoreState struct {
	Record          bool
	RecordInLibrary bool
	File            bool
}

// Decide maps store presence onto an action. A deep refresh always resolves
// from the providers.
//
//	record          file     action
//	present online  present  confirm
//	present offline present  confirm (record marked in library)
//	present         absent   materialize files from the record
//	absent          present  backfill the record from files
//	absent          absent   full resolution
func Decide(state StoreState, deep bool) Action {
	switch {
	case deep:
		return ActionFullResolution
	case state.Record && state.File && state.RecordInLibrary:
		return ActionConfirm
	case state.Record && state.File:
		return ActionConfirmOffline
	case state.Record:
		return ActionMaterialize
	case state.File:
		return ActionBackfill
	default:
		return ActionFullResolution
	}
}

// CallsProviders reports whether the action may reach metadata providers.
func (a Action) CallsProviders() bool {
	return a == ActionFullResolution
}

// WritesData reports whether the action ends with the quality gate.
func (a Action) WritesData() bool {
	switch a {
	case ActionMaterialize, ActionBackfill, ActionFullResolution:
		return true
	}
	return false
}
