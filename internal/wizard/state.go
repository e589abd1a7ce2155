// Package wizard drives ticket creation from language selection through
// category and server selection to channel provisioning. No state is held
// server-side: every prompt option carries the whole path chosen so far in its
// token.
package wizard

// State is one step of the creation flow. The set of states is closed.
type State interface {
	isState()
}

// AwaitingLanguage is the entry point: nothing chosen yet.
type AwaitingLanguage struct{}

// AwaitingCategory has a language and asks for the ticket category.
type AwaitingCategory struct {
	Language string
}

// AwaitingServer has a language and category and asks for the game server.
type AwaitingServer struct {
	Language string
	Category string
}

// Completed carries the full path. FormSubmitted is set once the requester has
// filled in the category's form; until then the terminal step asks for it.
type Completed struct {
	Language      string
	Category      string
	Server        string
	FormSubmitted bool
}

func (AwaitingLanguage) isState() {}
func (AwaitingCategory) isState() {}
func (AwaitingServer) isState()   {}
func (Completed) isState()        {}
