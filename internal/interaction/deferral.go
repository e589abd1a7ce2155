package interaction

import (
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/wizard"
)

// Deferral tells the transport to acknowledge an interaction before Handle
// runs, because answering it takes several platform calls. Ephemeral only
// matters for commands, whose acknowledgement is a visible placeholder.
type Deferral struct {
	Defer     bool
	Ephemeral bool
}

// Defer reports how req should be acknowledged. Requests that may answer
// with a form are never deferred.
func (r *Router) Defer(req Request) Deferral {
	switch req.Kind {
	case KindCommand:
		switch req.Token {
		case CommandSetup, CommandReset, CommandTeardown, CommandClose:
			return Deferral{Defer: true, Ephemeral: true}
		case CommandRename:
			return Deferral{Defer: true}
		}
	case KindModalSubmit:
		if wizard.IsWizardToken(req.Token) {
			return Deferral{Defer: true}
		}
		if ctl, ok := service.ParseControl(req.Token); ok && ctl.Kind == service.ControlCloseSubmit {
			return Deferral{Defer: true}
		}
	case KindComponent:
		ctl, ok := service.ParseControl(req.Token)
		if !ok {
			return Deferral{}
		}
		switch ctl.Kind {
		case service.ControlTranscript, service.ControlTranscriptSave, service.ControlReopen, service.ControlDelete:
			return Deferral{Defer: true}
		}
	}
	return Deferral{}
}
