package registry

import (
	"github.com/dukex/conductor/pkg/actions/condition"
	"github.com/dukex/conductor/pkg/actions/delay"
	"github.com/dukex/conductor/pkg/actions/httprequest"
	logaction "github.com/dukex/conductor/pkg/actions/log"
	"github.com/dukex/conductor/pkg/actions/script"
	"github.com/dukex/conductor/pkg/actions/transform"
	"github.com/dukex/conductor/pkg/protocol"
)

// RegisterDefaultActions registers every built-in action type.
func (r *Registry) RegisterDefaultActions() error {
	for _, factory := range []protocol.ActionFactory{
		httprequest.NewActionFactory(),
		script.NewActionFactory(),
		condition.NewActionFactory(),
		transform.NewActionFactory(),
		logaction.NewActionFactory(),
		delay.NewActionFactory(),
	} {
		if err := r.RegisterAction(factory); err != nil {
			return err
		}
	}

	return nil
}
