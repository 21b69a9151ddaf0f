package host

import (
	"github.com/BaSui01/mtplugins/plugin"
	"github.com/BaSui01/mtplugins/plugins/qwenmt"
	"github.com/BaSui01/mtplugins/plugins/thinking"
)

// DefaultRegistry registers the bundled plugins.
func DefaultRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	r.Register(qwenmt.ID, func() plugin.Translator { return qwenmt.New() })
	r.Register(thinking.ID, func() plugin.Translator { return thinking.New() })
	return r
}
