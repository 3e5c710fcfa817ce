package engine

import (
	"fmt"

	"kvedit/internal/callback"
	"kvedit/internal/config"
)

func newPredicate(c config.CallbackCfg) (callback.Predicate, error) {
	switch c.Type {
	case "":
		// Absent predicate: process everything.
		return nil, nil
	case "cel":
		return callback.NewExprPredicate(c.Expr)
	case "script":
		return callback.ScriptPredicate{Script: callback.Script{Command: c.Command, Args: c.Args}}, nil
	default:
		return nil, fmt.Errorf("unknown callback type %q", c.Type)
	}
}

func newTransform(c config.CallbackCfg) (callback.Transform, error) {
	switch c.Type {
	case "":
		return nil, nil
	case "cel":
		return callback.NewExprTransform(c.Expr)
	case "script":
		return callback.ScriptTransform{Script: callback.Script{Command: c.Command, Args: c.Args}}, nil
	default:
		return nil, fmt.Errorf("unknown callback type %q", c.Type)
	}
}
