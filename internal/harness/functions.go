package harness

import (
	"fmt"

	"github.com/roach88/querylift/internal/qmodel"
)

// clientFunction is a method with no server translation that scenarios
// can call; it runs in the projector.
type clientFunction struct {
	result *qmodel.Type
	invoke func(recv any, args []any) (any, error)
}

var clientFunctions = map[string]clientFunction{
	// Fmt.Tag(x) renders x as "#x".
	"Fmt.Tag": {
		result: qmodel.String,
		invoke: func(_ any, args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("Tag takes 1 argument, got %d", len(args))
			}
			return fmt.Sprintf("#%v", args[0]), nil
		},
	},
	// Fmt.Initial(s) is the first rune of s.
	"Fmt.Initial": {
		result: qmodel.String,
		invoke: func(_ any, args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("Initial takes 1 argument, got %d", len(args))
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("Initial of %T", args[0])
			}
			for _, r := range s {
				return string(r), nil
			}
			return "", nil
		},
	},
}
