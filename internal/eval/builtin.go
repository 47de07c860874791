package eval

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Client-side implementations of string members the catalog maps to
// server functions, used when the model carries no Invoke or Get hook.
var (
	builtinMethods = map[string]func(recv any, args []any) (any, error){
		"string.ToUpper": stringMethod(0, func(s string, _ []string) (any, error) {
			return cases.Upper(language.Und).String(s), nil
		}),
		"string.ToLower": stringMethod(0, func(s string, _ []string) (any, error) {
			return cases.Lower(language.Und).String(s), nil
		}),
		"string.Trim": stringMethod(0, func(s string, _ []string) (any, error) {
			return strings.TrimSpace(s), nil
		}),
		"string.Length": stringMethod(0, func(s string, _ []string) (any, error) {
			return int64(len([]rune(s))), nil
		}),
		"string.Contains": stringMethod(1, func(s string, args []string) (any, error) {
			return strings.Contains(s, args[0]), nil
		}),
		"string.StartsWith": stringMethod(1, func(s string, args []string) (any, error) {
			return strings.HasPrefix(s, args[0]), nil
		}),
		"string.EndsWith": stringMethod(1, func(s string, args []string) (any, error) {
			return strings.HasSuffix(s, args[0]), nil
		}),
		"string.Concat": func(_ any, args []any) (any, error) {
			var sb strings.Builder
			for _, a := range args {
				sb.WriteString(stringOf(a))
			}
			return sb.String(), nil
		},
	}

	builtinMembers = map[string]func(recv any) (any, error){
		"string.Length": func(recv any) (any, error) {
			s, ok := recv.(string)
			if !ok {
				return nil, fmt.Errorf("Length of %T", recv)
			}
			return int64(len([]rune(s))), nil
		},
	}
)

// stringMethod adapts an instance method of string taking arity string
// arguments.
func stringMethod(arity int, f func(s string, args []string) (any, error)) func(any, []any) (any, error) {
	return func(recv any, args []any) (any, error) {
		s, ok := recv.(string)
		if !ok {
			return nil, fmt.Errorf("receiver is %T, not string", recv)
		}
		if len(args) != arity {
			return nil, fmt.Errorf("takes %d arguments, got %d", arity, len(args))
		}
		strs := make([]string, len(args))
		for i, a := range args {
			if a == nil {
				return nil, fmt.Errorf("argument %d is null", i)
			}
			strs[i] = stringOf(a)
		}
		return f(s, strs)
	}
}
