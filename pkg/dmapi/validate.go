package dmapi

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
)

var (
	required = validation.Required

	// pathRules check a path within a project, relative to its root.
	pathRules = []validation.Rule{
		validation.Required,
		validation.Match(regexp.MustCompile(`^/`)).Error("must begin with /"),
	}
)

type argCheck struct {
	name  string
	value interface{}
	rules []validation.Rule
}

func arg(name string, value interface{}, rules ...validation.Rule) argCheck {
	return argCheck{name: name, value: value, rules: rules}
}

// checkArgs validates operation arguments, reporting every failing argument
// at once.
func checkArgs(checks ...argCheck) *Error {
	var result *multierror.Error
	for _, c := range checks {
		if err := validation.Validate(c.value, c.rules...); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	if result == nil {
		return nil
	}

	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return newError(ErrInvalidArgument, "Invalid arguments ("+result.Error()+")")
}
