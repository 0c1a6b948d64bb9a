package orchestrator

import (
	"errors"
	"fmt"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/normalize"
	"github.com/zen-systems/fieldscore/pkg/prompt"
	"github.com/zen-systems/fieldscore/pkg/router"
)

// InputError reports a caller mistake detected before any provider call.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputErrorf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// codeFor maps an internal error onto its envelope code.
func codeFor(err error) envelope.Code {
	var inputErr *InputError
	var unknownChoice *router.UnknownChoiceError
	var templateErr *prompt.TemplateError
	switch {
	case errors.As(err, &inputErr), errors.As(err, &unknownChoice):
		return envelope.CodeInput
	case errors.As(err, &templateErr):
		return envelope.CodeInternal
	case errors.Is(err, normalize.ErrNoJSON), errors.Is(err, normalize.ErrNoAnswers):
		return envelope.CodeMalformed
	case errors.Is(err, normalize.ErrValidation):
		return envelope.CodeValidate
	}

	switch adapter.KindOf(err) {
	case adapter.KindConfig:
		return envelope.CodeConfig
	case adapter.KindAuth:
		return envelope.CodeAuth
	case adapter.KindQuota:
		return envelope.CodeQuota
	case adapter.KindMalformed:
		return envelope.CodeMalformed
	case adapter.KindNetwork:
		return envelope.CodeTransport
	}
	if adapter.IsQuota(err) {
		return envelope.CodeQuota
	}
	return envelope.CodeTransport
}

// failure builds the failure envelope for err. A PartialError contributes
// its partial object.
func failure(err error, raw string) *envelope.Envelope {
	env := envelope.Failure(codeFor(err), err.Error())
	if raw != "" {
		env.WithRaw(raw)
	}
	var partial *normalize.PartialError
	if errors.As(err, &partial) {
		env.WithPartial(partial.Partial)
	}
	return env
}
