package gallery

import "errors"

// Outcome is the variant of a mutation Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeValidationFailure
	OutcomeOperationFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationFailure:
		return "validation_failure"
	case OutcomeOperationFailure:
		return "operation_failure"
	default:
		return "unknown"
	}
}

// Kind classifies a failed mutation.
type Kind string

const (
	KindNone          Kind = ""
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindExternalStore Kind = "external_store"
	KindRecordStore   Kind = "record_store"
)

// Stage is the terminal state a mutation reached.
type Stage string

const (
	StageRejected       Stage = "rejected"
	StageExternalFailed Stage = "external_failed"
	StageRecordFailed   Stage = "record_failed"
	StageCommitted      Stage = "committed"
)

// Result is returned by every mutation. Exactly one of the variants applies:
// Success carries the record and an optional RedirectTo, ValidationFailure
// carries Errors, OperationFailure carries Message and the underlying Err.
type Result struct {
	Outcome    Outcome
	Kind       Kind
	Stage      Stage
	Upload     *Upload
	RedirectTo string
	Errors     map[string][]string
	Message    string
	Err        error
}

// OK reports whether the mutation committed.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

func succeeded(upload *Upload, redirectTo string) Result {
	return Result{
		Outcome:    OutcomeSuccess,
		Stage:      StageCommitted,
		Upload:     upload,
		RedirectTo: redirectTo,
	}
}

func rejected(err error) Result {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return Result{
			Outcome: OutcomeValidationFailure,
			Kind:    KindValidation,
			Stage:   StageRejected,
			Errors:  verr.Fields,
			Err:     err,
		}
	}
	return Result{
		Outcome: OutcomeValidationFailure,
		Kind:    KindValidation,
		Stage:   StageRejected,
		Errors:  map[string][]string{"form": {err.Error()}},
		Err:     err,
	}
}

func failed(kind Kind, stage Stage, message string, err error) Result {
	return Result{
		Outcome: OutcomeOperationFailure,
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}
