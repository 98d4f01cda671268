package domain

// Failure codes lead the error_message of a failed evaluation so jobs can be
// grouped without parsing prose.
const (
	FailureSchemaInvalid     = "SCHEMA_INVALID"
	FailureUpstreamRateLimit = "UPSTREAM_RATE_LIMIT"
	FailureUpstreamTimeout   = "UPSTREAM_TIMEOUT"
	FailureUpstreamError     = "UPSTREAM_ERROR"
	FailureFileUnavailable   = "FILE_UNAVAILABLE"
	FailureInvalidArgument   = "INVALID_ARGUMENT"
	FailureDispatch          = "DISPATCH_FAILED"
	FailureStuck             = "STUCK"
	FailureInternal          = "INTERNAL"
)

var failureMessages = map[string]string{
	FailureSchemaInvalid:     "The AI response could not be read. Please try again.",
	FailureUpstreamRateLimit: "The AI service is busy. Please try again later.",
	FailureUpstreamTimeout:   "The AI service took too long to respond. Please try again.",
	FailureUpstreamError:     "The AI service could not evaluate this answer. Please try again.",
	FailureFileUnavailable:   "None of the answer files could be read.",
	FailureInvalidArgument:   "The answer files are in a format that cannot be evaluated.",
	FailureDispatch:          "The evaluation could not be queued. Please try again.",
	FailureStuck:             "The evaluation took too long and was stopped. Please try again.",
	FailureInternal:          "Something went wrong while evaluating this answer.",
}

// FailureReason is the error_message stored for code. It is shown to the
// student, so it never carries the underlying error; that stays in logs.
func FailureReason(code string) string {
	msg, ok := failureMessages[code]
	if !ok {
		code, msg = FailureInternal, failureMessages[FailureInternal]
	}
	return code + ": " + msg
}
