package dispatcher

// Dispatch sources that do not name a plugin.
const (
	// SourceLLM marks a response generated by the language model fallback.
	SourceLLM = "llm"
	// SourceNone marks a command nothing could answer.
	SourceNone = "none"
)

// DispatchResult describes the outcome of routing one command.
type DispatchResult struct {
	// Handled reports whether a plugin or the language model produced
	// the response. A fixed apology or busy notice leaves it false.
	Handled bool

	// Response is the text to present to the user.
	Response string

	// Source names the plugin that answered, or SourceLLM for the
	// model fallback, or SourceNone when nothing could answer.
	Source string

	// Err carries the plugin or model error behind a failure response.
	// It is diagnostic only; Response is already user-presentable.
	Err error
}

// PluginResult reports a successful plugin execution.
func PluginResult(name, response string) DispatchResult {
	return DispatchResult{Handled: true, Response: response, Source: name}
}

// PluginFailure reports a plugin that matched but failed to execute.
// The response is a generic failure notice; the cause travels in Err.
func PluginFailure(name, response string, err error) DispatchResult {
	return DispatchResult{Handled: true, Response: response, Source: name, Err: err}
}

// LLMResult reports a response generated by the language model fallback.
func LLMResult(response string) DispatchResult {
	return DispatchResult{Handled: true, Response: response, Source: SourceLLM}
}

// Unhandled reports a command neither plugins nor the model could answer.
func Unhandled(response string, err error) DispatchResult {
	return DispatchResult{Handled: false, Response: response, Source: SourceNone, Err: err}
}

// Failed reports whether the result carries an underlying error.
func (r DispatchResult) Failed() bool { return r.Err != nil }

// WithResponse returns a copy of the result with the response replaced.
// Hooks use it to rewrite the presented text without touching provenance.
func (r DispatchResult) WithResponse(response string) DispatchResult {
	r.Response = response
	return r
}
