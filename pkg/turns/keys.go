package turns

// Standard keys used in Block.Payload maps
const (
	PayloadKeyText   = "text"
	PayloadKeyID     = "id"
	PayloadKeyName   = "name"
	PayloadKeyArgs   = "args"
	PayloadKeyResult = "result"
	PayloadKeyError  = "error"
)

// Turn metadata keys
const (
	// KeyStopReason records why the provider ended its response
	// (stop, tool_calls, length, malformed_tool_call, content_filter).
	KeyStopReason TurnMetadataKey = "mangiafuoco.stop_reason@v1"
	// KeyModel records the model that produced the assistant blocks of this turn.
	KeyModel TurnMetadataKey = "mangiafuoco.model@v1"
	// KeyUsage records token usage reported by the provider.
	KeyUsage TurnMetadataKey = "mangiafuoco.usage@v1"
)

// Turn data keys
const (
	// KeyToolCatalog carries the operation catalog the engine should expose
	// to the model for this turn.
	KeyToolCatalog TurnDataKey = "mangiafuoco.tool_catalog@v1"
	// KeyToolChoice carries the provider tool-choice directive (auto/none/required).
	KeyToolChoice TurnDataKey = "mangiafuoco.tool_choice@v1"
)

// Stop reasons recorded under KeyStopReason.
const (
	StopReasonStop              = "stop"
	StopReasonToolCalls         = "tool_calls"
	StopReasonLength            = "length"
	StopReasonContentFilter     = "content_filter"
	StopReasonMalformedToolCall = "malformed_tool_call"
)
