package intent

import (
	"context"

	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
)

// Terminal payload tool names. Calling one of these ends the resolution
// conversation; the resolver intercepts the call instead of executing it.
const (
	TerminalFinalizeRequirements = "finalize_requirements"
	TerminalConfirmSend          = "confirm_send"
	TerminalConfirmPublish       = "confirm_publish"
)

// finalizePayload is the terminal payload for a build intent.
type finalizePayload struct {
	Requirements    []playlist.Requirement `json:"requirements" jsonschema:"description=the acquisition requirements extracted from the request"`
	Title           string                 `json:"title,omitempty"`
	Slug            string                 `json:"slug,omitempty"`
	DurationPerItem int                    `json:"durationPerItem,omitempty" jsonschema:"description=display duration per item in seconds"`
	PreserveOrder   *bool                  `json:"preserveOrder,omitempty" jsonschema:"description=keep acquisition order instead of shuffling"`
	DeviceName      string                 `json:"deviceName,omitempty" jsonschema:"description=device to send the built playlist to"`
	FeedServer      string                 `json:"feedServer,omitempty" jsonschema:"description=feed server to publish the built playlist to"`
}

// sendPayload is the terminal payload for sending an existing playlist file.
type sendPayload struct {
	FilePath   string `json:"filePath" jsonschema:"description=path of the persisted playlist document"`
	DeviceName string `json:"deviceName,omitempty"`
}

// publishPayload is the terminal payload for publishing an existing playlist file.
type publishPayload struct {
	FilePath   string `json:"filePath" jsonschema:"description=path of the persisted playlist document"`
	FeedServer string `json:"feedServer,omitempty"`
}

// RegisterTerminalOps registers the terminal payload tools. Their handlers
// never run; the resolver parses the call arguments directly.
func RegisterTerminalOps(c *tools.Catalog) {
	finalizeDef, finalizeErr := tools.NewDefinition(TerminalFinalizeRequirements,
		"Finish intent resolution with the extracted requirement set and playlist settings. Call this once the request is fully understood.",
		func(ctx context.Context, args finalizePayload) (any, error) { return args, nil })
	mustTerminal(c, finalizeDef, finalizeErr)
	sendDef, sendErr := tools.NewDefinition(TerminalConfirmSend,
		"Finish intent resolution: the user wants an existing playlist file sent to a device.",
		func(ctx context.Context, args sendPayload) (any, error) { return args, nil })
	mustTerminal(c, sendDef, sendErr)
	publishDef, publishErr := tools.NewDefinition(TerminalConfirmPublish,
		"Finish intent resolution: the user wants an existing playlist file published to a feed server.",
		func(ctx context.Context, args publishPayload) (any, error) { return args, nil })
	mustTerminal(c, publishDef, publishErr)
}

func mustTerminal(c *tools.Catalog, def *tools.Definition, err error) {
	if err != nil {
		panic(err)
	}
	def.Terminal = true
	if err := c.Register(def); err != nil {
		panic(err)
	}
}
