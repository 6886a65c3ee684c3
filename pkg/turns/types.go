package turns

// Block represents a single atomic unit within a Turn.
type Block struct {
	ID      string         `yaml:"id,omitempty"`
	Kind    BlockKind      `yaml:"kind"`
	Role    string         `yaml:"role,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`
	// Metadata stores arbitrary metadata about the block
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Turn contains an ordered list of Blocks and associated metadata.
// Blocks are append-only: recovery and repair paths add synthetic blocks,
// they never rewrite existing ones.
type Turn struct {
	ID     string `yaml:"id,omitempty"`
	Blocks []Block `yaml:"blocks"`
	// Metadata stores arbitrary metadata about the turn (stop reason, usage, ...)
	Metadata map[TurnMetadataKey]any `yaml:"metadata,omitempty"`
	// Data stores the application data payload associated with this turn
	Data map[TurnDataKey]any `yaml:"data,omitempty"`
}

// TurnDataKey is a typed string key for Turn.Data.
type TurnDataKey string

// TurnMetadataKey is a typed string key for Turn.Metadata.
type TurnMetadataKey string

func (k TurnDataKey) String() string     { return string(k) }
func (k TurnMetadataKey) String() string { return string(k) }

// Clone returns a deep copy of the Turn suitable for mutation without
// affecting the original. Block payloads and metadata maps are copied;
// reference-typed values inside remain shared.
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := &Turn{ID: t.ID}
	if len(t.Metadata) > 0 {
		out.Metadata = make(map[TurnMetadataKey]any, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	if len(t.Data) > 0 {
		out.Data = make(map[TurnDataKey]any, len(t.Data))
		for k, v := range t.Data {
			out.Data[k] = v
		}
	}
	if len(t.Blocks) == 0 {
		return out
	}
	out.Blocks = make([]Block, len(t.Blocks))
	for i := range t.Blocks {
		b := t.Blocks[i]
		if b.Payload != nil {
			cp := make(map[string]any, len(b.Payload))
			for k, v := range b.Payload {
				cp[k] = v
			}
			b.Payload = cp
		}
		if b.Metadata != nil {
			cp := make(map[string]any, len(b.Metadata))
			for k, v := range b.Metadata {
				cp[k] = v
			}
			b.Metadata = cp
		}
		out.Blocks[i] = b
	}
	return out
}

// SetData stores a value under key, allocating the Data map when needed.
func (t *Turn) SetData(key TurnDataKey, v any) {
	if t.Data == nil {
		t.Data = map[TurnDataKey]any{}
	}
	t.Data[key] = v
}

// SetMetadata stores a value under key, allocating the Metadata map when needed.
func (t *Turn) SetMetadata(key TurnMetadataKey, v any) {
	if t.Metadata == nil {
		t.Metadata = map[TurnMetadataKey]any{}
	}
	t.Metadata[key] = v
}

// AppendBlock appends a Block to a Turn.
func AppendBlock(t *Turn, b Block) {
	t.Blocks = append(t.Blocks, b)
}

// AppendBlocks appends multiple Blocks in order.
func AppendBlocks(t *Turn, blocks ...Block) {
	for _, b := range blocks {
		AppendBlock(t, b)
	}
}

// BlocksByKind returns blocks of the requested kinds in block order.
func BlocksByKind(t *Turn, kinds ...BlockKind) []Block {
	if t == nil {
		return nil
	}
	lookup := map[BlockKind]bool{}
	for _, k := range kinds {
		lookup[k] = true
	}
	ret := make([]Block, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		if lookup[b.Kind] {
			ret = append(ret, b)
		}
	}
	return ret
}
