package playlist

// FeedServer identifies a feed endpoint a playlist can be published to.
type FeedServer struct {
	Name    string `json:"name,omitempty" mapstructure:"name"`
	BaseURL string `json:"baseUrl" mapstructure:"base_url"`
	APIKey  string `json:"apiKey,omitempty" mapstructure:"api_key"`
}

// Settings captures the per-request playlist parameters. A Settings value is
// created once per resolved request and is immutable once handed to the
// orchestrator.
type Settings struct {
	Title           string      `json:"title,omitempty"`
	Slug            string      `json:"slug,omitempty"`
	DurationPerItem int         `json:"durationPerItem"`
	PreserveOrder   bool        `json:"preserveOrder"`
	DeviceName      string      `json:"deviceName,omitempty"`
	FeedServer      *FeedServer `json:"feedServer,omitempty"`
}

// Defaults are the configuration-supplied fallbacks applied when the model
// omits a settings field.
type Defaults struct {
	DurationPerItem int  `mapstructure:"duration"`
	PreserveOrder   bool `mapstructure:"preserve_order"`
}

// ApplyDefaults fills unset fields from configuration defaults.
func (s *Settings) ApplyDefaults(d Defaults) {
	if s.DurationPerItem <= 0 {
		if d.DurationPerItem > 0 {
			s.DurationPerItem = d.DurationPerItem
		} else {
			s.DurationPerItem = 30
		}
	}
}
