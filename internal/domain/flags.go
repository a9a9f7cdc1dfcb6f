package domain

const (
	FlagOn  = "on"
	FlagOff = "off"
)

// FeatureFlags toggles the scheduled jobs. Every field is "on" or "off".
type FeatureFlags struct {
	EmailEnabled   string `json:"emailEnabled"`
	CrawlerEnabled string `json:"crawlerEnabled"`
	WechatEnabled  string `json:"wechatEnabled"`
}

// DefaultFlags has every feature switched on.
func DefaultFlags() FeatureFlags {
	return FeatureFlags{
		EmailEnabled:   FlagOn,
		CrawlerEnabled: FlagOn,
		WechatEnabled:  FlagOn,
	}
}

// Email reports whether scheduled email digests are enabled.
func (f FeatureFlags) Email() bool { return f.EmailEnabled == FlagOn }

// Crawler reports whether the extraction run is enabled.
func (f FeatureFlags) Crawler() bool { return f.CrawlerEnabled == FlagOn }

// Wechat reports whether push notifications are enabled.
func (f FeatureFlags) Wechat() bool { return f.WechatEnabled == FlagOn }

// MergeDefaults fills blank fields from DefaultFlags so blobs written before a
// flag existed keep working.
func (f FeatureFlags) MergeDefaults() FeatureFlags {
	d := DefaultFlags()
	if f.EmailEnabled == "" {
		f.EmailEnabled = d.EmailEnabled
	}
	if f.CrawlerEnabled == "" {
		f.CrawlerEnabled = d.CrawlerEnabled
	}
	if f.WechatEnabled == "" {
		f.WechatEnabled = d.WechatEnabled
	}
	return f
}
