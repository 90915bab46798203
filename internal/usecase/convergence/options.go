package convergence

// Default analysis parameters.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultMinChainLength      = 3
	DefaultStrongChain         = 0.85
	DefaultTemporalDays        = 30
	DefaultEmergentFactor      = 0.8
	DefaultCrossChainFactor    = 0.7
	DefaultBridgeFactor        = 0.8
	DefaultHubFactor           = 2
	DefaultMaxHubs             = 5
	DefaultMaxDocuments        = 500
	DefaultCacheSize           = 2000
	DefaultEmbedConcurrency    = 4
)

// Options tunes one analysis run. Zero fields fall back to the analyzer defaults;
// a nil PersistEnriched does too, while an explicit false overrides them.
type Options struct {
	SimilarityThreshold float64 `json:"similarityThreshold,omitempty" yaml:"similarity_threshold"`
	MinChainLength      int     `json:"minChainLength,omitempty" yaml:"min_chain_length"`
	StrongChain         float64 `json:"strongChain,omitempty" yaml:"strong_chain"`
	TemporalDays        float64 `json:"temporalDays,omitempty" yaml:"temporal_days"`
	EmergentFactor      float64 `json:"emergentFactor,omitempty" yaml:"emergent_factor"`
	CrossChainFactor    float64 `json:"crossChainFactor,omitempty" yaml:"cross_chain_factor"`
	BridgeFactor        float64 `json:"bridgeFactor,omitempty" yaml:"bridge_factor"`
	HubFactor           float64 `json:"hubFactor,omitempty" yaml:"hub_factor"`
	MaxHubs             int     `json:"maxHubs,omitempty" yaml:"max_hubs"`
	MaxDocuments        int     `json:"maxDocuments,omitempty" yaml:"max_documents"`
	PersistEnriched     *bool   `json:"persistEnriched,omitempty" yaml:"persist_enriched"`
}

// DefaultOptions returns the built-in parameters.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinChainLength:      DefaultMinChainLength,
		StrongChain:         DefaultStrongChain,
		TemporalDays:        DefaultTemporalDays,
		EmergentFactor:      DefaultEmergentFactor,
		CrossChainFactor:    DefaultCrossChainFactor,
		BridgeFactor:        DefaultBridgeFactor,
		HubFactor:           DefaultHubFactor,
		MaxHubs:             DefaultMaxHubs,
		MaxDocuments:        DefaultMaxDocuments,
	}
}

// merge fills zero fields of o from base.
func (o Options) merge(base Options) Options {
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = base.SimilarityThreshold
	}
	if o.MinChainLength <= 0 {
		o.MinChainLength = base.MinChainLength
	}
	if o.StrongChain <= 0 {
		o.StrongChain = base.StrongChain
	}
	if o.TemporalDays <= 0 {
		o.TemporalDays = base.TemporalDays
	}
	if o.EmergentFactor <= 0 {
		o.EmergentFactor = base.EmergentFactor
	}
	if o.CrossChainFactor <= 0 {
		o.CrossChainFactor = base.CrossChainFactor
	}
	if o.BridgeFactor <= 0 {
		o.BridgeFactor = base.BridgeFactor
	}
	if o.HubFactor <= 0 {
		o.HubFactor = base.HubFactor
	}
	if o.MaxHubs <= 0 {
		o.MaxHubs = base.MaxHubs
	}
	if o.MaxDocuments <= 0 {
		o.MaxDocuments = base.MaxDocuments
	}
	if o.PersistEnriched == nil {
		o.PersistEnriched = base.PersistEnriched
	}
	return o
}

func (o Options) persistEnriched() bool {
	return o.PersistEnriched != nil && *o.PersistEnriched
}
