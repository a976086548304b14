package entity

// Validate checks a MetricSample for structural validity.
func (m MetricSample) Validate() error {
	if m.Name == "" {
		return &ValidationError{Field: "Name", Message: "must not be empty"}
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return &ValidationError{Field: "Confidence", Message: "must be in [0, 1]"}
	}
	if m.Provenance != ProvenanceReal && m.Provenance != ProvenanceFallback {
		return &ValidationError{Field: "Provenance", Message: "must be real or fallback"}
	}
	return nil
}

// Validate checks an AssetSnapshot for the fields the fallback model requires.
func (s AssetSnapshot) Validate() error {
	if s.AssetID == "" {
		return &ValidationError{Field: "AssetID", Message: "must not be empty"}
	}
	if s.VolumeUSD24h < 0 {
		return &ValidationError{Field: "VolumeUSD24h", Message: "must not be negative"}
	}
	if s.MarketCapUSD < 0 {
		return &ValidationError{Field: "MarketCapUSD", Message: "must not be negative"}
	}
	if s.Volatility30d < 0 {
		return &ValidationError{Field: "Volatility30d", Message: "must not be negative"}
	}
	return nil
}
