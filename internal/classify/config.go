package classify

// Config holds every threshold and increment the classifier uses.
type Config struct {
	CoverPrior        float64      `yaml:"cover_prior"`
	ISBNScore         float64      `yaml:"isbn_score"`
	ISBNThreshold     float64      `yaml:"isbn_threshold"`
	ConfidenceCeiling float64      `yaml:"confidence_ceiling"`
	AnalysisMaxSize   int          `yaml:"analysis_max_size"`
	Aspect            AspectConfig `yaml:"aspect"`
	Edge              EdgeConfig   `yaml:"edge"`
	Color             ColorConfig  `yaml:"color"`
}

// AspectConfig scores the height/width ratio.
type AspectConfig struct {
	SpineRatio      float64 `yaml:"spine_ratio"`
	CoverMin        float64 `yaml:"cover_min"`
	CoverMax        float64 `yaml:"cover_max"`
	ShelfRatio      float64 `yaml:"shelf_ratio"`
	SpineBonus      float64 `yaml:"spine_bonus"`
	SpineShelfBonus float64 `yaml:"spine_shelf_bonus"`
	CoverBonus      float64 `yaml:"cover_bonus"`
	ShelfBonus      float64 `yaml:"shelf_bonus"`
	ShelfSpineBonus float64 `yaml:"shelf_spine_bonus"`
	BalancedBonus   float64 `yaml:"balanced_bonus"`
}

// EdgeConfig scores sampled gradient directions.
type EdgeConfig struct {
	Stride      int     `yaml:"stride"`
	Threshold   int     `yaml:"threshold"`
	BalancedMin float64 `yaml:"balanced_min"`
	BalancedMax float64 `yaml:"balanced_max"`
	Dominance   float64 `yaml:"dominance"`
	CoverBonus  float64 `yaml:"cover_bonus"`
	SpineBonus  float64 `yaml:"spine_bonus"`
	ShelfBonus  float64 `yaml:"shelf_bonus"`
}

// ColorConfig scores how uniform the 3x3 grid is around its centre.
type ColorConfig struct {
	Stride     int     `yaml:"stride"`
	SpineMax   float64 `yaml:"spine_max"`
	CoverMax   float64 `yaml:"cover_max"`
	ShelfMin   float64 `yaml:"shelf_min"`
	SpineBonus float64 `yaml:"spine_bonus"`
	CoverBonus float64 `yaml:"cover_bonus"`
	ShelfBonus float64 `yaml:"shelf_bonus"`
}

// DefaultConfig returns the stock constants.
func DefaultConfig() Config {
	return Config{
		CoverPrior:        0.3,
		ISBNScore:         0.95,
		ISBNThreshold:     0.5,
		ConfidenceCeiling: 1.5,
		AnalysisMaxSize:   800,
		Aspect: AspectConfig{
			SpineRatio:      2.5,
			CoverMin:        1.2,
			CoverMax:        1.8,
			ShelfRatio:      0.8,
			SpineBonus:      0.4,
			SpineShelfBonus: 0.1,
			CoverBonus:      0.3,
			ShelfBonus:      0.4,
			ShelfSpineBonus: 0.1,
			BalancedBonus:   0.1,
		},
		Edge: EdgeConfig{
			Stride:      4,
			Threshold:   100,
			BalancedMin: 0.7,
			BalancedMax: 1.3,
			Dominance:   1.5,
			CoverBonus:  0.2,
			SpineBonus:  0.3,
			ShelfBonus:  0.3,
		},
		Color: ColorConfig{
			Stride:     4,
			SpineMax:   20,
			CoverMax:   30,
			ShelfMin:   50,
			SpineBonus: 0.2,
			CoverBonus: 0.2,
			ShelfBonus: 0.3,
		},
	}
}
