package crowd

// Crowd level labels, from quietest to busiest.
const (
	LabelVeryLow  = "Very Low"
	LabelLow      = "Low"
	LabelModerate = "Moderate"
	LabelHigh     = "High"
	LabelVeryHigh = "Very High"
	LabelExtreme  = "Extreme"
)

var labelThresholds = []struct {
	below int
	label string
}{
	{30, LabelVeryLow},
	{60, LabelLow},
	{120, LabelModerate},
	{160, LabelHigh},
	{200, LabelVeryHigh},
}

// LabelFor returns the label of a crowd level.
func LabelFor(level int) string {
	for _, t := range labelThresholds {
		if level < t.below {
			return t.label
		}
	}
	return LabelExtreme
}
