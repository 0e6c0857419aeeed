package schema

// Default returns the built-in heart-disease form: five continuous clinical
// measurements and the ST slope category.
func Default() *Schema {
	return MustNew(
		Field{Key: "age", Label: "Age", Kind: KindContinuous, Min: 8, Max: 106, Step: 1, Default: 55},
		Field{Key: "bp", Label: "Resting Blood Pressure", Kind: KindContinuous, Min: 60, Max: 200, Step: 1, Default: 120},
		Field{Key: "cholesterol", Label: "Cholesterol", Kind: KindContinuous, Min: 100, Max: 400, Step: 1, Default: 240},
		Field{Key: "max_hr", Label: "Max Heart Rate", Kind: KindContinuous, Min: 60, Max: 220, Step: 1, Default: 150},
		Field{Key: "oldpeak", Label: "ST Depression (Oldpeak)", Kind: KindContinuous, Min: 0, Max: 6.5, Step: 0.1, Default: 1.0},
		Field{
			Key:   "slope",
			Label: "ST Slope",
			Kind:  KindCategorical,
			Options: []Option{
				{Label: "Upsloping", Code: 0},
				{Label: "Flat", Code: 1},
				{Label: "Downsloping", Code: 2},
			},
			Default: 1,
		},
	)
}
