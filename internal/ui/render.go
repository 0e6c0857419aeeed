package ui

import (
	"strconv"

	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
)

type OptionView struct {
	Code     int
	Label    string
	Selected bool
}

type FieldView struct {
	Key        string
	Label      string
	Continuous bool
	Min        string
	Max        string
	Step       string
	Value      string
	Display    string
	Options    []OptionView
	Error      string
}

type ResultView struct {
	Probability string
	Label       string
	IsRisk      bool
}

type PageView struct {
	Title    string
	Fields   []FieldView
	InFlight bool
	Pending  int
	Result   *ResultView
	Notice   *form.Notice
	Gallery  []predict.Image
}

// ResultJSON is a result with its display strings alongside.
type ResultJSON struct {
	Prob        float64 `json:"prob"`
	IsRisk      bool    `json:"is_risk"`
	Probability string  `json:"probability"`
	Label       string  `json:"label"`
}

// StateView is the JSON rendering of a session's form.
type StateView struct {
	Values   schema.Values            `json:"values"`
	Display  map[string]string        `json:"display"`
	InFlight bool                     `json:"in_flight"`
	Pending  int                      `json:"pending"`
	Result   *ResultJSON              `json:"result,omitempty"`
	Notice   *form.Notice             `json:"notice,omitempty"`
	Gallery  []predict.Image          `json:"gallery,omitempty"`
	Error    *apperrors.StandardError `json:"error,omitempty"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pageView builds the template model. fieldErrors maps a field key to the
// message shown beside its control.
func pageView(s *schema.Schema, st form.State, gallery []predict.Image, fieldErrors map[string]string) PageView {
	view := PageView{
		Title:    "Heart Disease Risk Prediction",
		InFlight: st.InFlight(),
		Pending:  st.Pending,
		Notice:   st.Notice,
	}

	for _, f := range s.Fields() {
		v := st.Values[f.Key]
		fv := FieldView{
			Key:        f.Key,
			Label:      f.Label,
			Continuous: f.IsContinuous(),
			Value:      formatNumber(v),
			Display:    f.Format(v),
			Error:      fieldErrors[f.Key],
		}
		if fv.Continuous {
			fv.Min = formatNumber(f.Min)
			fv.Max = formatNumber(f.Max)
			fv.Step = formatNumber(f.Step)
		} else {
			for _, o := range f.Options {
				fv.Options = append(fv.Options, OptionView{
					Code:     o.Code,
					Label:    o.Label,
					Selected: float64(o.Code) == v,
				})
			}
		}
		view.Fields = append(view.Fields, fv)
	}

	if st.Result != nil {
		view.Result = &ResultView{
			Probability: st.Result.Percentage(),
			Label:       st.Result.RiskLabel(),
			IsRisk:      st.Result.IsRisk,
		}
		view.Gallery = gallery
	}
	return view
}

func stateView(s *schema.Schema, st form.State, gallery []predict.Image) StateView {
	view := StateView{
		Values:   st.Values.Clone(),
		Display:  make(map[string]string, s.Len()),
		InFlight: st.InFlight(),
		Pending:  st.Pending,
		Notice:   st.Notice,
	}
	for _, f := range s.Fields() {
		view.Display[f.Key] = f.Format(st.Values[f.Key])
	}
	if st.Result != nil {
		view.Result = &ResultJSON{
			Prob:        st.Result.Prob,
			IsRisk:      st.Result.IsRisk,
			Probability: st.Result.Percentage(),
			Label:       st.Result.RiskLabel(),
		}
		view.Gallery = gallery
	}
	return view
}
