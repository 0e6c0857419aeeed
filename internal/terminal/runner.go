package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
)

// Runner walks the user through the form, one prompt per field, and shows
// the prediction. It loops until the user declines another round.
type Runner struct {
	ctrl    *form.Controller
	driver  PromptDriver
	gallery []predict.Image
}

func NewRunner(ctrl *form.Controller, driver PromptDriver, gallery []predict.Image) *Runner {
	return &Runner{ctrl: ctrl, driver: driver, gallery: gallery}
}

// Run returns nil when the user finishes or interrupts a prompt.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.round(ctx); err != nil {
			if errors.Is(err, ErrAborted) {
				return nil
			}
			return err
		}

		again, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Run another prediction?", Default: true})
		if err != nil {
			if errors.Is(err, ErrAborted) {
				return nil
			}
			return err
		}
		if !again {
			return nil
		}
	}
}

func (r *Runner) round(ctx context.Context) error {
	for _, f := range r.ctrl.Schema().Fields() {
		if err := r.askField(ctx, f); err != nil {
			return err
		}
	}

	if err := r.driver.Info(ctx, "Predicting..."); err != nil {
		return err
	}
	state, err := r.ctrl.Submit(ctx)
	if err != nil && state.Notice == nil {
		return err
	}
	return r.show(ctx, state)
}

func (r *Runner) askField(ctx context.Context, f schema.Field) error {
	current := r.ctrl.Snapshot().Values[f.Key]

	var raw string
	if f.IsCategorical() {
		labels := make([]string, len(f.Options))
		selected := 0
		for i, o := range f.Options {
			labels[i] = o.Label
			if float64(o.Code) == current {
				selected = i
			}
		}
		idx, err := r.driver.Select(ctx, SelectConfig{Message: f.Label, Options: labels, DefaultIndex: selected})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(f.Options) {
			return fmt.Errorf("no option selected for %s", f.Key)
		}
		raw = strconv.Itoa(f.Options[idx].Code)
	} else {
		answer, err := r.driver.Input(ctx, InputConfig{
			Message: fmt.Sprintf("%s (%s-%s, step %s)", f.Label, num(f.Min), num(f.Max), num(f.Step)),
			Default: f.Format(current),
			Validator: func(s string) error {
				_, err := f.Parse(s)
				return err
			},
		})
		if err != nil {
			return err
		}
		raw = answer
	}

	_, err := r.ctrl.ChangeField(f.Key, raw)
	return err
}

func (r *Runner) show(ctx context.Context, state form.State) error {
	if state.Notice != nil {
		return r.driver.Info(ctx, state.Notice.Message)
	}
	if state.Result == nil {
		return nil
	}
	lines := []string{
		"Probability: " + state.Result.Percentage(),
		state.Result.RiskLabel(),
		"Global Diagnostics:",
	}
	for _, img := range r.gallery {
		lines = append(lines, "  "+img.URL)
	}
	for _, line := range lines {
		if err := r.driver.Info(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type stateJSON struct {
	Values      schema.Values   `json:"values"`
	Prob        *float64        `json:"prob,omitempty"`
	IsRisk      *bool           `json:"is_risk,omitempty"`
	Probability string          `json:"probability,omitempty"`
	Label       string          `json:"label,omitempty"`
	Notice      *form.Notice    `json:"notice,omitempty"`
	Gallery     []predict.Image `json:"gallery,omitempty"`
}

// WriteState prints a settled state either as a table or as JSON.
func WriteState(w io.Writer, s *schema.Schema, st form.State, gallery []predict.Image, asJSON bool) error {
	if asJSON {
		out := stateJSON{Values: st.Values, Notice: st.Notice}
		if st.Result != nil {
			prob, risk := st.Result.Prob, st.Result.IsRisk
			out.Prob, out.IsRisk = &prob, &risk
			out.Probability = st.Result.Percentage()
			out.Label = st.Result.RiskLabel()
			out.Gallery = gallery
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range s.Fields() {
		fmt.Fprintf(tw, "%s\t%s\n", f.Label, f.Format(st.Values[f.Key]))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if st.Notice != nil {
		_, err := fmt.Fprintf(w, "\n%s\n", st.Notice.Message)
		return err
	}
	if st.Result != nil {
		fmt.Fprintf(w, "\nProbability: %s\n%s\n", st.Result.Percentage(), st.Result.RiskLabel())
		for _, img := range gallery {
			fmt.Fprintf(w, "  %s\n", img.URL)
		}
	}
	return nil
}
