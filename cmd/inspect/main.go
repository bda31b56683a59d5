// Command inspect loads a scaler/model artifact pair with the service's loader, prints the
// fingerprint and fitted parameters, and optionally predicts one vector given as flags.
//
//	inspect -scaler models/scaler1.json -model models/ridge1.json -Temperature 29 -RH 57 ...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/kjstillabower/fwi-predictor/internal/artifact"
	"github.com/kjstillabower/fwi-predictor/internal/models"
	"github.com/kjstillabower/fwi-predictor/internal/service"
	"github.com/kjstillabower/fwi-predictor/internal/validation"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		}
		os.Exit(1)
	}
}

// report is the -json output.
type report struct {
	Fingerprint string             `json:"fingerprint"`
	Features    []featureParams    `json:"features"`
	Intercept   float64            `json:"intercept"`
	Alpha       float64            `json:"alpha"`
	Prediction  *models.Prediction `json:"prediction,omitempty"`
}

type featureParams struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
	Coef  float64 `json:"coef"`
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scalerPath := fs.String("scaler", filepath.Join("models", "scaler1.json"), "scaler artifact path")
	modelPath := fs.String("model", filepath.Join("models", "ridge1.json"), "model artifact path")
	asJSON := fs.Bool("json", false, "print a JSON report")
	var inputs [models.NumFeatures]*string
	for i, name := range models.FeatureNames {
		inputs[i] = fs.String(name, "", name+" input value")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := artifact.Load(*scalerPath, *modelPath)
	if err != nil {
		return err
	}

	rep := report{
		Fingerprint: store.Fingerprint(),
		Intercept:   store.Ridge().Intercept(),
		Alpha:       store.Ridge().Alpha(),
	}
	mean, scale, coef := store.StandardScaler().Mean(), store.StandardScaler().Scale(), store.Ridge().Coef()
	for i, name := range models.FeatureNames {
		rep.Features = append(rep.Features, featureParams{Name: name, Mean: mean[i], Scale: scale[i], Coef: coef[i]})
	}

	if values, ok := collectInputs(fs, inputs); ok {
		v, err := validation.ParseForm(values)
		if err != nil {
			return err
		}
		svc := service.NewPredictionService(store.Scaler(), store.Model(), store.Fingerprint(), nil, "", 0)
		p, err := svc.Predict(context.Background(), v)
		if err != nil {
			return err
		}
		rep.Prediction = &p
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return printReport(stdout, rep)
}

// collectInputs gathers the feature flags that were set. ok is false when none were.
func collectInputs(fs *flag.FlagSet, inputs [models.NumFeatures]*string) (url.Values, bool) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	values := url.Values{}
	for i, name := range models.FeatureNames {
		if set[name] {
			values.Set(name, *inputs[i])
		}
	}
	return values, len(values) > 0
}

func printReport(w io.Writer, rep report) error {
	fmt.Fprintf(w, "fingerprint: %s\n", rep.Fingerprint)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tMEAN\tSCALE\tCOEF")
	for _, f := range rep.Features {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\n", f.Name, f.Mean, f.Scale, f.Coef)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "intercept: %g\nalpha: %g\n", rep.Intercept, rep.Alpha)
	if p := rep.Prediction; p != nil {
		fmt.Fprintf(w, "fwi: %s\nrisk: %s\n", models.FormatFWI(p.FWI), p.RiskLevel)
	}
	return nil
}
