package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/logging"
	"github.com/2beens/fitsense/internal/mlmodels"

	log "github.com/sirupsen/logrus"
)

type analyzeOutput struct {
	Predictions     fitness.Predictions     `json:"predictions"`
	CalorieAnalysis fitness.CalorieAnalysis `json:"calorie_analysis"`
}

// analyze runs the prediction adapter and the analysis engine offline on a single assessment,
// read from the file given as the first positional argument or from stdin.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("analyze", flag.ContinueOnError)
	modelsDir := flags.String("models", "./models", "dir with the model artifacts (empty for fallback estimators only)")
	horizonDays := flags.Int("horizon", fitness.DefaultHorizonDays, "days to spread the extra reps over")
	logLevel := flags.String("log-level", "warn", "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *horizonDays <= 0 {
		return errors.New("horizon must be a positive number of days")
	}

	logging.Setup(logging.LoggerSetupParams{
		LogLevel: *logLevel,
	})
	// stdout carries the result
	log.SetOutput(os.Stderr)

	input := stdin
	if flags.NArg() > 0 {
		f, err := os.Open(flags.Arg(0))
		if err != nil {
			return fmt.Errorf("open assessment file: %w", err)
		}
		defer f.Close()
		input = f
	}

	var assessment fitness.Assessment
	if err := json.NewDecoder(input).Decode(&assessment); err != nil {
		return fmt.Errorf("decode assessment: %w", err)
	}
	if err := assessment.Validate(); err != nil {
		return err
	}

	models, err := mlmodels.NewRegistry(nil)
	if err != nil {
		return err
	}
	if *modelsDir != "" {
		if models, err = mlmodels.LoadDir(*modelsDir); err != nil {
			return err
		}
	}

	predictor := fitness.NewPredictor(models, nil)
	analyzer := fitness.NewAnalyzer(models, nil)

	predictions := predictor.PredictAll(ctx, assessment)
	output := analyzeOutput{
		Predictions:     predictions,
		CalorieAnalysis: analyzer.Analyze(ctx, assessment, predictions, *horizonDays),
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
