package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"pdfint/adapters/pdf"
	"pdfint/internal"
	"pdfint/internal/config"
	"pdfint/internal/integrator"

	"github.com/joho/godotenv"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
)

// overrides collects the flags that take precedence over the environment
type overrides struct {
	strategy  string
	threaded  bool
	workers   int
	samples   int
	numerical bool
	seed      uint64
}

func (o *overrides) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.strategy, "strategy", "", "Numerical strategy for two or more dimensions: adaptive|quasirandom")
	cmd.Flags().BoolVar(&o.threaded, "threaded", false, "Spread quasi-random sampling over worker goroutines")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "Number of workers for threaded sampling")
	cmd.Flags().IntVar(&o.samples, "samples", 0, "Number of quasi-random samples")
	cmd.Flags().BoolVar(&o.numerical, "numerical", false, "Always integrate numerically after validation")
	cmd.Flags().Uint64Var(&o.seed, "seed", 0, "Seed for the quasi-random sequence scrambling")
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.strategy != "" {
		cfg.Integrator.Strategy = config.Strategy(o.strategy)
	}
	if cmd.Flags().Changed("threaded") {
		cfg.MonteCarlo.Threaded = o.threaded
	}
	if o.workers > 0 {
		cfg.MonteCarlo.Workers = o.workers
	}
	if o.samples > 0 {
		cfg.MonteCarlo.Samples = o.samples
		cfg.MonteCarlo.ThreadedSamples = o.samples
	}
	if o.numerical {
		cfg.Integrator.ForceNumerical = true
	}
	if cmd.Flags().Changed("seed") {
		cfg.MonteCarlo.Seed = o.seed
	}
	return cfg.Validate()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:          "pdfint",
		Short:        "Normalise reference PDFs analytically and numerically",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newModelsCmd(),
		newIntegrateCmd(),
		newProjectCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the reference models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range pdf.Names() {
				model, err := pdf.Build(name)
				if err != nil {
					return err
				}
				fmt.Printf("%-12s %s\n", name, strings.Join(model.Integrand.Observables(), ", "))
			}
			return nil
		},
	}
}

func newIntegrateCmd() *cobra.Command {
	var o overrides
	var phaseSpace bool
	var repeat int

	cmd := &cobra.Command{
		Use:   "integrate [model]",
		Short: "Validate a model's analytic integral and print its normalisation",
		Long: `Integrate a reference model over its phase space.

The first integral compares the model's analytic integral with a numerical
one and decides which to trust. With --repeat the numerical integral is
recomputed quasi-randomly with different sampler seeds and summarised;
this needs a model with at least two continuous dimensions.

Configuration is read from INTEGRATOR_* environment variables and a .env
file; flags take precedence.

Example: pdfint integrate mixture --strategy quasirandom --threaded --workers 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, &o)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cfg)
			defer cancel()
			return runIntegrate(ctx, args[0], cfg, logger, phaseSpace, repeat)
		},
	}

	o.register(cmd)
	cmd.Flags().BoolVar(&phaseSpace, "phase-space", false, "Sum over every discrete combination instead of the model's point")
	cmd.Flags().IntVar(&repeat, "repeat", 0, "Recompute the numerical integral this many times with fresh seeds")
	return cmd
}

func newProjectCmd() *cobra.Command {
	var o overrides
	var steps int

	cmd := &cobra.Command{
		Use:   "project [model] [observable]",
		Short: "Scan a model's projection onto one observable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd, &o)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cfg)
			defer cancel()
			return runProject(ctx, args[0], args[1], cfg, logger, steps)
		},
	}

	o.register(cmd)
	cmd.Flags().IntVar(&steps, "steps", 10, "Number of points in the scan")
	return cmd
}

func setup(cmd *cobra.Command, o *overrides) (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := o.apply(cmd, cfg); err != nil {
		return nil, nil, err
	}
	return cfg, internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level)), nil
}

func withTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Integrator.Timeout > 0 {
		return context.WithTimeout(ctx, cfg.Integrator.Timeout)
	}
	return context.WithCancel(ctx)
}

func runIntegrate(ctx context.Context, name string, cfg *config.Config, logger *internal.Logger, phaseSpace bool, repeat int) error {
	model, err := pdf.Build(name)
	if err != nil {
		return err
	}
	engine, err := integrator.New(model.Integrand, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	value, err := engine.Integral(ctx, model.Point, model.Boundary)
	if err != nil {
		return fmt.Errorf("integral of %s failed: %w", name, err)
	}
	fmt.Printf("Model:      %s\n", name)
	fmt.Printf("Engine:     %s\n", engine.ID())
	fmt.Printf("Integral:   %.10g\n", value)
	fmt.Printf("State:      %s\n", engine.State())
	if engine.RatioOfIntegrals() >= 0 {
		fmt.Printf("Ratio:      %.10g\n", engine.RatioOfIntegrals())
	}
	fmt.Printf("Elapsed:    %v\n", time.Since(start))

	if phaseSpace {
		total, err := engine.IntegratePhaseSpace(ctx, model.Boundary)
		if err != nil {
			return fmt.Errorf("phase-space integral of %s failed: %w", name, err)
		}
		fmt.Printf("PhaseSpace: %.10g\n", total)
	}

	if repeat > 0 {
		return runRepeats(ctx, model, cfg, logger, repeat)
	}
	return nil
}

// runRepeats recomputes the numerical integral with successive seeds and
// prints the spread of the estimates
func runRepeats(ctx context.Context, model pdf.Model, cfg *config.Config, logger *internal.Logger, repeat int) error {
	values, err := repeatEstimates(ctx, model, cfg, logger, repeat)
	if err != nil {
		return err
	}

	mean, _ := values.Mean()
	lo, _ := values.Min()
	hi, _ := values.Max()
	fmt.Printf("\nRepeats:    %d (%s)\n", repeat, config.StrategyQuasiRandom)
	fmt.Printf("Mean:       %.10g\n", mean)
	if repeat > 1 {
		sd, _ := values.StandardDeviationSample()
		fmt.Printf("StdDev:     %.3g\n", sd)
	}
	fmt.Printf("Range:      [%.10g, %.10g]\n", lo, hi)
	return nil
}

// repeatEstimates always samples quasi-randomly: the quadrature rules are
// deterministic and would repeat the same value for every seed
func repeatEstimates(ctx context.Context, model pdf.Model, cfg *config.Config, logger *internal.Logger, repeat int) (stats.Float64Data, error) {
	if n := len(model.Boundary.ContinuousNames()); n < 2 {
		return nil, fmt.Errorf("repeats need at least two continuous dimensions to sample, %s has %d", model.Integrand.Name(), n)
	}

	values := make(stats.Float64Data, 0, repeat)
	for i := 0; i < repeat; i++ {
		c := *cfg
		c.Integrator.Strategy = config.StrategyQuasiRandom
		c.MonteCarlo.Seed = cfg.MonteCarlo.Seed + uint64(i) + 1
		engine, err := integrator.New(model.Integrand, &c, logger)
		if err != nil {
			return nil, err
		}
		v, err := engine.IntegratePoint(ctx, model.Point, model.Boundary)
		if err != nil {
			return nil, fmt.Errorf("repeat %d failed: %w", i+1, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func runProject(ctx context.Context, name, observable string, cfg *config.Config, logger *internal.Logger, steps int) error {
	if steps < 2 {
		return fmt.Errorf("a scan needs at least two steps, got %d", steps)
	}
	model, err := pdf.Build(name)
	if err != nil {
		return err
	}
	c, err := model.Boundary.Constraint(observable)
	if err != nil {
		return err
	}
	engine, err := integrator.New(model.Integrand, cfg, logger)
	if err != nil {
		return err
	}
	engine.UseProjectionSettings()

	var points []float64
	if c.IsDiscrete() {
		points = c.Values()
	} else {
		step := c.Width() / float64(steps-1)
		for i := 0; i < steps; i++ {
			points = append(points, c.Minimum()+float64(i)*step)
		}
	}

	fmt.Printf("%-14s %s\n", observable, "projection")
	for _, x := range points {
		v, err := engine.ProjectObservable(ctx, model.Point.With(observable, x), model.Boundary, observable)
		if err != nil {
			return err
		}
		fmt.Printf("%-14.6g %.8g\n", x, v)
	}
	return nil
}
