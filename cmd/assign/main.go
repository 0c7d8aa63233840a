// Command assign places students on projects from two CSV tables.
//
//	assign -students students.csv -projects projects.csv [-output out.csv] [-force Name=Project ...]
//
// The students table has a name column, one column per project holding the
// student's rank for it, optional teammate_* columns and optional skill:*
// columns. The projects table has name, min and max columns and optional
// skill:* requirement columns. The result is a name,project table written to
// -output, or to stdout when -output is empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"assigner/config"
	"assigner/match"
	_ "assigner/milp/backends"
	"assigner/table"
)

type forceList []string

func (f *forceList) String() string {
	return strings.Join(*f, ",")
}

func (f *forceList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("assign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	students := fs.String("students", "", "students CSV")
	projects := fs.String("projects", "", "projects CSV")
	output := fs.String("output", "", "where to write the name,project table (default stdout)")
	configPath := fs.String("config", "assign.yaml", "path to YAML config; environment variables override it")
	solver := fs.String("solver", "", "optimizer backend, overriding the config")
	diagnose := fs.Bool("diagnose", true, "probe relaxed models to explain infeasibility")
	warm := fs.Bool("warm", false, "seed the optimizer with a local search result")
	printConfig := fs.Bool("print-config", false, "print the effective config and exit")
	var force forceList
	fs.Var(&force, "force", "pin a student to a project as Name=Project; repeatable")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "solver":
			cfg.Solver.Backend = *solver
		case "diagnose":
			cfg.Diagnose = *diagnose
		case "warm":
			cfg.Solver.WarmStart = *warm
		}
	})
	if *printConfig {
		if err := cfg.Write(stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}
	if *students == "" || *projects == "" {
		fmt.Fprintln(stderr, "both -students and -projects are required")
		fs.Usage()
		return 2
	}

	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer log.Sync()

	forces, err := table.ParseForces(force)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	opt, err := cfg.Optimizer()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	out, err := table.Match(ctx, table.Path(*students), table.Path(*projects), table.Options{
		Options: match.Options{
			Force:     forces,
			Optimizer: opt,
			Costs:     cfg.CostModel(),
			Diagnose:  cfg.Diagnose,
			WarmStart: cfg.Solver.WarmStart,
			Logger:    log.With(zap.String("solver", cfg.Solver.Backend)),
		},
		Output: *output,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *output == "" {
		if err := out.WriteCSV(stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	return 0
}
