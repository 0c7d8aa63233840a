// Command solver-tune compares optimizer backends, with and without a
// heuristic warm start, on seeded random assignment instances.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"assigner/match"
	"assigner/milp"
	_ "assigner/milp/backends"
)

type instance struct {
	students []match.Student
	projects []match.Project
}

// randomInstance builds a roster where a few popular projects attract most
// first choices, roughly one student in eight names a teammate, and some
// projects need a skill. Total capacity always covers the roster.
func randomInstance(rng *rand.Rand, ns, np int) instance {
	projects := make([]match.Project, np)
	per := (ns + np - 1) / np
	for p := range projects {
		projects[p] = match.Project{
			Name: fmt.Sprintf("P%02d", p),
			Min:  max(0, per-2-rng.Intn(2)),
			Max:  per + 1 + rng.Intn(2),
		}
		if rng.Intn(4) == 0 {
			projects[p].Skills = map[string]float64{"code": 1}
		}
	}

	popularity := make([]float64, np)
	for p := range popularity {
		popularity[p] = rng.ExpFloat64()
	}
	students := make([]match.Student, ns)
	for s := range students {
		st := match.Student{
			Name:   fmt.Sprintf("S%03d", s),
			Ranks:  map[string]int{},
			Skills: map[string]float64{"code": float64(rng.Intn(2))},
		}
		order := make([]int, np)
		keys := make([]float64, np)
		for p := range order {
			order[p] = p
			keys[p] = popularity[p] * rng.Float64()
		}
		sort.Slice(order, func(i, j int) bool { return keys[order[i]] > keys[order[j]] })
		for rank, p := range order[:min(np, 3+rng.Intn(3))] {
			st.Ranks[projects[p].Name] = rank + 1
		}
		if s > 0 && rng.Intn(8) == 0 {
			st.Teammates = []string{fmt.Sprintf("S%03d", rng.Intn(s))}
		}
		students[s] = st
	}
	return instance{students: students, projects: projects}
}

type runResult struct {
	objective  float64
	assignment string
	elapsed    time.Duration
	err        error
}

type benchConfig struct {
	solver string
	warm   bool
}

func (c benchConfig) String() string {
	return fmt.Sprintf("%s warm=%t", c.solver, c.warm)
}

func assignmentKey(res *match.Result) string {
	var buf strings.Builder
	for _, a := range res.Assignments {
		buf.WriteString(a.Project)
		buf.WriteByte(';')
	}
	return buf.String()
}

func printStats(label string, results []runResult, best []float64) {
	objectives := map[float64]int{}
	solutions := map[string]int{}
	var totalTime time.Duration
	var solved, atBest int
	failures := map[string]int{}

	for i, r := range results {
		totalTime += r.elapsed
		if r.err != nil {
			failures[r.err.Error()]++
			continue
		}
		solved++
		objectives[r.objective]++
		solutions[r.assignment]++
		if math.Abs(r.objective-best[i]) <= 1e-6 {
			atBest++
		}
	}

	runs := len(results)
	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  avg time: %v\n", totalTime/time.Duration(max(1, runs)))
	fmt.Printf("  solved: %d/%d runs\n", solved, runs)
	fmt.Printf("  at best known objective: %d/%d runs (%.0f%%)\n", atBest, runs, float64(atBest)/float64(max(1, runs))*100)

	keys := make([]float64, 0, len(objectives))
	for k := range objectives {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		fmt.Printf("  objective distribution:\n")
		for _, k := range keys[:min(5, len(keys))] {
			fmt.Printf("    objective %g: %d runs\n", k, objectives[k])
		}
	}
	fmt.Printf("  unique assignments seen: %d\n", len(solutions))

	msgs := make([]string, 0, len(failures))
	for m := range failures {
		msgs = append(msgs, m)
	}
	slices.Sort(msgs)
	for _, m := range msgs {
		fmt.Printf("  failed %d times: %s\n", failures[m], m)
	}
	fmt.Println()
}

func main() {
	runs := flag.Int("runs", 20, "number of random instances")
	seed := flag.Int64("seed", 31337, "seed for the first instance")
	numStudents := flag.Int("students", 30, "students per instance")
	numProjects := flag.Int("projects", 6, "projects per instance")
	solvers := flag.String("solvers", "bnb", "comma-separated optimizer backends, e.g. bnb,highs,glpk")
	warm := flag.String("warm", "false,true", "comma-separated warm start settings")
	timeLimit := flag.Duration("time-limit", 30*time.Second, "per-solve time limit")
	nodeLimit := flag.Int("node-limit", milp.DefaultParams.NodeLimit, "branch and bound node limit")
	parallel := flag.Int("parallel", 4, "instances solved concurrently")
	random := flag.String("random", strconv.Itoa(match.DefaultHeuristic.NumRandom), "comma-separated random restart counts for the warm start")
	perturb := flag.String("perturb", strconv.Itoa(match.DefaultHeuristic.NumPerturb), "comma-separated perturbation counts for the warm start")
	verbose := flag.Bool("v", false, "log every solve")
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	params := milp.DefaultParams
	params.TimeLimit = *timeLimit
	params.NodeLimit = *nodeLimit

	var configs []benchConfig
	for _, name := range strings.Split(*solvers, ",") {
		name = strings.TrimSpace(name)
		if !slices.Contains(milp.Names(), name) {
			fmt.Fprintf(os.Stderr, "unknown solver %q (have %s)\n", name, strings.Join(milp.Names(), ", "))
			os.Exit(1)
		}
		for _, w := range strings.Split(*warm, ",") {
			on, err := strconv.ParseBool(strings.TrimSpace(w))
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid -warm value %q\n", w)
				os.Exit(1)
			}
			configs = append(configs, benchConfig{solver: name, warm: on})
		}
	}

	instances := make([]instance, *runs)
	for run := range instances {
		instances[run] = randomInstance(rand.New(rand.NewSource(*seed+int64(run))), *numStudents, *numProjects)
	}

	fmt.Printf("Students: %d, Projects: %d, Runs: %d\n", *numStudents, *numProjects, *runs)
	fmt.Printf("Time limit: %v, Node limit: %d\n\n", *timeLimit, *nodeLimit)

	type labelled struct {
		label   string
		results []runResult
	}
	var all []labelled
	best := make([]float64, *runs)
	for i := range best {
		best[i] = math.Inf(1)
	}

	ctx := context.Background()
	for _, cfg := range configs {
		opt, err := milp.New(cfg.solver, params)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		heuristics := []match.HeuristicParams{match.DefaultHeuristic}
		if cfg.warm {
			heuristics = heuristics[:0]
			for _, nr := range parseIntList(*random) {
				for _, np := range parseIntList(*perturb) {
					h := match.DefaultHeuristic
					h.NumRandom, h.NumPerturb = nr, np
					heuristics = append(heuristics, h)
				}
			}
		}
		for _, h := range heuristics {
			results := make([]runResult, *runs)
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(*parallel)
			for run, inst := range instances {
				g.Go(func() error {
					start := time.Now()
					res, err := match.Match(gctx, inst.students, inst.projects, match.Options{
						Optimizer: opt,
						WarmStart: cfg.warm,
						Heuristic: h,
						Logger:    log.With(zap.Int("run", run), zap.Stringer("config", cfg)),
					})
					results[run] = runResult{elapsed: time.Since(start), err: err}
					if err == nil {
						results[run].objective = res.Objective
						results[run].assignment = assignmentKey(res)
					}
					return nil
				})
			}
			g.Wait()

			for run, r := range results {
				if r.err == nil {
					best[run] = math.Min(best[run], r.objective)
				}
			}
			label := cfg.String()
			if cfg.warm {
				label += fmt.Sprintf(" random=%d perturb=%d", h.NumRandom, h.NumPerturb)
			}
			all = append(all, labelled{label: label, results: results})
		}
	}

	for _, l := range all {
		printStats(l.label, l.results, best)
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}
